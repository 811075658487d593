package isam

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/tuannm99/pagedb/internal/record"
	"github.com/tuannm99/pagedb/internal/storage"
)

// pageRecords gathers the live records of primary page i and of its
// overflow chain, sorted ascending by key.
func (e *Engine) pageRecords(i int32) ([]record.Record, error) {
	p, err := e.readPage(i)
	if err != nil {
		return nil, err
	}
	recs := p.Live()

	chain, err := e.chainRecords(p.OverflowHead)
	if err != nil {
		return nil, err
	}
	for _, r := range chain {
		if !r.Tombstone {
			recs = append(recs, r)
		}
	}

	sort.Slice(recs, func(a, b int) bool { return recs[a].Key < recs[b].Key })
	return recs, nil
}

// Reorganize rebuilds the primary area at the configured fill factor:
// live records of every page and its chain are streamed into fresh
// pages of at most max(1, floor(B*alpha)) records, the overflow file is
// emptied and the sparse index rewritten with each new page's first
// key. The swap is a filename-level rename; a failure before the swap
// leaves the live files untouched.
func (e *Engine) Reorganize() error {
	before := e.counters.Snapshot()

	newPrim, err := storage.OpenDevice(e.prefix+"_new_prim.bin", e.pageSize, record.Size, e.counters)
	if err != nil {
		return fmt.Errorf("isam: open reorg scratch: %w", err)
	}
	newOver, err := storage.OpenDevice(e.prefix+"_new_over.bin", record.Size, record.Size, e.counters)
	if err != nil {
		_ = newPrim.Remove()
		return fmt.Errorf("isam: open reorg scratch: %w", err)
	}
	abort := func(err error) error {
		_ = newPrim.Remove()
		_ = newOver.Remove()
		return err
	}
	if err := newPrim.Clear(); err != nil {
		return abort(err)
	}
	if err := newOver.Clear(); err != nil {
		return abort(err)
	}

	fill := int(float64(e.blocking) * e.alpha)
	if fill < 1 {
		fill = 1
	}

	pages, err := e.primaryPages()
	if err != nil {
		return abort(err)
	}

	var entries []record.IndexEntry
	out := record.NewPage(e.blocking)
	outIdx := int32(0)
	flush := func() error {
		buf := make([]byte, e.pageSize)
		out.Encode(buf)
		if err := newPrim.WritePage(int(outIdx), buf); err != nil {
			return err
		}
		outIdx++
		out = record.NewPage(e.blocking)
		return nil
	}

	for i := 0; i < pages; i++ {
		recs, err := e.pageRecords(int32(i))
		if err != nil {
			return abort(err)
		}
		for _, r := range recs {
			if out.Count == 0 {
				entries = append(entries, record.IndexEntry{Key: r.Key, Page: outIdx})
			}
			r.Next = record.NullPointer
			out.Insert(r)
			if int(out.Count) == fill {
				if err := flush(); err != nil {
					return abort(err)
				}
			}
		}
	}
	if out.Count > 0 {
		if err := flush(); err != nil {
			return abort(err)
		}
	}
	if outIdx == 0 {
		// no live records anywhere: back to the bootstrap layout
		if err := flush(); err != nil {
			return abort(err)
		}
		entries = []record.IndexEntry{{Key: 0, Page: 0}}
	}

	if err := e.primary.ReplaceWith(newPrim); err != nil {
		return err
	}
	if err := e.overflow.ReplaceWith(newOver); err != nil {
		return err
	}
	if err := e.saveIndex(entries); err != nil {
		return err
	}

	delta := e.counters.Diff(before)
	e.stats.Reorgs++
	e.stats.ReorgReads += delta.Reads
	e.stats.ReorgWrites += delta.Writes

	slog.Debug("isam: reorganized",
		"pages", outIdx,
		"fill", fill,
		"reads", delta.Reads,
		"writes", delta.Writes)
	return nil
}
