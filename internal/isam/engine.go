// Package isam implements an indexed-sequential key/value store over
// fixed-width records: a sparse index routing keys to a primary area
// of sorted pages, a per-page overflow chain for records that no
// longer fit, and a fill-factor reorganization that rebuilds the
// primary area and empties the overflow file.
package isam

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tuannm99/pagedb/internal/record"
	"github.com/tuannm99/pagedb/internal/storage"
)

const (
	// minOverflowForReorg keeps tiny files from thrashing: the V/N
	// threshold only arms once the overflow area holds more than this
	// many records.
	minOverflowForReorg = 5

	defaultBlocking  = 4
	defaultAlpha     = 0.5
	defaultThreshold = 0.2
)

var (
	ErrBadBlocking  = errors.New("isam: blocking factor must be >= 1")
	ErrBadAlpha     = errors.New("isam: alpha must be in (0, 1]")
	ErrBadThreshold = errors.New("isam: threshold must be >= 0")

	// ErrBrokenChain is returned when an overflow chain walk visits more
	// records than the overflow file holds, i.e. the chain is cyclic or
	// points into garbage.
	ErrBrokenChain = errors.New("isam: overflow chain longer than overflow area")
)

// Options configures a store at open time. Zero values fall back to
// the stock defaults (B=4, alpha=0.5, threshold=0.2).
type Options struct {
	Blocking  int
	Alpha     float64
	Threshold float64

	// Counters receives the store's page/record I/O. When nil the store
	// allocates a private set.
	Counters *storage.Counters
}

// Stats are the per-store operation totals reported by the driver's
// STATS line. Reads/writes live on the Counters instead.
type Stats struct {
	Reorgs   int64
	Inserts  int64
	Searches int64

	// I/O attributed to reorganization runs only.
	ReorgReads  int64
	ReorgWrites int64
}

// Engine is one ISAM store: three block devices sharing one counter
// set. All operations are strictly serial.
type Engine struct {
	prefix    string
	blocking  int
	alpha     float64
	threshold float64
	pageSize  int

	primary  *storage.BlockDevice
	overflow *storage.BlockDevice
	index    *storage.BlockDevice

	counters *storage.Counters
	stats    Stats
}

// Open opens the store with files <prefix>_primary.bin,
// <prefix>_overflow.bin and <prefix>_index.bin, initializing an empty
// structure (one empty primary page, bootstrap index entry (0,0)) when
// the primary file is empty.
func Open(prefix string, opts Options) (*Engine, error) {
	if opts.Blocking == 0 {
		opts.Blocking = defaultBlocking
	}
	if opts.Alpha == 0 {
		opts.Alpha = defaultAlpha
	}
	if opts.Threshold == 0 {
		opts.Threshold = defaultThreshold
	}
	if opts.Blocking < 1 {
		return nil, ErrBadBlocking
	}
	if opts.Alpha < 0 || opts.Alpha > 1 {
		return nil, ErrBadAlpha
	}
	if opts.Threshold < 0 {
		return nil, ErrBadThreshold
	}

	c := opts.Counters
	if c == nil {
		c = &storage.Counters{}
	}

	e := &Engine{
		prefix:    prefix,
		blocking:  opts.Blocking,
		alpha:     opts.Alpha,
		threshold: opts.Threshold,
		pageSize:  record.PageSize(opts.Blocking),
		counters:  c,
	}

	var err error
	if e.primary, err = storage.OpenDevice(prefix+"_primary.bin", e.pageSize, record.Size, c); err != nil {
		return nil, err
	}
	if e.overflow, err = storage.OpenDevice(prefix+"_overflow.bin", record.Size, record.Size, c); err != nil {
		_ = e.primary.Close()
		return nil, err
	}
	if e.index, err = storage.OpenDevice(prefix+"_index.bin", record.IndexPageSize, record.IndexEntrySize, c); err != nil {
		_ = e.primary.Close()
		_ = e.overflow.Close()
		return nil, err
	}

	pages, err := e.primary.SizeInPages()
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	if pages == 0 {
		if err := e.initStructure(); err != nil {
			_ = e.Close()
			return nil, err
		}
	}
	return e, nil
}

// initStructure writes the bootstrap state: one empty primary page and
// the sentinel index entry (0, 0).
func (e *Engine) initStructure() error {
	slog.Debug("isam: initializing empty structure", "prefix", e.prefix)
	for _, dev := range []*storage.BlockDevice{e.primary, e.overflow, e.index} {
		if err := dev.Clear(); err != nil {
			return err
		}
	}
	if err := e.writePage(0, record.NewPage(e.blocking)); err != nil {
		return err
	}
	return e.saveIndex([]record.IndexEntry{{Key: 0, Page: 0}})
}

func (e *Engine) Close() error {
	var firstErr error
	for _, dev := range []*storage.BlockDevice{e.primary, e.overflow, e.index} {
		if dev == nil {
			continue
		}
		if err := dev.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Engine) Blocking() int               { return e.blocking }
func (e *Engine) Alpha() float64              { return e.alpha }
func (e *Engine) Threshold() float64          { return e.threshold }
func (e *Engine) Counters() *storage.Counters { return e.counters }
func (e *Engine) Stats() Stats                { return e.stats }

// ---- page / record I/O helpers ----

func (e *Engine) readPage(i int32) (*record.Page, error) {
	buf := make([]byte, e.pageSize)
	if err := e.primary.ReadPage(int(i), buf); err != nil {
		return nil, err
	}
	return record.DecodePage(buf, e.blocking), nil
}

func (e *Engine) writePage(i int32, p *record.Page) error {
	buf := make([]byte, e.pageSize)
	p.Encode(buf)
	return e.primary.WritePage(int(i), buf)
}

func (e *Engine) readOverflow(addr int32) (record.Record, error) {
	buf := make([]byte, record.Size)
	if err := e.overflow.ReadRecord(int(addr), buf); err != nil {
		return record.Record{}, err
	}
	return record.Decode(buf), nil
}

func (e *Engine) writeOverflow(addr int32, r record.Record) error {
	buf := make([]byte, record.Size)
	r.Encode(buf)
	return e.overflow.WriteRecord(int(addr), buf)
}

func (e *Engine) appendOverflow(r record.Record) (int32, error) {
	buf := make([]byte, record.Size)
	r.Encode(buf)
	i, err := e.overflow.AppendRecord(buf)
	return int32(i), err
}

func (e *Engine) primaryPages() (int, error) { return e.primary.SizeInPages() }

// overflowSize is V: the record count of the overflow file, tombstoned
// entries included.
func (e *Engine) overflowSize() (int, error) { return e.overflow.SizeInRecords() }

// ---- CRUD ----

// Read returns the live record stored under key.
func (e *Engine) Read(key uint32) (record.Record, bool, error) {
	e.stats.Searches++
	return e.lookup(key)
}

// lookup is Read without the search-statistics side effect (insert
// uses it for duplicate detection).
func (e *Engine) lookup(key uint32) (record.Record, bool, error) {
	pageIdx, _, err := e.findPrimary(key)
	if err != nil {
		return record.Record{}, false, err
	}
	p, err := e.readPage(pageIdx)
	if err != nil {
		return record.Record{}, false, err
	}
	if rec, ok := p.Find(key); ok {
		return rec, true, nil
	}

	// the chain is key-ascending: stop at the first greater key
	for addr := p.OverflowHead; addr != record.NullPointer; {
		cur, err := e.readOverflow(addr)
		if err != nil {
			return record.Record{}, false, err
		}
		if cur.Key > key {
			break
		}
		if cur.Key == key && !cur.Tombstone {
			return cur, true, nil
		}
		addr = cur.Next
	}
	return record.Record{}, false, nil
}

// Insert stores (key, payload). Returns false without side effects
// (beyond the reads of duplicate detection) when the key is live.
func (e *Engine) Insert(key, payload uint32) (bool, error) {
	if _, ok, err := e.lookup(key); err != nil {
		return false, err
	} else if ok {
		return false, nil
	}

	pageIdx, entries, err := e.findPrimary(key)
	if err != nil {
		return false, err
	}
	p, err := e.readPage(pageIdx)
	if err != nil {
		return false, err
	}

	rec := record.New(key, payload)
	switch {
	case !p.Full():
		p.Insert(rec)
		if err := e.writePage(pageIdx, p); err != nil {
			return false, err
		}
		// a new page minimum refreshes the sparse entry for this page
		if p.Slots[0].Key == key {
			for i := range entries {
				if entries[i].Page == pageIdx {
					entries[i].Key = key
				}
			}
			if err := e.saveIndex(entries); err != nil {
				return false, err
			}
		}

	case key > p.MaxKey():
		last, err := e.isLastPage(pageIdx)
		if err != nil {
			return false, err
		}
		if !last {
			if err := e.addToOverflow(pageIdx, p, rec); err != nil {
				return false, err
			}
			break
		}
		// sequential tail insert: open a fresh primary page
		np := record.NewPage(e.blocking)
		np.Insert(rec)
		newIdx := pageIdx + 1
		if err := e.writePage(newIdx, np); err != nil {
			return false, err
		}
		entries = append(entries, record.IndexEntry{Key: key, Page: newIdx})
		if err := e.saveIndex(entries); err != nil {
			return false, err
		}
		slog.Debug("isam: primary area extended", "page", newIdx, "key", key)

	default:
		if err := e.addToOverflow(pageIdx, p, rec); err != nil {
			return false, err
		}
	}

	e.stats.Inserts++
	if err := e.maybeReorganize(); err != nil {
		return false, err
	}
	return true, nil
}

// Delete tombstones the live record stored under key, in the primary
// page or in its overflow chain.
func (e *Engine) Delete(key uint32) (bool, error) {
	pageIdx, _, err := e.findPrimary(key)
	if err != nil {
		return false, err
	}
	p, err := e.readPage(pageIdx)
	if err != nil {
		return false, err
	}
	if p.Delete(key) {
		if err := e.writePage(pageIdx, p); err != nil {
			return false, err
		}
		return true, nil
	}

	for addr := p.OverflowHead; addr != record.NullPointer; {
		cur, err := e.readOverflow(addr)
		if err != nil {
			return false, err
		}
		if cur.Key > key {
			break
		}
		if cur.Key == key && !cur.Tombstone {
			cur.Tombstone = true
			if err := e.writeOverflow(addr, cur); err != nil {
				return false, err
			}
			return true, nil
		}
		addr = cur.Next
	}
	return false, nil
}

// Update rewrites the payload stored under key as a delete followed by
// an insert. A missing key makes the whole update a no-op.
func (e *Engine) Update(key, payload uint32) (bool, error) {
	if _, ok, err := e.lookup(key); err != nil || !ok {
		return false, err
	}
	if _, err := e.Delete(key); err != nil {
		return false, err
	}
	return e.Insert(key, payload)
}

// Browse calls fn for every live record in ascending key order.
func (e *Engine) Browse(fn func(record.Record)) error {
	pages, err := e.primaryPages()
	if err != nil {
		return err
	}
	for i := 0; i < pages; i++ {
		recs, err := e.pageRecords(int32(i))
		if err != nil {
			return err
		}
		for _, r := range recs {
			fn(r)
		}
	}
	return nil
}

// Clear deletes the three files and reinitializes the bootstrap
// structure. Counters and statistics are untouched.
func (e *Engine) Clear() error {
	for _, dev := range []*storage.BlockDevice{e.primary, e.overflow, e.index} {
		if err := dev.Remove(); err != nil {
			return err
		}
		if err := dev.Reopen(); err != nil {
			return err
		}
	}
	return e.initStructure()
}

// isLastPage reports whether i is the final page of the primary area.
func (e *Engine) isLastPage(i int32) (bool, error) {
	pages, err := e.primaryPages()
	if err != nil {
		return false, err
	}
	return int(i) == pages-1, nil
}

// maybeReorganize fires a reorganization once the overflow area both
// exceeds the minimum-size guard and crosses the V/N ratio threshold.
func (e *Engine) maybeReorganize() error {
	v, err := e.overflowSize()
	if err != nil {
		return err
	}
	pages, err := e.primaryPages()
	if err != nil {
		return err
	}
	nCap := pages * e.blocking
	if nCap > 0 && v > minOverflowForReorg && float64(v)/float64(nCap) >= e.threshold {
		slog.Debug("isam: auto reorganization", "v", v, "nCap", nCap, "threshold", e.threshold)
		return e.Reorganize()
	}
	return nil
}

func (e *Engine) String() string {
	return fmt.Sprintf("isam(%s b=%d alpha=%.2f threshold=%.2f)", e.prefix, e.blocking, e.alpha, e.threshold)
}
