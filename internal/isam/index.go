package isam

import (
	"errors"

	"github.com/tuannm99/pagedb/internal/record"
	"github.com/tuannm99/pagedb/internal/storage"
)

// saveIndex rewrites the index file from the in-memory entry list,
// chunked into fixed-capacity index pages.
func (e *Engine) saveIndex(entries []record.IndexEntry) error {
	if err := e.index.Clear(); err != nil {
		return err
	}
	buf := make([]byte, record.IndexPageSize)
	for page, off := 0, 0; off < len(entries); page, off = page+1, off+record.IndexFanout {
		end := min(off+record.IndexFanout, len(entries))
		record.EncodeIndexPage(entries[off:end], buf)
		if err := e.index.WritePage(page, buf); err != nil {
			return err
		}
	}
	return nil
}

// loadIndex reads index pages in order until the file runs out and
// concatenates their entries.
func (e *Engine) loadIndex() ([]record.IndexEntry, error) {
	var entries []record.IndexEntry
	buf := make([]byte, record.IndexPageSize)
	for page := 0; ; page++ {
		err := e.index.ReadPage(page, buf)
		if errors.Is(err, storage.ErrNoSuchPage) {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, record.DecodeIndexPage(buf)...)
	}
	return entries, nil
}

// findPrimary routes a key through the sparse index: the page of the
// last entry whose key does not exceed the target. An empty index
// yields page 0. The loaded entries are returned so a caller mutating
// the index does not pay a second load.
func (e *Engine) findPrimary(key uint32) (int32, []record.IndexEntry, error) {
	entries, err := e.loadIndex()
	if err != nil {
		return 0, nil, err
	}
	var page int32
	for _, ent := range entries {
		if ent.Key > key {
			break
		}
		page = ent.Page
	}
	return page, entries, nil
}
