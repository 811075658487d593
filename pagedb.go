// Package pagedb bundles two coupled disk-resident data engines that
// share one page-I/O accounting model: an external k-way merge sort
// over tapes of fixed-width unsigned records, and an ISAM key/value
// store with a sparse index, per-page overflow chains and fill-factor
// reorganization.
package pagedb

import (
	"github.com/tuannm99/pagedb/internal/isam"
	"github.com/tuannm99/pagedb/internal/record"
	"github.com/tuannm99/pagedb/internal/storage"
	"github.com/tuannm99/pagedb/internal/tapesort"
)

type (
	Record       = record.Record
	IndexEntry   = record.IndexEntry
	Counters     = storage.Counters
	Tape         = tapesort.Tape
	Sorter       = tapesort.Sorter
	Store        = isam.Engine
	StoreOptions = isam.Options
	StoreStats   = isam.Stats
)

// OpenTape opens a sort tape at path with pages of pageSize bytes.
func OpenTape(path string, pageSize int, c *Counters) (*Tape, error) {
	return tapesort.OpenTape(path, pageSize, c)
}

// NewSorter binds an external merge sorter to a tape with the given
// number of in-memory page buffers.
func NewSorter(t *Tape, buffers int) (*Sorter, error) {
	return tapesort.NewSorter(t, buffers)
}

// OpenStore opens the ISAM store rooted at the filename prefix.
func OpenStore(prefix string, opts StoreOptions) (*Store, error) {
	return isam.Open(prefix, opts)
}
