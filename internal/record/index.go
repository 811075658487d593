package record

import "github.com/tuannm99/pagedb/internal/alias/bx"

const (
	// IndexFanout is the entry capacity of one index page, chosen so an
	// index page is comparable in size to a primary page.
	IndexFanout = 128

	IndexEntrySize = 8 // key + page number

	// IndexPageSize is count (i32) followed by IndexFanout fixed entries.
	IndexPageSize = 4 + IndexFanout*IndexEntrySize
)

// IndexEntry maps the smallest key residing on a primary page (as of
// the most recent reorganization) to that page. Entries are kept in
// ascending key order; lookup is "last entry whose key <= target".
type IndexEntry struct {
	Key  uint32
	Page int32
}

// EncodeIndexPage writes up to IndexFanout entries into buf, which
// must hold IndexPageSize bytes. Unused entry slots are zeroed.
func EncodeIndexPage(entries []IndexEntry, buf []byte) {
	clear(buf[:IndexPageSize])
	bx.PutI32At(buf, 0, int32(len(entries)))
	for i, ent := range entries {
		off := 4 + i*IndexEntrySize
		bx.PutU32At(buf, off, ent.Key)
		bx.PutI32At(buf, off+4, ent.Page)
	}
}

// DecodeIndexPage returns the first count entries of an index page.
func DecodeIndexPage(buf []byte) []IndexEntry {
	count := int(bx.I32At(buf, 0))
	if count < 0 {
		count = 0
	}
	if count > IndexFanout {
		count = IndexFanout
	}
	entries := make([]IndexEntry, count)
	for i := range entries {
		off := 4 + i*IndexEntrySize
		entries[i] = IndexEntry{
			Key:  bx.U32At(buf, off),
			Page: bx.I32At(buf, off+4),
		}
	}
	return entries
}
