package record

import (
	"fmt"
	"strings"

	"github.com/tuannm99/pagedb/internal/alias/bx"
)

const pageHeaderSize = 8 // count + overflow head

// Page is an in-memory primary page: up to B key-sorted slots, a
// per-slot tombstone and the head of this page's overflow chain.
//
// On disk: count (i32), overflow head (i32), then exactly B record
// slots. Slots past count are written zeroed and ignored on read.
type Page struct {
	Count        int32
	OverflowHead int32
	Slots        []Record
}

// NewPage returns an empty page with the given blocking factor.
func NewPage(blocking int) *Page {
	return &Page{
		OverflowHead: NullPointer,
		Slots:        make([]Record, blocking),
	}
}

// PageSize is the on-disk size of a primary page for a blocking
// factor.
func PageSize(blocking int) int { return pageHeaderSize + blocking*Size }

// Blocking is the page's slot capacity B.
func (p *Page) Blocking() int { return len(p.Slots) }

// Full reports whether every slot is occupied.
func (p *Page) Full() bool { return int(p.Count) == len(p.Slots) }

// MaxKey returns the largest occupied key. Only meaningful when
// Count > 0.
func (p *Page) MaxKey() uint32 {
	return p.Slots[p.Count-1].Key
}

// Insert places rec keeping the occupied slots key-ascending. Returns
// false when the page is full.
func (p *Page) Insert(rec Record) bool {
	if p.Full() {
		return false
	}
	i := int(p.Count) - 1
	for i >= 0 && p.Slots[i].Key > rec.Key {
		p.Slots[i+1] = p.Slots[i]
		i--
	}
	p.Slots[i+1] = rec
	p.Count++
	return true
}

// Find returns the live record stored under key.
func (p *Page) Find(key uint32) (Record, bool) {
	for i := 0; i < int(p.Count); i++ {
		if !p.Slots[i].Tombstone && p.Slots[i].Key == key {
			return p.Slots[i], true
		}
	}
	return Record{}, false
}

// Delete tombstones the live record stored under key in place.
func (p *Page) Delete(key uint32) bool {
	for i := 0; i < int(p.Count); i++ {
		if !p.Slots[i].Tombstone && p.Slots[i].Key == key {
			p.Slots[i].Tombstone = true
			return true
		}
	}
	return false
}

// Live returns the non-tombstoned records in slot order.
func (p *Page) Live() []Record {
	out := make([]Record, 0, p.Count)
	for i := 0; i < int(p.Count); i++ {
		if !p.Slots[i].Tombstone {
			out = append(out, p.Slots[i])
		}
	}
	return out
}

// Encode writes the page into buf, which must hold PageSize(B) bytes.
// Unoccupied trailing slots are zeroed.
func (p *Page) Encode(buf []byte) {
	bx.PutI32At(buf, 0, p.Count)
	bx.PutI32At(buf, 4, p.OverflowHead)
	for i := range p.Slots {
		off := pageHeaderSize + i*Size
		if i < int(p.Count) {
			p.Slots[i].Encode(buf[off:])
		} else {
			clear(buf[off : off+Size])
		}
	}
}

// DecodePage reads a page with the given blocking factor from buf.
// Bytes past the occupied slots are ignored.
func DecodePage(buf []byte, blocking int) *Page {
	p := NewPage(blocking)
	p.Count = bx.I32At(buf, 0)
	p.OverflowHead = bx.I32At(buf, 4)
	if p.Count < 0 {
		p.Count = 0
	}
	if int(p.Count) > blocking {
		p.Count = int32(blocking)
	}
	for i := 0; i < int(p.Count); i++ {
		p.Slots[i] = Decode(buf[pageHeaderSize+i*Size:])
	}
	return p
}

// String renders the page for diagnostics: tombstoned slots as XX,
// the empty tail as --, the overflow head when the chain is non-empty.
func (p *Page) String() string {
	var b strings.Builder
	b.WriteString("[ ")
	for i := range p.Slots {
		switch {
		case i >= int(p.Count):
			b.WriteString("-- ")
		case p.Slots[i].Tombstone:
			b.WriteString("XX ")
		default:
			fmt.Fprintf(&b, "%d ", p.Slots[i].Key)
		}
	}
	b.WriteString("]")
	if p.OverflowHead != NullPointer {
		fmt.Fprintf(&b, " -> OV: %d", p.OverflowHead)
	}
	return b.String()
}
