// Package record holds the fixed-width on-disk codecs shared by the
// ISAM engine: the record itself, the primary page and the sparse
// index entry. All integers are little-endian.
package record

import (
	"fmt"

	"github.com/tuannm99/pagedb/internal/alias/bx"
)

const (
	// NullPointer terminates an overflow chain.
	NullPointer int32 = -1

	// Size is the fixed record width: key, payload, chain pointer, a
	// tombstone byte and three bytes of padding.
	Size = 16
)

// Record is the unit of both the primary and the overflow area. Key is
// the lookup attribute, Payload opaque data, Next the offset of the
// following record in the page's overflow chain.
type Record struct {
	Key       uint32
	Payload   uint32
	Next      int32
	Tombstone bool
}

// New returns a live record with an unlinked chain pointer.
func New(key, payload uint32) Record {
	return Record{Key: key, Payload: payload, Next: NullPointer}
}

// Encode writes the record into the first Size bytes of buf.
func (r Record) Encode(buf []byte) {
	bx.PutU32At(buf, 0, r.Key)
	bx.PutU32At(buf, 4, r.Payload)
	bx.PutI32At(buf, 8, r.Next)
	if r.Tombstone {
		buf[12] = 1
	} else {
		buf[12] = 0
	}
	buf[13], buf[14], buf[15] = 0, 0, 0
}

// Decode reads a record from the first Size bytes of buf.
func Decode(buf []byte) Record {
	return Record{
		Key:       bx.U32At(buf, 0),
		Payload:   bx.U32At(buf, 4),
		Next:      bx.I32At(buf, 8),
		Tombstone: buf[12] != 0,
	}
}

func (r Record) String() string {
	if r.Tombstone {
		return "[DELETED]"
	}
	s := fmt.Sprintf("K:%d D:%d", r.Key, r.Payload)
	if r.Next != NullPointer {
		s += fmt.Sprintf(" ->%d", r.Next)
	}
	return s
}
