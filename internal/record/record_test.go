package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEncodeDecode(t *testing.T) {
	buf := make([]byte, Size)

	r := Record{Key: 42, Payload: 9001, Next: 17, Tombstone: false}
	r.Encode(buf)
	assert.Equal(t, r, Decode(buf))

	// chain sentinel and tombstone survive the trip
	r = Record{Key: 1, Payload: 2, Next: NullPointer, Tombstone: true}
	r.Encode(buf)
	got := Decode(buf)
	assert.Equal(t, NullPointer, got.Next)
	assert.True(t, got.Tombstone)
}

func TestRecordEncodeZeroesPadding(t *testing.T) {
	buf := make([]byte, Size)
	for i := range buf {
		buf[i] = 0xff
	}

	New(7, 7).Encode(buf)
	assert.Equal(t, []byte{0, 0, 0}, buf[13:16])
}

func TestRecordString(t *testing.T) {
	assert.Equal(t, "K:10 D:20", New(10, 20).String())
	assert.Equal(t, "K:10 D:20 ->3", Record{Key: 10, Payload: 20, Next: 3}.String())
	assert.Equal(t, "[DELETED]", Record{Key: 10, Tombstone: true}.String())
}

func TestPageInsertKeepsOrder(t *testing.T) {
	p := NewPage(4)

	for _, k := range []uint32{30, 10, 40, 20} {
		require.True(t, p.Insert(New(k, k)))
	}
	assert.True(t, p.Full())

	keys := make([]uint32, 0, 4)
	for i := 0; i < int(p.Count); i++ {
		keys = append(keys, p.Slots[i].Key)
	}
	assert.Equal(t, []uint32{10, 20, 30, 40}, keys)

	// full page rejects
	assert.False(t, p.Insert(New(25, 25)))
	assert.Equal(t, int32(4), p.Count)
}

func TestPageFindDelete(t *testing.T) {
	p := NewPage(4)
	p.Insert(New(10, 100))
	p.Insert(New(20, 200))

	rec, ok := p.Find(20)
	require.True(t, ok)
	assert.Equal(t, uint32(200), rec.Payload)

	_, ok = p.Find(30)
	assert.False(t, ok)

	require.True(t, p.Delete(20))
	_, ok = p.Find(20)
	assert.False(t, ok)

	// already tombstoned
	assert.False(t, p.Delete(20))

	// the slot still occupies the page
	assert.Equal(t, int32(2), p.Count)
	assert.Equal(t, []Record{{Key: 10, Payload: 100, Next: NullPointer}}, p.Live())
}

func TestPageEncodeDecode(t *testing.T) {
	p := NewPage(4)
	p.OverflowHead = 7
	p.Insert(Record{Key: 5, Payload: 50, Next: NullPointer})
	p.Insert(Record{Key: 9, Payload: 90, Next: 2, Tombstone: true})

	buf := make([]byte, PageSize(4))
	p.Encode(buf)

	got := DecodePage(buf, 4)
	assert.Equal(t, int32(2), got.Count)
	assert.Equal(t, int32(7), got.OverflowHead)
	assert.Equal(t, p.Slots[:2], got.Slots[:2])

	// trailing slots come back zero regardless of on-disk garbage
	buf[PageSize(4)-1] = 0xff
	got = DecodePage(buf, 4)
	assert.Equal(t, Record{}, got.Slots[3])
}

func TestPageString(t *testing.T) {
	p := NewPage(4)
	p.Insert(New(10, 1))
	p.Insert(New(20, 2))
	p.Insert(New(30, 3))
	p.Delete(20)

	assert.Equal(t, "[ 10 XX 30 -- ]", p.String())

	p.OverflowHead = 5
	assert.Equal(t, "[ 10 XX 30 -- ] -> OV: 5", p.String())
}

func TestIndexPageRoundTrip(t *testing.T) {
	entries := []IndexEntry{
		{Key: 0, Page: 0},
		{Key: 50, Page: 1},
		{Key: 110, Page: 2},
	}

	buf := make([]byte, IndexPageSize)
	EncodeIndexPage(entries, buf)
	assert.Equal(t, entries, DecodeIndexPage(buf))

	// full fanout still fits
	full := make([]IndexEntry, IndexFanout)
	for i := range full {
		full[i] = IndexEntry{Key: uint32(i * 10), Page: int32(i)}
	}
	EncodeIndexPage(full, buf)
	assert.Equal(t, full, DecodeIndexPage(buf))
}
