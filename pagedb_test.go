package pagedb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end through the facade: load, sort, store, reorganize.

func TestSortFacade(t *testing.T) {
	c := &Counters{}
	tape, err := OpenTape(filepath.Join(t.TempDir(), "tape.bin"), 16, c)
	require.NoError(t, err)
	defer tape.Close()

	require.NoError(t, tape.LoadValues([]uint32{9, 3, 7, 1, 8, 2, 6, 4, 5}))

	s, err := NewSorter(tape, 2)
	require.NoError(t, err)
	require.NoError(t, s.Sort())

	want := []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	var got []uint32
	total, err := tape.TotalPages()
	require.NoError(t, err)
	for i := 0; i < total; i++ {
		vals, err := tape.ReadPage(i)
		require.NoError(t, err)
		got = append(got, vals...)
	}
	assert.Equal(t, want, got)
	assert.Greater(t, c.Reads, int64(0))
	assert.Greater(t, c.Writes, int64(0))
}

func TestStoreFacade(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "db"), StoreOptions{
		Blocking:  4,
		Alpha:     0.5,
		Threshold: 0.2,
	})
	require.NoError(t, err)
	defer store.Close()

	for _, k := range []uint32{10, 20, 30, 40, 50, 60, 70, 80, 35, 15, 25, 45, 55, 65} {
		ok, err := store.Insert(k, k+1000)
		require.NoError(t, err)
		require.True(t, ok)
	}

	// the overflow growth crossed the threshold along the way
	assert.Equal(t, int64(1), store.Stats().Reorgs)

	rec, found, err := store.Read(35)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint32(1035), rec.Payload)

	var keys []uint32
	require.NoError(t, store.Browse(func(r Record) {
		keys = append(keys, r.Key)
	}))
	assert.Len(t, keys, 14)
}
