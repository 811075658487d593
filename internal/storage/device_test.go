package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPageSize   = 32
	testRecordSize = 8
)

func newDevice(t *testing.T) (*BlockDevice, *Counters) {
	t.Helper()

	c := &Counters{}
	dev, err := OpenDevice(filepath.Join(t.TempDir(), "dev.bin"), testPageSize, testRecordSize, c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	return dev, c
}

func pageOf(b byte) []byte {
	buf := make([]byte, testPageSize)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestPageRoundTrip(t *testing.T) {
	dev, c := newDevice(t)

	require.NoError(t, dev.WritePage(0, pageOf(0xaa)))
	require.NoError(t, dev.WritePage(1, pageOf(0xbb)))

	buf := make([]byte, testPageSize)
	require.NoError(t, dev.ReadPage(1, buf))
	assert.Equal(t, pageOf(0xbb), buf)

	pages, err := dev.SizeInPages()
	require.NoError(t, err)
	assert.Equal(t, 2, pages)

	assert.Equal(t, int64(1), c.Reads)
	assert.Equal(t, int64(2), c.Writes)
}

func TestReadPastEOF(t *testing.T) {
	dev, c := newDevice(t)

	buf := make([]byte, testPageSize)
	require.ErrorIs(t, dev.ReadPage(0, buf), ErrNoSuchPage)

	require.NoError(t, dev.WritePage(0, pageOf(1)))
	require.ErrorIs(t, dev.ReadPage(1, buf), ErrNoSuchPage)

	// a failed read is not counted
	assert.Equal(t, int64(0), c.Reads)
}

func TestShortTailIsNoSuchPage(t *testing.T) {
	dev, _ := newDevice(t)

	require.NoError(t, dev.WritePage(0, pageOf(1)))

	// a trailing partial page is not readable as a page
	rec := make([]byte, testRecordSize)
	require.NoError(t, dev.WriteRecord(testPageSize/testRecordSize, rec))

	buf := make([]byte, testPageSize)
	require.ErrorIs(t, dev.ReadPage(1, buf), ErrNoSuchPage)
}

func TestWriteExtendsFile(t *testing.T) {
	dev, _ := newDevice(t)

	require.NoError(t, dev.WritePage(3, pageOf(7)))

	pages, err := dev.SizeInPages()
	require.NoError(t, err)
	assert.Equal(t, 4, pages)
}

func TestAppendRecord(t *testing.T) {
	dev, c := newDevice(t)

	rec := make([]byte, testRecordSize)
	for want := 0; want < 5; want++ {
		rec[0] = byte(want)
		i, err := dev.AppendRecord(rec)
		require.NoError(t, err)
		assert.Equal(t, want, i)
	}

	n, err := dev.SizeInRecords()
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	got := make([]byte, testRecordSize)
	require.NoError(t, dev.ReadRecord(3, got))
	assert.Equal(t, byte(3), got[0])

	assert.Equal(t, int64(1), c.Reads)
	assert.Equal(t, int64(5), c.Writes)
}

func TestClearKeepsCounters(t *testing.T) {
	dev, c := newDevice(t)

	require.NoError(t, dev.WritePage(0, pageOf(1)))
	writes := c.Writes

	require.NoError(t, dev.Clear())

	pages, err := dev.SizeInPages()
	require.NoError(t, err)
	assert.Equal(t, 0, pages)
	assert.Equal(t, writes, c.Writes)
}

func TestReplaceWith(t *testing.T) {
	dir := t.TempDir()
	c := &Counters{}

	dev, err := OpenDevice(filepath.Join(dir, "live.bin"), testPageSize, testRecordSize, c)
	require.NoError(t, err)
	require.NoError(t, dev.WritePage(0, pageOf(0x11)))

	scratch, err := OpenDevice(filepath.Join(dir, "scratch.bin"), testPageSize, testRecordSize, c)
	require.NoError(t, err)
	require.NoError(t, scratch.WritePage(0, pageOf(0x22)))
	require.NoError(t, scratch.WritePage(1, pageOf(0x33)))

	require.NoError(t, dev.ReplaceWith(scratch))

	// the live device now sees the scratch contents through a fresh handle
	buf := make([]byte, testPageSize)
	require.NoError(t, dev.ReadPage(1, buf))
	assert.Equal(t, pageOf(0x33), buf)

	_, err = os.Stat(filepath.Join(dir, "scratch.bin"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, dev.Close())
}

func TestCountersDiff(t *testing.T) {
	c := &Counters{Reads: 10, Writes: 4}
	before := c.Snapshot()

	c.Reads += 5
	c.Writes += 2

	d := c.Diff(before)
	assert.Equal(t, int64(5), d.Reads)
	assert.Equal(t, int64(2), d.Writes)
}
