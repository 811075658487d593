package storage

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"
)

const FileMode0644 = 0o644 // rw-r--r--

var (
	// ErrNoSuchPage is returned when a page read runs past EOF. Callers
	// iterating pages use it as the natural stop condition.
	ErrNoSuchPage = errors.New("storage: no such page")

	// ErrNoSuchRecord is the record-granularity counterpart, used by the
	// overflow area.
	ErrNoSuchRecord = errors.New("storage: no such record")
)

// BlockDevice is a byte-addressable file accessed only in fixed-size
// units: whole pages at integer page offsets and single records at
// integer record offsets. Every successful unit transfer ticks the
// bound Counters, so an algorithm's cost is readable off the counter
// deltas.
type BlockDevice struct {
	path       string
	file       *os.File
	pageSize   int
	recordSize int
	counters   *Counters
}

// OpenDevice opens (creating if absent) the file at path. A nil
// Counters binds the device to the process-wide Global set.
func OpenDevice(path string, pageSize, recordSize int, c *Counters) (*BlockDevice, error) {
	if pageSize <= 0 || recordSize <= 0 {
		return nil, fmt.Errorf("storage: invalid unit sizes page=%d record=%d", pageSize, recordSize)
	}
	if c == nil {
		c = Global
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode0644)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", path, err)
	}
	return &BlockDevice{
		path:       path,
		file:       file,
		pageSize:   pageSize,
		recordSize: recordSize,
		counters:   c,
	}, nil
}

func (d *BlockDevice) Path() string        { return d.path }
func (d *BlockDevice) PageSize() int       { return d.pageSize }
func (d *BlockDevice) RecordSize() int     { return d.recordSize }
func (d *BlockDevice) Counters() *Counters { return d.counters }

// ReadPage fills buf (exactly one page) from page i.
func (d *BlockDevice) ReadPage(i int, buf []byte) error {
	if len(buf) != d.pageSize {
		return fmt.Errorf("storage: page buffer must be %d bytes, got %d", d.pageSize, len(buf))
	}
	if err := d.readUnit(buf, int64(i)*int64(d.pageSize)); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrNoSuchPage
		}
		return fmt.Errorf("read page %d of %s: %w", i, d.path, err)
	}
	d.counters.Reads++
	return nil
}

// WritePage stores buf (exactly one page) at page i, extending the
// file when i is past the current end.
func (d *BlockDevice) WritePage(i int, buf []byte) error {
	if len(buf) != d.pageSize {
		return fmt.Errorf("storage: page buffer must be %d bytes, got %d", d.pageSize, len(buf))
	}
	if _, err := d.file.WriteAt(buf, int64(i)*int64(d.pageSize)); err != nil {
		return fmt.Errorf("write page %d of %s: %w", i, d.path, err)
	}
	d.counters.Writes++
	return nil
}

// ReadRecord fills buf (exactly one record) from record i.
func (d *BlockDevice) ReadRecord(i int, buf []byte) error {
	if len(buf) != d.recordSize {
		return fmt.Errorf("storage: record buffer must be %d bytes, got %d", d.recordSize, len(buf))
	}
	if err := d.readUnit(buf, int64(i)*int64(d.recordSize)); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrNoSuchRecord
		}
		return fmt.Errorf("read record %d of %s: %w", i, d.path, err)
	}
	d.counters.Reads++
	return nil
}

// WriteRecord stores buf (exactly one record) at record i.
func (d *BlockDevice) WriteRecord(i int, buf []byte) error {
	if len(buf) != d.recordSize {
		return fmt.Errorf("storage: record buffer must be %d bytes, got %d", d.recordSize, len(buf))
	}
	if _, err := d.file.WriteAt(buf, int64(i)*int64(d.recordSize)); err != nil {
		return fmt.Errorf("write record %d of %s: %w", i, d.path, err)
	}
	d.counters.Writes++
	return nil
}

// AppendRecord stores buf after the last record and returns its index,
// taken before the write.
func (d *BlockDevice) AppendRecord(buf []byte) (int, error) {
	if len(buf) != d.recordSize {
		return 0, fmt.Errorf("storage: record buffer must be %d bytes, got %d", d.recordSize, len(buf))
	}
	size, err := d.sizeBytes()
	if err != nil {
		return 0, err
	}
	i := int(size / int64(d.recordSize))
	if _, err := d.file.WriteAt(buf, size); err != nil {
		return 0, fmt.Errorf("append record to %s: %w", d.path, err)
	}
	d.counters.Writes++
	return i, nil
}

// SizeInPages returns the file length in whole pages, rounded down.
func (d *BlockDevice) SizeInPages() (int, error) {
	size, err := d.sizeBytes()
	if err != nil {
		return 0, err
	}
	return int(size / int64(d.pageSize)), nil
}

// SizeInRecords returns the file length in whole records, rounded down.
func (d *BlockDevice) SizeInRecords() (int, error) {
	size, err := d.sizeBytes()
	if err != nil {
		return 0, err
	}
	return int(size / int64(d.recordSize)), nil
}

// Clear truncates the file to zero length. Counters are untouched.
func (d *BlockDevice) Clear() error {
	if err := d.file.Truncate(0); err != nil {
		return fmt.Errorf("clear %s: %w", d.path, err)
	}
	return nil
}

// Close releases the file handle. The device can be revived with
// Reopen.
func (d *BlockDevice) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", d.path, err)
	}
	return nil
}

// Reopen re-acquires the file handle. Mandatory after the backing file
// was renamed over; the engines never hold a stale handle across a
// filename-level rename.
func (d *BlockDevice) Reopen() error {
	if d.file != nil {
		if err := d.Close(); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(d.path, os.O_RDWR|os.O_CREATE, FileMode0644)
	if err != nil {
		return fmt.Errorf("reopen %s: %w", d.path, err)
	}
	d.file = file
	return nil
}

// ReplaceWith atomically renames the scratch device's file over this
// device's file, then reopens this device. The scratch device is left
// closed; its path no longer exists.
func (d *BlockDevice) ReplaceWith(scratch *BlockDevice) error {
	if err := scratch.Close(); err != nil {
		return err
	}
	if err := d.Close(); err != nil {
		return err
	}
	if err := atomic.ReplaceFile(scratch.path, d.path); err != nil {
		return fmt.Errorf("replace %s with %s: %w", d.path, scratch.path, err)
	}
	return d.Reopen()
}

// Remove closes the device and deletes the backing file.
func (d *BlockDevice) Remove() error {
	if err := d.Close(); err != nil {
		return err
	}
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", d.path, err)
	}
	return nil
}

func (d *BlockDevice) readUnit(buf []byte, off int64) error {
	n, err := d.file.ReadAt(buf, off)
	if err != nil {
		if err == io.EOF && n > 0 {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

func (d *BlockDevice) sizeBytes() (int64, error) {
	info, err := d.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", d.path, err)
	}
	return info.Size(), nil
}
