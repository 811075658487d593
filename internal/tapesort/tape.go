// Package tapesort implements the external k-way merge sort over a
// tape of fixed-width unsigned records. The tape is a file of
// fixed-size pages, each holding pageSize/4 little-endian u32 slots;
// the value zero marks an empty slot and is never a record.
package tapesort

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/tuannm99/pagedb/internal/alias/bx"
	"github.com/tuannm99/pagedb/internal/alias/util"
	"github.com/tuannm99/pagedb/internal/storage"
)

const slotWidth = 4 // one u32 per slot

// Tape wraps a block device with value-level page access.
type Tape struct {
	dev            *storage.BlockDevice
	recordsPerPage int
}

// OpenTape opens (creating if absent) the tape file at path. pageSize
// is in bytes and must be a positive multiple of the 4-byte slot
// width. A nil Counters binds the tape to storage.Global.
func OpenTape(path string, pageSize int, c *storage.Counters) (*Tape, error) {
	if pageSize < slotWidth || pageSize%slotWidth != 0 {
		return nil, fmt.Errorf("tapesort: page size must be a positive multiple of %d, got %d", slotWidth, pageSize)
	}
	dev, err := storage.OpenDevice(path, pageSize, slotWidth, c)
	if err != nil {
		return nil, err
	}
	return &Tape{dev: dev, recordsPerPage: pageSize / slotWidth}, nil
}

func (t *Tape) Path() string        { return t.dev.Path() }
func (t *Tape) PageSize() int       { return t.dev.PageSize() }
func (t *Tape) RecordsPerPage() int { return t.recordsPerPage }

// TotalPages returns the tape length in whole pages.
func (t *Tape) TotalPages() (int, error) { return t.dev.SizeInPages() }

func (t *Tape) Close() error  { return t.dev.Close() }
func (t *Tape) Remove() error { return t.dev.Remove() }

// ReadPage returns the non-empty values of page n in slot order.
func (t *Tape) ReadPage(n int) ([]uint32, error) {
	buf := make([]byte, t.dev.PageSize())
	if err := t.dev.ReadPage(n, buf); err != nil {
		return nil, err
	}
	vals := make([]uint32, 0, t.recordsPerPage)
	for i := 0; i < t.recordsPerPage; i++ {
		if v := bx.U32At(buf, i*slotWidth); v != 0 {
			vals = append(vals, v)
		}
	}
	return vals, nil
}

// WritePage stores vals into page n, zero-filling the unused trailing
// slots.
func (t *Tape) WritePage(n int, vals []uint32) error {
	if len(vals) > t.recordsPerPage {
		return fmt.Errorf("tapesort: %d values exceed page capacity %d", len(vals), t.recordsPerPage)
	}
	buf := make([]byte, t.dev.PageSize())
	for i, v := range vals {
		bx.PutU32At(buf, i*slotWidth, v)
	}
	return t.dev.WritePage(n, buf)
}

// replaceWith swaps the scratch tape's file over this tape's file.
func (t *Tape) replaceWith(scratch *Tape) error {
	return t.dev.ReplaceWith(scratch.dev)
}

// LoadValues rewrites the tape contents from vals, packed into full
// pages with a zero-padded tail.
func (t *Tape) LoadValues(vals []uint32) error {
	if err := t.dev.Clear(); err != nil {
		return err
	}
	for off := 0; off < len(vals); off += t.recordsPerPage {
		end := min(off+t.recordsPerPage, len(vals))
		if err := t.WritePage(off/t.recordsPerPage, vals[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// GenerateRandom fills the tape with n random values in [1, 9].
func (t *Tape) GenerateRandom(n int) error {
	vals := make([]uint32, n)
	for i := range vals {
		vals[i] = uint32(rand.IntN(9) + 1)
	}
	return t.LoadValues(vals)
}

// LoadCSV fills the tape from a text file of comma-separated decimals.
// Tokens that do not parse as u32 are skipped.
func (t *Tape) LoadCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("tapesort: open load file: %w", err)
	}
	defer util.CloseQuietly(f)

	var vals []uint32
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		vals = append(vals, ParseValues(strings.ReplaceAll(sc.Text(), ",", " "))...)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("tapesort: read load file: %w", err)
	}
	return t.LoadValues(vals)
}

// ParseValues parses whitespace-separated decimals, skipping tokens
// that do not parse as u32. A trailing ';' on any token is stripped
// (keyboard loader terminator).
func ParseValues(line string) []uint32 {
	var vals []uint32
	for _, tok := range strings.Fields(line) {
		tok = strings.TrimSuffix(tok, ";")
		if tok == "" {
			continue
		}
		v, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			continue
		}
		vals = append(vals, uint32(v))
	}
	return vals
}

// DisplayString renders the whole tape, one '|'-delimited group per
// page, empty slots as '_'. The rendering reads the file through its
// own handle and does not touch the I/O counters.
func (t *Tape) DisplayString() (string, error) {
	data, err := os.ReadFile(t.dev.Path())
	if err != nil {
		return "", fmt.Errorf("tapesort: display: %w", err)
	}

	var b strings.Builder
	b.WriteString("| ")
	for i := 0; i+slotWidth <= len(data); i += slotWidth {
		if v := bx.U32(data[i:]); v == 0 {
			b.WriteString("_ ")
		} else {
			fmt.Fprintf(&b, "%d ", v)
		}
		if (i/slotWidth+1)%t.recordsPerPage == 0 {
			b.WriteString("| ")
		}
	}
	return strings.TrimRight(b.String(), " "), nil
}
