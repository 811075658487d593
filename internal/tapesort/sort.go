package tapesort

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ErrTooFewBuffers rejects sorter construction below the two-buffer
// minimum (one input, one output).
var ErrTooFewBuffers = errors.New("tapesort: need at least 2 page buffers")

// Sorter runs the two-phase external merge sort over one tape with a
// fixed budget of in-memory page buffers: run creation sorts groups of
// B pages in place, then max(2, B-1)-way merge passes reduce the run
// count to one.
type Sorter struct {
	tape    *Tape
	buffers int

	// Passes counts completed merge passes.
	Passes int
}

// NewSorter binds a sorter to a tape with B page buffers.
func NewSorter(t *Tape, buffers int) (*Sorter, error) {
	if buffers < 2 {
		return nil, ErrTooFewBuffers
	}
	return &Sorter{tape: t, buffers: buffers}, nil
}

// Sort sorts the tape in place. Any page-read failure mid-merge aborts
// the sort; the tape is left in the state of the last completed pass.
func (s *Sorter) Sort() error {
	if err := s.createRuns(); err != nil {
		return err
	}
	return s.merge()
}

// createRuns sorts each group of up to `buffers` consecutive pages in
// memory and writes it back to its own page range, leaving sorted runs
// of at most `buffers` pages.
func (s *Sorter) createRuns() error {
	total, err := s.tape.TotalPages()
	if err != nil {
		return err
	}
	rpp := s.tape.RecordsPerPage()

	for start := 0; start < total; start += s.buffers {
		end := min(start+s.buffers, total)

		vals := make([]uint32, 0, (end-start)*rpp)
		for n := start; n < end; n++ {
			page, err := s.tape.ReadPage(n)
			if err != nil {
				return err
			}
			vals = append(vals, page...)
		}

		sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })

		page := start
		for off := 0; off < len(vals); off += rpp {
			if err := s.tape.WritePage(page, vals[off:min(off+rpp, len(vals))]); err != nil {
				return err
			}
			page++
		}
		// empty slots collapse forward; keep the group's page range dense
		for ; page < end; page++ {
			if err := s.tape.WritePage(page, nil); err != nil {
				return err
			}
		}

		slog.Debug("tapesort: run created",
			"firstPage", start,
			"pages", end-start,
			"records", len(vals))
	}
	return nil
}

// merge repeats max(2, buffers-1)-way merge passes through a scratch tape
// until a single run remains, swapping the scratch over the input
// after every pass.
func (s *Sorter) merge() error {
	total, err := s.tape.TotalPages()
	if err != nil {
		return err
	}

	runSize := s.buffers
	numRuns := (total + runSize - 1) / runSize
	if numRuns <= 1 {
		slog.Info("tapesort: already sorted", "runs", numRuns)
		return nil
	}
	// B-1 input buffers; with B = 2 a one-way merge cannot reduce the
	// run count, so the fan-in floors at two.
	ways := max(2, s.buffers-1)

	for numRuns > 1 {
		scratch, err := OpenTape(s.tape.Path()+".merge", s.tape.PageSize(), s.tape.dev.Counters())
		if err != nil {
			return fmt.Errorf("tapesort: open scratch tape: %w", err)
		}
		if err := scratch.dev.Clear(); err != nil {
			_ = scratch.Remove()
			return err
		}

		outPage := 0
		newRuns := 0
		for runBase := 0; runBase < numRuns; runBase += ways {
			group := min(ways, numRuns-runBase)
			if err := s.mergeGroup(scratch, runBase, group, runSize, total, &outPage); err != nil {
				_ = scratch.Remove()
				return err
			}
			newRuns++
		}

		if err := s.tape.replaceWith(scratch); err != nil {
			return err
		}

		total, err = s.tape.TotalPages()
		if err != nil {
			return err
		}
		runSize *= ways
		numRuns = newRuns
		s.Passes++

		slog.Debug("tapesort: merge pass complete",
			"pass", s.Passes,
			"runs", numRuns,
			"runSize", runSize)
	}
	return nil
}

// runCursor walks one input run page by page through a single-page
// buffer.
type runCursor struct {
	next, end int // next page to load, one past the run's last page
	buf       []uint32
	pos       int
}

// refill loads pages until a value is available or the run is spent.
// Pages holding only empty slots are skipped.
func (c *runCursor) refill(t *Tape) error {
	for c.pos >= len(c.buf) && c.next < c.end {
		vals, err := t.ReadPage(c.next)
		if err != nil {
			return err
		}
		c.next++
		c.buf, c.pos = vals, 0
	}
	return nil
}

// take returns the cursor's current value and advances, or reports the
// run exhausted.
func (c *runCursor) take() (uint32, bool) {
	if c.pos >= len(c.buf) {
		return 0, false
	}
	v := c.buf[c.pos]
	c.pos++
	return v, true
}

// heapItem pairs a value with its originating run; equal values are
// interchangeable in the output, so no tie-break is needed.
type heapItem struct {
	val uint32
	run int
}

type minHeap []heapItem

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].val < h[j].val }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(heapItem)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// mergeGroup merges `runs` consecutive runs of runSize pages starting
// at run number firstRun onto the scratch tape, advancing *outPage.
func (s *Sorter) mergeGroup(out *Tape, firstRun, runs, runSize, totalPages int, outPage *int) error {
	cursors := make([]*runCursor, runs)
	h := &minHeap{}
	for i := range cursors {
		start := (firstRun + i) * runSize
		c := &runCursor{next: start, end: min(start+runSize, totalPages)}
		if err := c.refill(s.tape); err != nil {
			return err
		}
		cursors[i] = c
		if v, ok := c.take(); ok {
			heap.Push(h, heapItem{val: v, run: i})
		}
	}

	rpp := s.tape.RecordsPerPage()
	outBuf := make([]uint32, 0, rpp)
	for h.Len() > 0 {
		it := heap.Pop(h).(heapItem)
		outBuf = append(outBuf, it.val)
		if len(outBuf) == rpp {
			if err := out.WritePage(*outPage, outBuf); err != nil {
				return err
			}
			*outPage++
			outBuf = outBuf[:0]
		}

		c := cursors[it.run]
		if err := c.refill(s.tape); err != nil {
			return err
		}
		if v, ok := c.take(); ok {
			heap.Push(h, heapItem{val: v, run: it.run})
		}
	}
	if len(outBuf) > 0 {
		if err := out.WritePage(*outPage, outBuf); err != nil {
			return err
		}
		*outPage++
	}
	return nil
}
