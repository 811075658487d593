package storage

// Counters accumulates the page and record transfers performed through
// every BlockDevice bound to it. One transfer of one unit costs one
// tick, whatever the unit size.
//
// The reorganization bookkeeper diffs two snapshots to attribute the
// I/O of a single reorganization. Counters are not safe for concurrent
// use; the engines are strictly single-threaded.
type Counters struct {
	Reads  int64
	Writes int64
}

// Global is the process-wide default counter set, used by devices
// opened with a nil Counters.
var Global = &Counters{}

// Snapshot returns a copy of the current totals.
func (c *Counters) Snapshot() Counters { return *c }

// Diff returns the I/O performed since the given snapshot.
func (c *Counters) Diff(since Counters) Counters {
	return Counters{
		Reads:  c.Reads - since.Reads,
		Writes: c.Writes - since.Writes,
	}
}

// Reset zeroes both totals.
func (c *Counters) Reset() {
	c.Reads = 0
	c.Writes = 0
}
