package isam

import (
	"github.com/tuannm99/pagedb/internal/record"
)

// addToOverflow appends rec to the overflow file and splices it into
// the page's key-ascending chain. The page is written back whenever
// its overflow head changes; the caller has already read it.
func (e *Engine) addToOverflow(pageIdx int32, p *record.Page, rec record.Record) error {
	rec.Next = record.NullPointer
	addr, err := e.appendOverflow(rec)
	if err != nil {
		return err
	}

	h := p.OverflowHead
	if h == record.NullPointer {
		p.OverflowHead = addr
		return e.writePage(pageIdx, p)
	}

	head, err := e.readOverflow(h)
	if err != nil {
		return err
	}
	if rec.Key < head.Key {
		// new chain head
		rec.Next = h
		if err := e.writeOverflow(addr, rec); err != nil {
			return err
		}
		p.OverflowHead = addr
		return e.writePage(pageIdx, p)
	}

	// walk to the splice point: first record with a greater key
	prevAddr, prev := h, head
	curAddr := head.Next
	for curAddr != record.NullPointer {
		cur, err := e.readOverflow(curAddr)
		if err != nil {
			return err
		}
		if cur.Key > rec.Key {
			break
		}
		prevAddr, prev = curAddr, cur
		curAddr = cur.Next
	}

	rec.Next = curAddr
	if err := e.writeOverflow(addr, rec); err != nil {
		return err
	}
	prev.Next = addr
	return e.writeOverflow(prevAddr, prev)
}

// chainRecords returns the whole overflow chain rooted at head, in
// chain order, tombstones included. The walk is bounded by the
// overflow file size so a corrupt (cyclic) chain surfaces as
// ErrBrokenChain instead of looping.
func (e *Engine) chainRecords(head int32) ([]record.Record, error) {
	if head == record.NullPointer {
		return nil, nil
	}
	limit, err := e.overflowSize()
	if err != nil {
		return nil, err
	}

	var recs []record.Record
	for addr := head; addr != record.NullPointer; {
		if len(recs) >= limit {
			return nil, ErrBrokenChain
		}
		cur, err := e.readOverflow(addr)
		if err != nil {
			return nil, err
		}
		recs = append(recs, cur)
		addr = cur.Next
	}
	return recs, nil
}
