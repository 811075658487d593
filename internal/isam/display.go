package isam

import (
	"fmt"
	"io"
)

// Display renders the whole structure for diagnostics: every primary
// page followed by its overflow chain, then the index entries.
func (e *Engine) Display(w io.Writer) error {
	pages, err := e.primaryPages()
	if err != nil {
		return err
	}
	for i := 0; i < pages; i++ {
		p, err := e.readPage(int32(i))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Page %d: %s\n", i, p)

		chain, err := e.chainRecords(p.OverflowHead)
		if err != nil {
			return err
		}
		for _, r := range chain {
			fmt.Fprintf(w, "    OV: %s\n", r)
		}
	}

	entries, err := e.loadIndex()
	if err != nil {
		return err
	}
	fmt.Fprint(w, "Index:")
	for _, ent := range entries {
		fmt.Fprintf(w, " (%d -> p%d)", ent.Key, ent.Page)
	}
	fmt.Fprintln(w)

	v, err := e.overflowSize()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Primary pages: %d, overflow records: %d\n", pages, v)
	return nil
}
