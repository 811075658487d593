// Command isamctl drives an ISAM store with line commands read from a
// terminal or a pipe:
//
//	i K D   insert      r K   read       u K D  update     d K  delete
//	p       print       b     browse     x      reorganize c    clear
//	rnd N   insert N unique random records
//	srnd N  search N random keys
//	q       quit (emits the STATS line)
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/tuannm99/pagedb/internal"
	"github.com/tuannm99/pagedb/internal/isam"
	"github.com/tuannm99/pagedb/internal/record"
	"github.com/tuannm99/pagedb/internal/storage"
)

const defaultPrefix = "database"

func main() {
	var (
		prefix    string
		alpha     float64
		threshold float64
		blocking  int
		verbose   bool
		cfgPath   string
	)

	flag.StringVarP(&prefix, "file", "f", "", "filename prefix for the store files")
	flag.Float64VarP(&alpha, "alpha", "a", 0, "reorganization fill factor")
	flag.Float64VarP(&threshold, "threshold", "t", 0, "V/N ratio that auto-triggers reorganization")
	flag.IntVarP(&blocking, "blocking", "b", 0, "records per primary page")
	flag.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	flag.StringVar(&cfgPath, "config", "", "path to pagedb yaml config")
	flag.Usage = usage
	flag.Parse()

	if cfgPath != "" {
		cfg, err := internal.LoadConfig(cfgPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		if prefix == "" {
			prefix = cfg.Store.Prefix
		}
		if blocking == 0 {
			blocking = cfg.Store.Blocking
		}
		if alpha == 0 {
			alpha = cfg.Store.Alpha
		}
		if threshold == 0 {
			threshold = cfg.Store.Threshold
		}
		verbose = verbose || cfg.Verbose
	}
	if prefix == "" {
		prefix = defaultPrefix
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	store, err := isam.Open(prefix, isam.Options{
		Blocking:  blocking,
		Alpha:     alpha,
		Threshold: threshold,
	})
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	interactive := liner.TerminalSupported()
	if interactive {
		fmt.Printf("ISAM store %q (b=%d alpha=%.2f threshold=%.2f)\n",
			prefix, store.Blocking(), store.Alpha(), store.Threshold())
		printMenu()
	}

	s := session{store: store, interactive: interactive, verbose: verbose}
	if interactive {
		s.runREPL()
	} else {
		s.runPiped()
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: isamctl [OPTIONS] < commands.txt
  -f, --file PREF       Set filename prefix (default: database)
  -b, --blocking N      Set records per page (default: 4)
  -a, --alpha VAL       Set alpha factor (default: 0.5)
  -t, --threshold VAL   Set reorg threshold (default: 0.2)
  -v, --verbose         Enable verbose logging
      --config FILE     Load defaults from a yaml config
`)
}

func printMenu() {
	fmt.Print(`Commands:
  i <key> <data> : Insert record
  r <key>        : Read record
  u <key> <data> : Update record
  d <key>        : Delete record
  p              : Print structure (pages & overflow)
  b              : Browse all records sequentially
  x              : Reorganize file
  c              : Clear/Reset database
  rnd <N>        : Insert N random records
  srnd <N>       : Search N random keys
  q              : Quit
`)
}

type session struct {
	store       *isam.Engine
	interactive bool
	verbose     bool
}

func (s *session) runREPL() {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	for {
		line, err := ln.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				s.emitStats()
				return
			}
			log.Fatalf("reading input: %v", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if !s.dispatch(line) {
			return
		}
	}
}

func (s *session) runPiped() {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !s.dispatch(line) {
			return
		}
	}
	if err := sc.Err(); err != nil {
		log.Fatalf("reading input: %v", err)
	}
	s.emitStats()
}

// dispatch executes one command line; it returns false on quit.
func (s *session) dispatch(line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	before := s.store.Counters().Snapshot()

	switch cmd {
	case "q":
		s.emitStats()
		return false

	case "i":
		k, d, ok := parseTwo(args)
		if !ok {
			s.complain("Usage: i <key> <data>")
			break
		}
		inserted, err := s.store.Insert(k, d)
		if err != nil {
			s.fail(err)
			break
		}
		if inserted {
			s.ops("Inserted.", before)
		} else {
			fmt.Printf("Error: Key %d already exists!\n", k)
		}

	case "r":
		k, ok := parseOne(args)
		if !ok {
			s.complain("Usage: r <key>")
			break
		}
		rec, found, err := s.store.Read(k)
		if err != nil {
			s.fail(err)
			break
		}
		if found {
			fmt.Printf("Found: %s\n", rec)
		} else {
			fmt.Println("Record not found.")
		}
		s.ops("", before)

	case "u":
		k, d, ok := parseTwo(args)
		if !ok {
			s.complain("Usage: u <key> <data>")
			break
		}
		updated, err := s.store.Update(k, d)
		if err != nil {
			s.fail(err)
			break
		}
		if updated {
			s.ops("Updated.", before)
		} else {
			fmt.Println("Record not found.")
		}

	case "d":
		k, ok := parseOne(args)
		if !ok {
			s.complain("Usage: d <key>")
			break
		}
		deleted, err := s.store.Delete(k)
		if err != nil {
			s.fail(err)
			break
		}
		if deleted {
			s.ops("Deleted.", before)
		} else {
			fmt.Println("Not found.")
		}

	case "p":
		if err := s.store.Display(os.Stdout); err != nil {
			s.fail(err)
		}

	case "b":
		err := s.store.Browse(func(r record.Record) {
			fmt.Println(r)
		})
		if err != nil {
			s.fail(err)
		}

	case "x":
		if err := s.store.Reorganize(); err != nil {
			s.fail(err)
			break
		}
		s.ops("Reorganized.", before)

	case "c":
		if err := s.store.Clear(); err != nil {
			s.fail(err)
			break
		}
		s.say("Database cleared.")

	case "rnd":
		n, ok := parseOne(args)
		if !ok {
			s.complain("Usage: rnd <N>")
			break
		}
		if err := s.insertRandom(int(n)); err != nil {
			s.fail(err)
		}

	case "srnd":
		n, ok := parseOne(args)
		if !ok {
			s.complain("Usage: srnd <N>")
			break
		}
		if err := s.searchRandom(int(n)); err != nil {
			s.fail(err)
		}

	default:
		s.complain("Unknown command.")
	}
	return true
}

// insertRandom inserts n unique random records, retrying duplicates
// and rolling the counters back so rejected attempts cost nothing.
func (s *session) insertRandom(n int) error {
	if n <= 0 {
		return nil
	}
	counters := s.store.Counters()
	start := counters.Snapshot()

	inserted := 0
	for inserted < n {
		k := uint32(rand.IntN(n*10) + 1)
		d := uint32(rand.IntN(9999) + 1)

		before := counters.Snapshot()
		ok, err := s.store.Insert(k, d)
		if err != nil {
			return err
		}
		if ok {
			inserted++
		} else {
			*counters = before
		}
	}
	d := counters.Diff(start)
	fmt.Printf("Batch complete. Inserted %d records. Disk Ops: R=%d W=%d\n", inserted, d.Reads, d.Writes)
	return nil
}

// searchRandom reads n random keys from the same key range rnd draws
// from; hits and misses both count as searches.
func (s *session) searchRandom(n int) error {
	if n <= 0 {
		return nil
	}
	start := s.store.Counters().Snapshot()

	found := 0
	for i := 0; i < n; i++ {
		k := uint32(rand.IntN(n*10) + 1)
		_, ok, err := s.store.Read(k)
		if err != nil {
			return err
		}
		if ok {
			found++
		}
	}
	d := s.store.Counters().Diff(start)
	fmt.Printf("Batch complete. Found %d of %d keys. Disk Ops: R=%d W=%d\n", found, n, d.Reads, d.Writes)
	return nil
}

func (s *session) emitStats() {
	st := s.store.Stats()
	c := s.store.Counters()
	fmt.Printf("STATS %g %g %d %d %d %d %d %d %d\n",
		s.store.Alpha(), s.store.Threshold(),
		st.Reorgs, st.Inserts, st.Searches,
		c.Reads, c.Writes, st.ReorgReads, st.ReorgWrites)
}

// ops reports the per-command disk I/O delta (verbose or interactive).
func (s *session) ops(msg string, before storage.Counters) {
	if !s.interactive && !s.verbose {
		return
	}
	d := s.store.Counters().Diff(before)
	if msg != "" {
		fmt.Printf("%s Disk Ops: R=%d W=%d\n", msg, d.Reads, d.Writes)
	} else {
		fmt.Printf("Disk Ops: R=%d W=%d\n", d.Reads, d.Writes)
	}
}

func (s *session) say(msg string) {
	if s.interactive || s.verbose {
		fmt.Println(msg)
	}
}

// complain nags about malformed input on terminals; pipes stay quiet.
func (s *session) complain(msg string) {
	if s.interactive {
		fmt.Println(msg)
	}
}

func (s *session) fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func parseOne(args []string) (uint32, bool) {
	if len(args) != 1 {
		return 0, false
	}
	v, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

func parseTwo(args []string) (uint32, uint32, bool) {
	if len(args) != 2 {
		return 0, 0, false
	}
	k, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, 0, false
	}
	d, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint32(k), uint32(d), true
}
