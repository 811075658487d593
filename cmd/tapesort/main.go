// Command tapesort sorts a tape file of fixed-width u32 records with
// a bounded number of in-memory page buffers.
package main

import (
	"bufio"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/tuannm99/pagedb/internal"
	"github.com/tuannm99/pagedb/internal/storage"
	"github.com/tuannm99/pagedb/internal/tapesort"
)

const defaultFilename = "tape_data.bin"

func main() {
	var (
		filename     string
		records      int
		pageSize     int
		buffers      int
		verbose      bool
		loadFile     string
		loadKeyboard bool
		cfgPath      string
	)

	flag.StringVarP(&filename, "file", "f", "", "tape file to sort")
	flag.IntVarP(&records, "records", "r", 0, "generate N random records")
	flag.IntVarP(&pageSize, "pageSize", "p", 0, "page size in bytes (records per page x 4)")
	flag.IntVarP(&buffers, "buffers", "b", 0, "number of page buffers")
	flag.BoolVarP(&verbose, "verbose", "v", false, "show sorting steps and phases")
	flag.StringVarP(&loadFile, "load-file", "l", "", "load records from comma-separated text file")
	flag.BoolVarP(&loadKeyboard, "load-keyboard", "k", false, "load records from keyboard input")
	flag.StringVar(&cfgPath, "config", "", "path to pagedb yaml config")
	flag.Usage = usage
	flag.Parse()

	if cfgPath != "" {
		cfg, err := internal.LoadConfig(cfgPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		if filename == "" {
			filename = cfg.Sort.File
		}
		if pageSize == 0 {
			pageSize = cfg.Sort.PageSize
		}
		if buffers == 0 {
			buffers = cfg.Sort.Buffers
		}
		verbose = verbose || cfg.Verbose
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	sources := 0
	for _, chosen := range []bool{filename != "", records != 0, loadFile != "", loadKeyboard} {
		if chosen {
			sources++
		}
	}
	if sources > 1 {
		log.Fatal("choose one input source: --file, --records, --load-file or --load-keyboard")
	}
	if pageSize <= 0 {
		log.Fatal("pageSize must be specified")
	}
	if buffers <= 0 {
		log.Fatal("buffers must be specified")
	}

	if filename == "" {
		filename = defaultFilename
	}

	counters := &storage.Counters{}
	tape, err := tapesort.OpenTape(filename, pageSize, counters)
	if err != nil {
		log.Fatalf("open tape: %v", err)
	}
	defer tape.Close()

	switch {
	case loadFile != "":
		fmt.Printf("Loading from text file: %s\n", loadFile)
		if err := tape.LoadCSV(loadFile); err != nil {
			log.Fatalf("load: %v", err)
		}
	case loadKeyboard:
		fmt.Println("Enter uint32 records separated by spaces (end with ';'):")
		if err := tape.LoadValues(readKeyboard()); err != nil {
			log.Fatalf("load: %v", err)
		}
	case records != 0:
		fmt.Println("Generating random tape...")
		if err := tape.GenerateRandom(records); err != nil {
			log.Fatalf("generate: %v", err)
		}
	case flag.Lookup("file").Changed:
		fmt.Printf("Opening %s\n", filename)
	default:
		fmt.Println("No input specified, generating 1000 random records...")
		if err := tape.GenerateRandom(1000); err != nil {
			log.Fatalf("generate: %v", err)
		}
	}

	display(tape, "Initial tape content:")

	sorter, err := tapesort.NewSorter(tape, buffers)
	if err != nil {
		log.Fatalf("sorter: %v", err)
	}
	if err := sorter.Sort(); err != nil {
		log.Fatalf("sort: %v", err)
	}

	display(tape, "Sorted file contents:")

	fmt.Println("\nStats:")
	fmt.Printf("Total merge phases %d\n", sorter.Passes)
	fmt.Printf("Total read count %d\n", counters.Reads)
	fmt.Printf("Total write count %d\n", counters.Writes)
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: tapesort [OPTIONS]
Options:
  -h, --help            Show this help message
  -f, --file FILE       Specify input file (default: tape_data.bin)
  -r, --records N       Generate N random records
  -p, --pageSize N      Set page size in bytes (records per page x 4)
  -b, --buffers N       Set number of buffers
  -v, --verbose         Enable verbose output
  -l, --load-file FILE  Load records from comma-separated text file
  -k, --load-keyboard   Load records from keyboard input
      --config FILE     Load defaults from a yaml config

Exactly one input source may be chosen. If none is given, 1000 random
records are generated.
`)
}

func display(tape *tapesort.Tape, header string) {
	out, err := tape.DisplayString()
	if err != nil {
		slog.Error("display tape", "err", err)
		return
	}
	fmt.Println(header)
	fmt.Println(out)
}

// readKeyboard collects whitespace-separated decimals from stdin until
// a line ending in ';'. Bad tokens are skipped.
func readKeyboard() []uint32 {
	var vals []uint32
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		vals = append(vals, tapesort.ParseValues(line)...)
		if strings.HasSuffix(line, ";") {
			break
		}
	}
	return vals
}
