// Command mbench is the harness binary (spec.md §6): it initializes
// the Benchmark Harness, runs every registered workload whose name
// passes the name filter, and prints the resulting measurements to
// standard output as structured records.
//
// Usage:
//
//	mbench [flags] [name-substring]
//
// At most one positional argument is accepted: a substring that
// selects which registered benchmarks run (empty matches all). A
// second positional argument is a fatal usage error.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/codahale/hdrhistogram"

	"github.com/sarchlab/mbench/bench"
	"github.com/sarchlab/mbench/fault"
	"github.com/sarchlab/mbench/harness"
	"github.com/sarchlab/mbench/report"
	"github.com/sarchlab/mbench/rng"
)

func main() {
	csvOutput := flag.Bool("csv", false, "print results as CSV instead of a table")
	withHDR := flag.Bool("hdr", false, "also print a p50/p90/p99 hdrhistogram summary per benchmark")
	flag.Parse()

	if flag.NArg() > 1 {
		fmt.Fprintf(os.Stderr, "mbench: at most one positional argument (name filter) is allowed, got %d\n", flag.NArg())
		os.Exit(1)
	}

	os.Exit(run(flag.Args(), *csvOutput, *withHDR))
}

func run(argv []string, csvOutput, withHDR bool) (exitCode int) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		f, ok := r.(*fault.Fatal)
		if !ok {
			panic(r)
		}
		fmt.Fprintf(os.Stderr, "mbench: fatal: %v\n", f)
		exitCode = 1
	}()

	h := harness.Initialize(harness.DefaultConfig(), argv, rng.System{})

	var records []report.Record
	workloads := bench.CoreMicrobenchmarks(&records)
	for _, w := range workloads {
		h.Run(w)
	}

	// Finalize is not deferred: a panic unwinding through Run should
	// not reach the "all benchmarks executed successfully" log line
	// Finalize emits (spec.md §4.7); it only runs after every workload
	// has actually completed.
	h.Finalize()

	if csvOutput {
		report.PrintCSV(os.Stdout, records)
	} else {
		report.PrintTable(os.Stdout, records)
	}

	if withHDR {
		printHDRSummary(os.Stdout, records)
	}

	return 0
}

// printHDRSummary feeds each record's already outlier-filtered
// {center,low,high} triple into a throwaway hdrhistogram.Histogram and
// prints a p50/p90/p99 line. This never substitutes for the bootstrap
// analyzer's own statistics (spec.md §4.3); it is a reporting
// convenience grounded on the retrieval pack's LaBench-style use of
// hdrhistogram for summarizing latency samples (SPEC_FULL.md §C).
func printHDRSummary(w *os.File, records []report.Record) {
	fmt.Fprintln(w, "=== hdr summary (derived from center/low/high, not raw samples) ===")
	fmt.Fprintln(w, "")

	for _, r := range records {
		hist := hdrhistogram.New(1, 1_000_000_000, 3)
		_ = hist.RecordValue(r.Low)
		_ = hist.RecordValue(r.Center)
		_ = hist.RecordValue(r.High)

		fmt.Fprintf(w, "%-20s p50=%-8d p90=%-8d p99=%-8d %s\n",
			r.Name,
			hist.ValueAtQuantile(50),
			hist.ValueAtQuantile(90),
			hist.ValueAtQuantile(99),
			r.Units,
		)
	}
}
