// Package report formats benchmark results for the harness binary's
// standard-output surface: one structured record per benchmark, in
// either a human-readable table or CSV.
package report

import (
	"fmt"
	"io"

	"github.com/sarchlab/mbench/stats"
)

// Units is the duration unit a Record's bounds are expressed in.
type Units string

const (
	Nanoseconds Units = "ns"
	Ticks       Units = "ticks"
)

// Record is one benchmark's measurement result (spec §6): name, run
// count, central duration, low/high interval bounds, and units.
type Record struct {
	Name    string
	NumRuns int
	Center  int64
	Low     int64
	High    int64
	Units   Units
}

// FromStatistics builds a Record from an Analyzer's Statistics.
func FromStatistics(name string, numRuns int, units Units, s stats.Statistics) Record {
	return Record{Name: name, NumRuns: numRuns, Center: s.Center, Low: s.Low, High: s.High, Units: units}
}

// PrintTable writes a human-readable report to w.
func PrintTable(w io.Writer, records []Record) {
	_, _ = fmt.Fprintln(w, "=== Benchmark Results ===")
	_, _ = fmt.Fprintln(w, "")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(w, "  Runs:   %d\n", r.NumRuns)
		_, _ = fmt.Fprintf(w, "  Center: %d %s\n", r.Center, r.Units)
		_, _ = fmt.Fprintf(w, "  Low:    %d %s\n", r.Low, r.Units)
		_, _ = fmt.Fprintf(w, "  High:   %d %s\n", r.High, r.Units)
		_, _ = fmt.Fprintln(w, "")
	}
}

// PrintCSV writes a CSV report to w.
func PrintCSV(w io.Writer, records []Record) {
	_, _ = fmt.Fprintln(w, "name,runs,center,low,high,units")
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%s,%d,%d,%d,%d,%s\n", r.Name, r.NumRuns, r.Center, r.Low, r.High, r.Units)
	}
}
