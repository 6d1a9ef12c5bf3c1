// Package bench supplies the harness binary's built-in example
// workloads: small, allocation-free closures that exercise
// clock.Bench.MeasureNS end-to-end without pulling in the (explicitly
// out-of-scope) UDP networking stack spec.md §1 excludes. They play
// the same role the teacher's benchmarks.GetMicrobenchmarks() plays
// for its CPU-timing-model calibration, adapted to generic short code
// regions instead of decoded ARM64 instruction sequences.
package bench

import (
	"sync/atomic"

	"github.com/sarchlab/mbench/harness"
	"github.com/sarchlab/mbench/report"
)

// DefaultWarmupNS is the warm-up budget, in nanoseconds, given to every
// core workload before timed runs begin.
const DefaultWarmupNS = 50_000_000

// DefaultNumRuns is the number of timed iterations each core workload
// collects.
const DefaultNumRuns = 2000

// workloadCtx carries the mutable state a workload closure touches, so
// every run has a real side effect that the compiler cannot prove dead
// (clock.assumeRead handles the timestamp side; this handles the
// workload's own output).
type workloadCtx struct {
	counter int64
	buf     [64]int64
}

// CoreMicrobenchmarks returns the harness's 8 built-in example
// workloads, registered in the order the CLI runs them.
func CoreMicrobenchmarks(records *[]report.Record) []harness.Workload {
	return []harness.Workload{
		measured("empty_loop", emptyLoop, records),
		measured("atomic_increment", atomicIncrement, records),
		measured("slice_sum_64", sliceSum64, records),
		measured("slice_fill_64", sliceFill64, records),
		measured("map_insert_small", mapInsertSmall, records),
		measured("string_concat", stringConcat, records),
		measured("fibonacci_20", fibonacci20, records),
		measured("sort_small_slice", sortSmallSlice, records),
	}
}

// measured wraps a raw workload function into a harness.Workload whose
// Callable runs it through the harness's Benchmark Clock and appends a
// report.Record to *records.
func measured(name string, fn func(ctx any), records *[]report.Record) harness.Workload {
	return harness.Workload{
		Name:    name,
		Context: &workloadCtx{},
		Callable: func(ctx any, h *harness.Harness) {
			// Bench.MeasureNS always reports nanoseconds, regardless of
			// whether the TSC clock backed the measurement internally.
			st := h.Clock().MeasureNS(ctx, fn, DefaultWarmupNS, DefaultNumRuns)
			*records = append(*records, report.FromStatistics(name, DefaultNumRuns, report.Nanoseconds, st))
		},
	}
}

func emptyLoop(ctx any) {}

func atomicIncrement(ctx any) {
	c := ctx.(*workloadCtx)
	atomic.AddInt64(&c.counter, 1)
}

func sliceSum64(ctx any) {
	c := ctx.(*workloadCtx)
	var sum int64
	for _, v := range c.buf {
		sum += v
	}
	c.counter = sum
}

func sliceFill64(ctx any) {
	c := ctx.(*workloadCtx)
	for i := range c.buf {
		c.buf[i] = int64(i) * c.counter
	}
}

func mapInsertSmall(ctx any) {
	c := ctx.(*workloadCtx)
	m := make(map[int]int64, 8)
	for i := 0; i < 8; i++ {
		m[i] = c.counter + int64(i)
	}
	c.counter = int64(len(m))
}

func stringConcat(ctx any) {
	c := ctx.(*workloadCtx)
	s := ""
	for i := 0; i < 8; i++ {
		s += "x"
	}
	c.counter = int64(len(s))
}

func fibonacci20(ctx any) {
	c := ctx.(*workloadCtx)
	a, b := int64(0), int64(1)
	for i := 0; i < 20; i++ {
		a, b = b, a+b
	}
	c.counter = a
}

func sortSmallSlice(ctx any) {
	c := ctx.(*workloadCtx)
	for i := range c.buf {
		c.buf[i] = int64(len(c.buf) - i)
	}
	for i := 1; i < len(c.buf); i++ {
		v := c.buf[i]
		j := i - 1
		for j >= 0 && c.buf[j] > v {
			c.buf[j+1] = c.buf[j]
			j--
		}
		c.buf[j+1] = v
	}
}
