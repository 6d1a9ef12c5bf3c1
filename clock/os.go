// Package clock implements the benchmark core's timing sources: a
// monotonic OS clock (this file), an optional x86 TSC clock, and the
// Benchmark Clock that unifies them behind one measurement API.
package clock

import (
	"golang.org/x/sys/unix"

	"github.com/sarchlab/mbench/dist"
	"github.com/sarchlab/mbench/fault"
	"github.com/sarchlab/mbench/logging"
	"github.com/sarchlab/mbench/outlier"
	"github.com/sarchlab/mbench/rng"
	"github.com/sarchlab/mbench/stats"
)

// Timestamp is an opaque monotonic OS reading. Only Eq, Le, and
// Duration may be used to relate two timestamps.
type Timestamp struct {
	ns int64
}

// Eq reports whether two timestamps are identical.
func (t Timestamp) Eq(o Timestamp) bool { return t.ns == o.ns }

// Le reports t <= o; the OS clock is monotonic, so consecutive
// readings always satisfy this.
func (t Timestamp) Le(o Timestamp) bool { return t.ns <= o.ns }

// Workload is the (function, context) pair the measurement routines
// invoke on the timing path. context is opaque to the clock.
type Workload func(ctx any)

// resolvedClockID is the CLOCK_* constant chosen once at package
// load, preferring a monotonic raw source and falling back to the
// best monotonic clock the kernel offers.
var resolvedClockID = resolveClockID()

func resolveClockID() int32 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err == nil {
		return unix.CLOCK_MONOTONIC_RAW
	}
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err == nil {
		return unix.CLOCK_MONOTONIC
	}
	return unix.CLOCK_REALTIME
}

func now() Timestamp {
	var ts unix.Timespec
	if err := unix.ClockGettime(resolvedClockID, &ts); err != nil {
		fault.Exhausted("clock.now", err)
	}
	return Timestamp{ns: ts.Nano()}
}

// Duration computes end-start as signed nanoseconds. start must not
// be after end; a monotonic clock never produces such a pair unless
// the caller mismatched readings.
func Duration(start, end Timestamp) int64 {
	if !start.Le(end) {
		fault.Invariant("clock.Duration", "start %d must be <= end %d", start.ns, end.ns)
	}
	return end.ns - start.ns
}

// OffsetCalibrationReads is K in spec §4.4: K+1 back-to-back now()
// reads yield the K differences used to measure the clock's own call
// latency.
const OffsetCalibrationReads = 16384

// ciWidthGrowthStop is the factor by which the best-empty-loop
// confidence-interval width must worsen, relative to the best seen so
// far, before calibration is considered converged (design note (b)).
const ciWidthGrowthStop = 2.0

// maxEmptyLoopSteps bounds the geometric growth in case calibration
// never converges; the last acceptable parameters are kept and a
// warning is logged, per spec §7's "expected outcome" handling of
// non-converging calibration.
const maxEmptyLoopSteps = 40

// OS is the monotonic OS timestamp source, self-calibrated against an
// outlier filter shared with the rest of the Benchmark Clock.
type OS struct {
	log *logging.Scope

	offsets     *dist.Distribution
	offsetStats stats.Statistics

	bestEmptyIters     int
	bestEmptyDurations *dist.Distribution
	bestEmptyStats     stats.Statistics

	starts []Timestamp
	ends   []Timestamp
}

// NewOS builds and calibrates an OS clock. filter is shared with the
// rest of the Benchmark Clock (spec §4.6 step 3); calAnalyzer is a
// calibration-grade analyzer, conventionally built at 99% confidence.
func NewOS(log *logging.Scope, filter *outlier.Filter, src rng.Source, calAnalyzer *stats.Analyzer) *OS {
	c := &OS{log: log}

	offsetBuilder := dist.NewBuilder()
	reads := make([]Timestamp, OffsetCalibrationReads+1)
	for i := range reads {
		reads[i] = now()
	}
	for i := 1; i < len(reads); i++ {
		raw := Duration(reads[i-1], reads[i])
		insertSample(offsetBuilder, raw, filter.Apply(raw))
	}
	c.offsets = offsetBuilder.Build()
	c.offsetStats = calAnalyzer.Analyze(c.offsets, src)

	c.bestEmptyIters, c.bestEmptyDurations, c.bestEmptyStats =
		calibrateBestEmpty(filter, calAnalyzer, src, c.offsetStats.Center, log)

	log.Debug().Int64("offset_ns", c.offsetStats.Center).
		Int("best_empty_iters", c.bestEmptyIters).
		Int64("best_empty_ns", c.bestEmptyStats.Center).
		Msg("os clock calibrated")

	return c
}

// insertSample routes one outlier-filter result into a builder:
// the current sample is inserted when accepted, and the previous
// sample is retroactively inserted if the filter just reclassified
// it from outlier to normal. Used by every measurement loop in this
// package and the tsc/bench clocks.
func insertSample(b *dist.Builder, raw int64, r outlier.Result) {
	if !r.CurrentIsOutlier {
		b.Insert(raw)
	}
	if r.PreviousNotOutlier {
		b.Insert(r.PreviousInput)
	}
}

func emptyLoopBurn(n int) {
	var counter int64
	for i := 0; i < n; i++ {
		assumeAccessed(&counter)
	}
}

func calibrateBestEmpty(filter *outlier.Filter, calAnalyzer *stats.Analyzer, src rng.Source, offsetNs int64, log *logging.Scope) (int, *dist.Distribution, stats.Statistics) {
	n := 1
	bestWidth := -1.0
	var bestIters int
	var bestDist *dist.Distribution
	var bestStats stats.Statistics
	exceededOffset := false
	converged := false

	for step := 0; step < maxEmptyLoopSteps; step++ {
		b := dist.NewBuilder()
		for run := 0; run < calAnalyzer.NumMedians()*calAnalyzer.TrialSize(); run++ {
			start := now()
			emptyLoopBurn(n)
			end := now()
			raw := Duration(start, end)
			insertSample(b, raw, filter.Apply(raw))
		}
		if b.Empty() {
			n *= 2
			continue
		}
		d := b.Build()
		st := calAnalyzer.Analyze(d, src)
		width := float64(st.High - st.Low)

		if !exceededOffset {
			if st.Center < offsetNs {
				n *= 2
				continue
			}
			exceededOffset = true
		}

		if bestWidth < 0 || width < bestWidth {
			bestWidth, bestIters, bestDist, bestStats = width, n, d, st
			n *= 2
			continue
		}

		if width >= bestWidth*ciWidthGrowthStop {
			converged = true
			break
		}
		n *= 2
	}

	if bestDist == nil {
		fault.Invariant("clock.calibrateBestEmpty", "empty-loop calibration produced no accepted samples")
	}
	if !converged {
		log.Warn().Int("best_empty_iters", bestIters).
			Msg("best-empty-loop calibration did not converge within step budget; using last acceptable parameters")
	}
	return bestIters, bestDist, bestStats
}

// Offsets is the calibrated now()-call-latency distribution.
func (c *OS) Offsets() *dist.Distribution { return c.offsets }

// OffsetStats is the bootstrap statistics of Offsets().
func (c *OS) OffsetStats() stats.Statistics { return c.offsetStats }

// BestEmptyIters is the calibrated empty-loop iteration count.
func (c *OS) BestEmptyIters() int { return c.bestEmptyIters }

// BestEmptyDurations is the calibrated empty-loop duration distribution.
func (c *OS) BestEmptyDurations() *dist.Distribution { return c.bestEmptyDurations }

// BestEmptyStats is the bootstrap statistics of BestEmptyDurations().
func (c *OS) BestEmptyStats() stats.Statistics { return c.bestEmptyStats }

func (c *OS) growBuffers(numRuns int) {
	if cap(c.starts) >= numRuns {
		c.starts = c.starts[:numRuns]
		c.ends = c.ends[:numRuns]
		return
	}
	c.starts = make([]Timestamp, numRuns)
	c.ends = make([]Timestamp, numRuns)
}

// Measure runs workload(ctx) warmupNS worth of time, then numRuns
// timed iterations, routing each duration through filter and
// inserting accepted values into b, returning the built distribution.
func (c *OS) Measure(ctx any, workload Workload, warmupNS int64, numRuns int, filter *outlier.Filter, b *dist.Builder) *dist.Distribution {
	c.growBuffers(numRuns)

	warmStart := now()
	for Duration(warmStart, now()) < warmupNS {
		workload(ctx)
	}

	for i := 0; i < numRuns; i++ {
		c.starts[i] = now()
		assumeRead(uint64(c.starts[i].ns))
		workload(ctx)
		c.ends[i] = now()
		assumeRead(uint64(c.ends[i].ns))
	}

	for i := 0; i < numRuns; i++ {
		raw := Duration(c.starts[i], c.ends[i])
		insertSample(b, raw, filter.Apply(raw))
	}

	return b.Build()
}

// Recalibrate re-measures the best-empty-loop distribution and
// replaces BestEmptyIters, BestEmptyDurations and BestEmptyStats with
// the new result every time, whether or not it has shifted. Must be
// called between successive workloads (spec §4.6) to avoid pooling
// statistics across unrelated conditions.
func (c *OS) Recalibrate(filter *outlier.Filter, calAnalyzer *stats.Analyzer, src rng.Source) {
	iters, d, st := calibrateBestEmpty(filter, calAnalyzer, src, c.offsetStats.Center, c.log)
	c.bestEmptyIters, c.bestEmptyDurations, c.bestEmptyStats = iters, d, st
}

// Finalize releases the OS clock's buffers. Using c after Finalize is
// a programmer error.
func (c *OS) Finalize() {
	c.starts, c.ends = nil, nil
	c.offsets, c.bestEmptyDurations = nil, nil
}
