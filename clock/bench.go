package clock

import (
	"github.com/sarchlab/mbench/dist"
	"github.com/sarchlab/mbench/logging"
	"github.com/sarchlab/mbench/outlier"
	"github.com/sarchlab/mbench/rng"
	"github.com/sarchlab/mbench/stats"
)

// SeedBurnSamples is the number of back-to-back now() differences used
// to seed the shared outlier filter before any clock is calibrated
// (spec §4.6 step 1).
const SeedBurnSamples = 64

// Bench is the Benchmark Clock: it owns one outlier filter, one
// measurement-confidence analyzer, one OS clock, and, where available,
// one TSC clock, and offers a unified nanosecond measurement API.
type Bench struct {
	log *logging.Scope
	src rng.Source

	filter      *outlier.Filter
	analyzer    *stats.Analyzer
	calAnalyzer *stats.Analyzer

	os  *OS
	tsc *TSC // nil when the platform has no usable cycle counter
}

// Initialize performs the four-step sequence of spec §4.6. The caller
// must already have pinned the current thread to a single CPU.
func Initialize(log *logging.Scope, src rng.Source) *Bench {
	seed := make([]int64, SeedBurnSamples)
	prev := now()
	for i := range seed {
		cur := now()
		seed[i] = Duration(prev, cur)
		prev = cur
	}
	filter, _ := outlier.Seed(seed, outlier.DefaultTolerance)

	analyzer := stats.New(stats.Measurement)
	calAnalyzer := stats.New(stats.Calibration)

	osClock := NewOS(log, filter, src, calAnalyzer)

	bc := &Bench{
		log:         log,
		src:         src,
		filter:      filter,
		analyzer:    analyzer,
		calAnalyzer: calAnalyzer,
		os:          osClock,
	}

	tsc, err := NewTSC(log, osClock, filter, calAnalyzer, src)
	switch {
	case err == nil:
		bc.tsc = tsc
		log.Info().Msg("tsc clock available; using cycle-counter timing")
	case err == ErrTSCUnsupported:
		log.Info().Msg("tsc clock unavailable; falling back to os clock only")
	default:
		log.Warn().Err(err).Msg("tsc calibration failed; falling back to os clock only")
	}

	return bc
}

// HasTSC reports whether this Benchmark Clock is using the TSC for
// its timed sections.
func (bc *Bench) HasTSC() bool { return bc.tsc != nil }

// MeasureNS runs workload(ctx) numRuns times after warmupNS of
// warm-up, and returns a nanosecond Statistics, using the TSC clock
// when available (converted via paired resampling) or the OS clock
// directly otherwise.
func (bc *Bench) MeasureNS(ctx any, workload Workload, warmupNS int64, numRuns int) stats.Statistics {
	if bc.tsc != nil {
		ticksBuilder := dist.NewBuilder()
		ticks := bc.tsc.Measure(ctx, workload, warmupNS, numRuns, bc.filter, ticksBuilder, bc.src)
		tmp := dist.NewBuilder()
		result, _ := bc.tsc.Duration(tmp, ticks, bc.analyzer, bc.src)
		return result
	}

	b := dist.NewBuilder()
	d := bc.os.Measure(ctx, workload, warmupNS, numRuns, bc.filter, b)
	return bc.analyzer.Analyze(d, bc.src)
}

// Recalibrate re-measures each clock's best-empty distribution.
// Callers must invoke this between successive workloads (spec §4.6)
// to avoid pooling statistics across unrelated conditions.
func (bc *Bench) Recalibrate() {
	bc.os.Recalibrate(bc.filter, bc.calAnalyzer, bc.src)
	if bc.tsc != nil {
		bc.tsc.Recalibrate(bc.os, bc.filter, bc.calAnalyzer, bc.src)
	}
}

// Finalize tears down the clock in reverse-construction order with
// poisoning, per spec §4.6.
func (bc *Bench) Finalize() {
	if bc.tsc != nil {
		bc.tsc.Finalize()
		bc.tsc = nil
	}
	bc.os.Finalize()
}
