//go:build amd64

package clock

import (
	"github.com/klauspost/cpuid/v2"

	"github.com/sarchlab/mbench/dist"
	"github.com/sarchlab/mbench/fault"
	"github.com/sarchlab/mbench/logging"
	"github.com/sarchlab/mbench/outlier"
	"github.com/sarchlab/mbench/rng"
	"github.com/sarchlab/mbench/stats"
)

//go:noescape
func rdtscpRaw() (ticks uint64, cpuID uint32)

//go:noescape
func cpuidSerialize()

// TSCAvailable reports whether this process can use the TSC clock:
// RDTSCP must exist and the TSC must be invariant (constant rate
// across P-states and cores), or cross-core/cross-frequency
// comparisons would be meaningless.
func TSCAvailable() bool {
	return cpuid.CPU.Supports(cpuid.RDTSCP) && cpuid.CPU.Supports(cpuid.TSCINVARIANT)
}

// timerStart and timerEnd are the strict/non-strict serialized reads
// from spec §4.5. RDTSCP is itself a serializing read with respect to
// preceding instructions, which is exactly the "end" semantics the
// spec requires; strict additionally brackets with a CPUID
// serialization for calibration-grade precision.
func timerStart(strict bool) (uint64, uint32) {
	if strict {
		cpuidSerialize()
	}
	return rdtscpRaw()
}

func timerEnd(strict bool) (uint64, uint32) {
	ticks, cpu := rdtscpRaw()
	if strict {
		cpuidSerialize()
	}
	return ticks, cpu
}

// TSCOffsetCalibrationReads is the number of back-to-back timer pairs
// used to measure timer-pair overhead.
const TSCOffsetCalibrationReads = 16384

// TSC is the x86 cycle-counter clock, calibrated against an OS clock
// in the same CPU-pinned scope.
type TSC struct {
	log *logging.Scope

	pinnedCPU uint32

	offsets     *dist.Distribution
	offsetStats stats.Statistics

	frequencies    *dist.Distribution
	frequencyStats stats.Statistics
	bestEmptyStats stats.Statistics

	starts []uint64
	ends   []uint64
}

// NewTSC calibrates a TSC clock against an already-calibrated OS
// clock in the same pinned scope (spec §4.5). osClock's best-empty
// iteration count is reused for frequency calibration.
func NewTSC(log *logging.Scope, osClock *OS, filter *outlier.Filter, calAnalyzer *stats.Analyzer, src rng.Source) (*TSC, error) {
	if !TSCAvailable() {
		return nil, ErrTSCUnsupported
	}

	c := &TSC{log: log}

	_, pinnedCPU := timerStart(true)
	c.pinnedCPU = pinnedCPU

	offsetBuilder := dist.NewBuilder()
	for i := 0; i < TSCOffsetCalibrationReads; i++ {
		start, cpuA := timerStart(false)
		end, cpuB := timerEnd(false)
		assertPinned(cpuA, c.pinnedCPU)
		assertPinned(cpuB, c.pinnedCPU)
		raw := int64(end - start)
		insertSample(offsetBuilder, raw, filter.Apply(raw))
	}
	c.offsets = offsetBuilder.Build()
	c.offsetStats = calAnalyzer.Analyze(c.offsets, src)

	freqBuilder := dist.NewBuilder()
	n := osClock.BestEmptyIters()
	for run := 0; run < calAnalyzer.NumMedians()*calAnalyzer.TrialSize(); run++ {
		osStart := now()
		tscStart, cpuA := timerStart(true)
		emptyLoopBurn(n)
		tscEnd, cpuB := timerEnd(true)
		osEnd := now()
		assertPinned(cpuA, c.pinnedCPU)
		assertPinned(cpuB, c.pinnedCPU)

		ns := Duration(osStart, osEnd)
		ticks := int64(tscEnd - tscStart)
		if ns <= 0 {
			continue
		}
		freqHz := ticks * 1_000_000_000 / ns
		insertSample(freqBuilder, freqHz, filter.Apply(freqHz))
	}
	c.frequencies = freqBuilder.Build()
	c.frequencyStats = calAnalyzer.Analyze(c.frequencies, src)

	tickBuilder := dist.NewBuilder()
	for run := 0; run < calAnalyzer.NumMedians()*calAnalyzer.TrialSize(); run++ {
		start, cpuA := timerStart(false)
		emptyLoopBurn(n)
		end, cpuB := timerEnd(false)
		assertPinned(cpuA, c.pinnedCPU)
		assertPinned(cpuB, c.pinnedCPU)
		raw := int64(end - start)
		insertSample(tickBuilder, raw, filter.Apply(raw))
	}
	emptyTicks := tickBuilder.Build()
	c.bestEmptyStats = calAnalyzer.Analyze(emptyTicks, src)

	log.Debug().Uint64("offset_ticks", uint64(c.offsetStats.Center)).
		Int64("frequency_hz", c.frequencyStats.Center).
		Msg("tsc clock calibrated")

	return c, nil
}

func assertPinned(gotCPU, wantCPU uint32) {
	if gotCPU != wantCPU {
		fault.Invariant("clock.TSC", "cpu id changed during tsc measurement: got %d want %d; thread pinning violated", gotCPU, wantCPU)
	}
}

// Frequencies is the calibrated ticks-per-second distribution.
func (c *TSC) Frequencies() *dist.Distribution { return c.frequencies }

// FrequencyStats is the bootstrap statistics of Frequencies().
func (c *TSC) FrequencyStats() stats.Statistics { return c.frequencyStats }

// Measure mirrors OS.Measure but in raw ticks, subtracting one
// freshly sampled offset per run (spec §4.5) rather than a fixed
// centre value, matching the paired-resampling discipline of §9.
func (c *TSC) Measure(ctx any, workload Workload, warmupNS int64, numRuns int, filter *outlier.Filter, b *dist.Builder, src rng.Source) *dist.Distribution {
	if cap(c.starts) < numRuns {
		c.starts = make([]uint64, numRuns)
		c.ends = make([]uint64, numRuns)
	}
	c.starts = c.starts[:numRuns]
	c.ends = c.ends[:numRuns]

	warmStart := now()
	for Duration(warmStart, now()) < warmupNS {
		workload(ctx)
	}

	for i := 0; i < numRuns; i++ {
		start, cpuA := timerStart(false)
		c.starts[i] = start
		assumeRead(start)
		workload(ctx)
		end, cpuB := timerEnd(false)
		c.ends[i] = end
		assumeRead(end)
		assertPinned(cpuA, c.pinnedCPU)
		assertPinned(cpuB, c.pinnedCPU)
	}

	for i := 0; i < numRuns; i++ {
		offset := c.offsets.Sample(src)
		raw := int64(c.ends[i]-c.starts[i]) - offset
		insertSample(b, raw, filter.Apply(raw))
	}

	return b.Build()
}

// Duration converts a ticks distribution to a nanosecond Statistics
// via paired resampling (spec §9): one frequency sample is drawn per
// tick sample, never arithmetic performed directly on the two
// distributions' summary statistics. tmpBuilder is consumed by Build;
// the returned Builder reuses its backing arrays (Reset, not
// Finalize) so the caller can feed it into the next Duration call.
func (c *TSC) Duration(tmpBuilder *dist.Builder, ticks *dist.Distribution, analyzer *stats.Analyzer, src rng.Source) (stats.Statistics, *dist.Builder) {
	n := ticks.Len()
	for i := 0; i < n; i++ {
		t := ticks.Sample(src)
		freq := c.frequencies.Sample(src)
		if freq == 0 {
			fault.Invariant("clock.TSC.Duration", "sampled frequency is zero")
		}
		tmpBuilder.Insert(t * 1_000_000_000 / freq)
	}
	d := tmpBuilder.Build()
	result := analyzer.Analyze(d, src)
	return result, d.Reset()
}

// Recalibrate re-measures the best-empty-tick distribution.
func (c *TSC) Recalibrate(osClock *OS, filter *outlier.Filter, calAnalyzer *stats.Analyzer, src rng.Source) {
	n := osClock.BestEmptyIters()
	tickBuilder := dist.NewBuilder()
	for run := 0; run < calAnalyzer.NumMedians()*calAnalyzer.TrialSize(); run++ {
		start, cpuA := timerStart(false)
		emptyLoopBurn(n)
		end, cpuB := timerEnd(false)
		assertPinned(cpuA, c.pinnedCPU)
		assertPinned(cpuB, c.pinnedCPU)
		raw := int64(end - start)
		insertSample(tickBuilder, raw, filter.Apply(raw))
	}
	d := tickBuilder.Build()
	c.bestEmptyStats = calAnalyzer.Analyze(d, src)
}

// Finalize releases the TSC clock's buffers.
func (c *TSC) Finalize() {
	c.starts, c.ends = nil, nil
	c.offsets, c.frequencies = nil, nil
}
