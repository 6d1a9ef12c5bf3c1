//go:build !amd64

package clock

import (
	"github.com/sarchlab/mbench/dist"
	"github.com/sarchlab/mbench/logging"
	"github.com/sarchlab/mbench/outlier"
	"github.com/sarchlab/mbench/rng"
	"github.com/sarchlab/mbench/stats"
)

// TSCAvailable is always false off x86; no cycle-counter clock exists
// on this build.
func TSCAvailable() bool { return false }

// TSC is an unusable placeholder on non-amd64 builds; NewTSC always
// fails so the Benchmark Clock falls back to OS-clock-only operation.
type TSC struct{}

// NewTSC always returns ErrTSCUnsupported on this platform.
func NewTSC(log *logging.Scope, osClock *OS, filter *outlier.Filter, calAnalyzer *stats.Analyzer, src rng.Source) (*TSC, error) {
	return nil, ErrTSCUnsupported
}

func (c *TSC) Frequencies() *dist.Distribution  { return nil }
func (c *TSC) FrequencyStats() stats.Statistics { return stats.Statistics{} }

func (c *TSC) Measure(ctx any, workload Workload, warmupNS int64, numRuns int, filter *outlier.Filter, b *dist.Builder, src rng.Source) *dist.Distribution {
	panic("clock: TSC.Measure called on a platform without a cycle counter")
}

func (c *TSC) Duration(tmpBuilder *dist.Builder, ticks *dist.Distribution, analyzer *stats.Analyzer, src rng.Source) (stats.Statistics, *dist.Builder) {
	panic("clock: TSC.Duration called on a platform without a cycle counter")
}

func (c *TSC) Recalibrate(osClock *OS, filter *outlier.Filter, calAnalyzer *stats.Analyzer, src rng.Source) {}

func (c *TSC) Finalize() {}
