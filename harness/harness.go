// Package harness wires the benchmark core's collaborators — logger,
// name filter, CPU topology, and Benchmark Clock — into the lifecycle
// spec.md §4.7 describes: initialize once, run each registered
// benchmark through the name filter, finalize once.
package harness

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/sarchlab/mbench/clock"
	"github.com/sarchlab/mbench/fault"
	"github.com/sarchlab/mbench/logging"
	"github.com/sarchlab/mbench/namefilter"
	"github.com/sarchlab/mbench/rng"
	"github.com/sarchlab/mbench/topology"
)

// Workload is a registered benchmark: Run invokes Callable(ctx, h)
// when the harness's name filter matches Name.
type Workload struct {
	Name     string
	Callable func(ctx any, h *Harness)
	Context  any
}

// Config is the in-process configuration threaded into Initialize,
// mirroring the teacher's HarnessConfig/DefaultConfig shape.
type Config struct {
	// NameFilter is the substring pattern; empty matches every name.
	NameFilter string
}

// DefaultConfig returns the harness's default configuration: an
// empty name filter (match everything).
func DefaultConfig() Config {
	return Config{NameFilter: ""}
}

// Harness owns the collaborators described in spec.md §4.7.
type Harness struct {
	log      *logging.Scope
	filter   *namefilter.Filter
	topo     *topology.Probe
	cpuset   topology.CPUSet
	clock    *clock.Bench
	ran, skp int
}

// Initialize builds the harness: logger, name filter (from argv's at
// most one positional argument), topology probe with the current
// thread pinned to a single CPU, and the Benchmark Clock.
//
// argv is the program's positional arguments (excluding flags); a
// second positional argument is a programmer error (spec.md §6).
func Initialize(cfg Config, argv []string, src rng.Source) *Harness {
	log := logging.Open(logging.DefaultConfig())
	log.DebugBiasWarning()

	if len(argv) > 1 {
		fault.Invariant("harness.Initialize", "expected at most one positional argument, got %d", len(argv))
	}
	pattern := cfg.NameFilter
	if len(argv) == 1 {
		pattern = argv[0]
	}
	filter := namefilter.New(pattern)

	applyThreadPriority(log)

	runtime.LockOSThread()
	topo := topology.New()
	all := topo.All()
	cpuset, err := topo.PinCurrentThread(all.CPU(0))
	if err != nil {
		fault.Exhausted("harness.Initialize", fmt.Errorf("pin thread to cpu %d: %w", all.CPU(0), err))
	}

	bc := clock.Initialize(log, src)

	log.Info().Str("name_filter", pattern).Int("pinned_cpu", cpuset.CPU(0)).Msg("harness initialized")

	return &Harness{
		log:    log,
		filter: filter,
		topo:   topo,
		cpuset: cpuset,
		clock:  bc,
	}
}

func applyThreadPriority(log *logging.Scope) {
	v := os.Getenv("MBENCH_THREAD_PRIORITY")
	if v == "" {
		return
	}
	prio, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("value", v).Msg("ignoring malformed MBENCH_THREAD_PRIORITY")
		return
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, prio); err != nil {
		log.Warn().Err(err).Msg("failed to set thread priority; continuing at default priority")
	}
}

// Clock returns the harness's Benchmark Clock, for workloads that
// need to take their own measurements.
func (h *Harness) Clock() *clock.Bench { return h.clock }

// Logger returns the harness's logging scope.
func (h *Harness) Logger() *logging.Scope { return h.log }

// Run invokes w.Callable(w.Context, h) if the harness's name filter
// matches w.Name, then recalibrates the clock. Returns whether the
// callable executed.
func (h *Harness) Run(w Workload) bool {
	if !h.filter.Matches(w.Name) {
		h.skp++
		return false
	}

	w.Callable(w.Context, h)
	h.clock.Recalibrate()
	h.ran++
	return true
}

// Finalize tears down the clock, name filter, cpuset, topology, and
// logger, in that order (spec.md §4.7), and logs a final success
// message.
func (h *Harness) Finalize() {
	h.clock.Finalize()
	h.filter = nil

	if err := h.topo.UnpinCurrentThread(); err != nil {
		h.log.Warn().Err(err).Msg("failed to restore thread affinity during finalize")
	}
	h.topo.Close()
	runtime.UnlockOSThread()

	h.log.Info().Int("ran", h.ran).Int("skipped", h.skp).Msg("all benchmarks executed successfully")
	h.log.Close()
}
