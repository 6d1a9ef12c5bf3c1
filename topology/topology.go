// Package topology probes the host CPU layout and pins the current
// OS thread to a single logical CPU for the duration of a timing run,
// following the same golang.org/x/sys/unix affinity calls used for
// worker-pinning elsewhere in the retrieval pack.
package topology

import (
	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sys/unix"

	"github.com/sarchlab/mbench/fault"
)

// CPUSet is an opaque, duplicable set of logical CPU indices.
type CPUSet struct {
	cpus []int
}

// Dup returns an independent copy of s.
func (s CPUSet) Dup() CPUSet {
	cpus := make([]int, len(s.cpus))
	copy(cpus, s.cpus)
	return CPUSet{cpus: cpus}
}

// Len returns the number of logical CPUs in the set.
func (s CPUSet) Len() int { return len(s.cpus) }

// CPU returns the i-th logical CPU index in the set.
func (s CPUSet) CPU(i int) int { return s.cpus[i] }

// CacheSizes reports per-level cache capacity in bytes, excluding SMT
// sibling duplication (spec §6). A size of -1 means the level is not
// reported by the host CPU.
type CacheSizes struct {
	L1D int
	L1I int
	L2  int
	L3  int
}

// Probe is the CPU topology probe collaborator. The zero value is not
// usable; construct one with New.
type Probe struct {
	all CPUSet
}

// New queries the process's initial CPU affinity mask and the cache
// hierarchy exposed by cpuid.
func New() *Probe {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		fault.Exhausted("topology.New", err)
	}

	var cpus []int
	for i := 0; i < unix.CPU_SETSIZE; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	if len(cpus) == 0 {
		fault.Invariant("topology.New", "process affinity mask reports zero usable cpus")
	}

	return &Probe{all: CPUSet{cpus: cpus}}
}

// All returns the full cpuset the process was allowed to run on at
// startup.
func (p *Probe) All() CPUSet { return p.all.Dup() }

// CacheSizes reports the cache hierarchy sizes in bytes.
func (p *Probe) CacheSizes() CacheSizes {
	return CacheSizes{
		L1D: cpuid.CPU.Cache.L1D,
		L1I: cpuid.CPU.Cache.L1I,
		L2:  cpuid.CPU.Cache.L2,
		L3:  cpuid.CPU.Cache.L3,
	}
}

// PinCurrentThread binds the calling OS thread to the single logical
// CPU cpu and returns the resulting singleton cpuset. The caller must
// have already locked the goroutine to its OS thread (runtime.LockOSThread)
// so the affinity change is not undone by the Go scheduler migrating
// the goroutine to a different thread.
func (p *Probe) PinCurrentThread(cpu int) (CPUSet, error) {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	tid := unix.Gettid()
	if err := unix.SchedSetaffinity(tid, &set); err != nil {
		return CPUSet{}, err
	}
	return CPUSet{cpus: []int{cpu}}, nil
}

// UnpinCurrentThread restores the thread's affinity to the full set
// the process started with.
func (p *Probe) UnpinCurrentThread() error {
	var set unix.CPUSet
	set.Zero()
	for _, cpu := range p.all.cpus {
		set.Set(cpu)
	}
	tid := unix.Gettid()
	return unix.SchedSetaffinity(tid, &set)
}

// Close releases the probe. CPUSets it returned remain valid.
func (p *Probe) Close() {}
