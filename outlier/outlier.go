// Package outlier implements the sliding-window outlier detector used to
// flag short transient spikes (OS interrupts, CPU migrations) in a
// stream of timing samples while keeping a tight estimate of the true
// spread. This file derives min/max_normal/max by rescanning the
// (small, fixed-size) window on every input rather than maintaining
// incremental counters, which is simpler to get right and, for the reference
// window size of 5, no more expensive: a full rescan is itself O(1) for
// a fixed small N.
package outlier

import "github.com/sarchlab/mbench/fault"

// DefaultTolerance is the reference tolerance factor (spec §4.2).
const DefaultTolerance = 0.5

// MinWindow is the smallest permitted window size.
const MinWindow = 3

// Result is emitted for every Apply call.
type Result struct {
	// CurrentIsOutlier reports whether the just-applied input was
	// classified as an outlier.
	CurrentIsOutlier bool
	// PreviousNotOutlier reports whether a formerly outlier-classified
	// value was promoted back to normal during this step. When true the
	// caller should insert PreviousInput into its downstream dataset,
	// since it was withheld when it was first (mis)classified.
	PreviousNotOutlier bool
	// PreviousInput is the value reclassified as normal, valid only
	// when PreviousNotOutlier is true.
	PreviousInput int64
}

// Filter is a ring buffer of the N most recent inputs plus the derived
// min/max/max_normal/upper_tolerance state used to classify the next
// input.
type Filter struct {
	window []int64
	next   int
	tol    float64

	min, minCount             int64
	maxNormal, maxNormalCount int64
	max, maxCount             int64
	upperTolerance            float64

	pending     int64
	pendingSlot int
	hasPending  bool
}

// Seed initializes a Filter from a full window of seed samples (len(seed)
// must be >= MinWindow) and returns the subset of those seed samples
// that are non-outliers under the resulting initialized state
// (FOREACH_NORMAL in spec §4.2).
func Seed(seed []int64, tolerance float64) (*Filter, []int64) {
	if len(seed) < MinWindow {
		fault.Invariant("outlier.Seed", "window must hold at least %d samples, got %d", MinWindow, len(seed))
	}

	f := &Filter{
		window: append([]int64(nil), seed...),
		tol:    tolerance,
	}
	f.recompute()

	normal := make([]int64, 0, len(seed))
	for _, v := range seed {
		if float64(v) <= f.upperTolerance {
			normal = append(normal, v)
		}
	}
	return f, normal
}

// Apply integrates x into the window, evicting the oldest entry, and
// returns its classification.
func (f *Filter) Apply(x int64) Result {
	slot := f.next
	pendingEvicted := f.hasPending && slot == f.pendingSlot

	f.window[slot] = x
	f.next = (slot + 1) % len(f.window)

	f.recompute()

	var res Result
	res.CurrentIsOutlier = float64(x) > f.upperTolerance

	if f.hasPending {
		if pendingEvicted {
			// The pending outlier just aged out of the window entirely
			// (its slot was overwritten by x): it was never reclassified
			// while present, so it must not be reported as promoted to
			// normal, per spec §4.2's "single outlier stays excluded"
			// rationale. Silently drop it.
			f.hasPending = false
		} else {
			pv := f.pending
			stillOutlier := f.maxCount == 1 && pv == f.max && float64(f.max) > f.upperTolerance
			if !stillOutlier {
				res.PreviousNotOutlier = true
				res.PreviousInput = pv
				f.hasPending = false
			}
		}
	}

	if res.CurrentIsOutlier {
		f.pending = x
		f.pendingSlot = slot
		f.hasPending = true
	}

	return res
}

// Min returns the current window minimum.
func (f *Filter) Min() int64 { return f.min }

// MaxNormal returns the current top-of-normal value.
func (f *Filter) MaxNormal() int64 { return f.maxNormal }

// Max returns the current window maximum.
func (f *Filter) Max() int64 { return f.max }

// UpperTolerance returns the current classification threshold.
func (f *Filter) UpperTolerance() float64 { return f.upperTolerance }

// recompute derives min/max/max_normal/upper_tolerance from the current
// window contents by a full scan.
func (f *Filter) recompute() {
	counts := make(map[int64]int64, len(f.window))
	min, max := f.window[0], f.window[0]
	for _, v := range f.window {
		counts[v]++
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	maxCount := counts[max]

	var maxNormal, maxNormalCount int64
	if maxCount > 1 {
		maxNormal, maxNormalCount = max, maxCount
	} else {
		// Find the largest distinct value strictly below max.
		second := min
		found := false
		for v := range counts {
			if v < max && (!found || v > second) {
				second, found = v, true
			}
		}
		if !found {
			// Every other entry ties the single occurrence of max is
			// impossible here (maxCount==1 and len(window)>=3 implies at
			// least one other value), but guard defensively.
			maxNormal, maxNormalCount = max, maxCount
		} else {
			maxNormal, maxNormalCount = second, counts[second]
		}
	}

	f.min, f.minCount = min, counts[min]
	f.max, f.maxCount = max, maxCount
	f.maxNormal, f.maxNormalCount = maxNormal, maxNormalCount
	f.upperTolerance = float64(maxNormal) + f.tol*float64(maxNormal-min)
}
