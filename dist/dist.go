// Package dist implements the sparse, ordered histogram used to encode
// multisets of signed 64-bit integers (durations in nanoseconds or TSC
// ticks) with cheap random sampling proportional to multiplicity.
//
// A Builder accumulates values; Build converts it into an immutable
// Distribution that supports O(log n) sampling. The split mirrors the
// spec's builder/built-phase split: counts only make sense while
// inserting, cumulative end-indices only make sense once frozen.
package dist

import (
	"sort"

	"github.com/sarchlab/mbench/fault"
	"github.com/sarchlab/mbench/rng"
)

// Builder accumulates (value, count) bins in strictly increasing value
// order. The zero value is not ready to use; call NewBuilder.
type Builder struct {
	values []int64
	counts []int64
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Insert records one occurrence of value. On an exact match to an
// existing bin it increments that bin's count (O(log n)); otherwise it
// inserts a new bin at the sorted position (O(n) due to shifting,
// amortized O(1) for the backing array growth that Go's slice append
// already performs geometrically).
func (b *Builder) Insert(value int64) {
	if len(b.values) == 0 {
		b.values = append(b.values, value)
		b.counts = append(b.counts, 1)
		return
	}

	i := sort.Search(len(b.values), func(i int) bool { return b.values[i] >= value })
	if i < len(b.values) && b.values[i] == value {
		b.counts[i]++
		return
	}

	b.values = append(b.values, 0)
	copy(b.values[i+1:], b.values[i:])
	b.values[i] = value

	b.counts = append(b.counts, 0)
	copy(b.counts[i+1:], b.counts[i:])
	b.counts[i] = 1
}

// Empty reports whether the builder has never received an Insert (or was
// just Reset).
func (b *Builder) Empty() bool { return len(b.values) == 0 }

// Build freezes the builder into a Distribution, turning per-bin counts
// into cumulative ending indices. Building an empty builder is a
// contract violation: an empty distribution cannot be sampled from, so
// it must never exist.
func (b *Builder) Build() *Distribution {
	if len(b.values) == 0 {
		fault.Invariant("dist.Build", "cannot build an empty distribution")
	}

	endIndices := make([]int64, len(b.counts))
	var running int64
	for i, c := range b.counts {
		if c < 1 {
			fault.Invariant("dist.Build", "bin %d has non-positive count %d", i, c)
		}
		running += c
		endIndices[i] = running
	}

	return &Distribution{values: b.values, endIndices: endIndices}
}

// Distribution is an immutable, built histogram. Sample draws are
// proportional to each value's multiplicity.
type Distribution struct {
	values     []int64
	endIndices []int64
	dead       bool // poisoned by Finalize; any further use is a bug
}

// Len returns the total number of samples the distribution was built
// from (the last cumulative ending index).
func (d *Distribution) Len() int {
	if d.dead {
		fault.Invariant("dist.Len", "use of finalized distribution")
	}
	if len(d.endIndices) == 0 {
		return 0
	}
	return int(d.endIndices[len(d.endIndices)-1])
}

// Min returns the smallest value in the distribution.
func (d *Distribution) Min() int64 {
	d.mustNotEmpty("dist.Min")
	return d.values[0]
}

// Max returns the largest value in the distribution.
func (d *Distribution) Max() int64 {
	d.mustNotEmpty("dist.Max")
	return d.values[len(d.values)-1]
}

// NumBins returns the number of distinct values currently stored.
func (d *Distribution) NumBins() int { return len(d.values) }

// Sample draws one value uniformly weighted by multiplicity, using src
// as the source of randomness. Sampling an empty distribution is a
// contract violation.
func (d *Distribution) Sample(src rng.Source) int64 {
	d.mustNotEmpty("dist.Sample")

	k := int64(src.IntN(d.Len()))
	i := sort.Search(len(d.endIndices), func(i int) bool { return d.endIndices[i] > k })
	return d.values[i]
}

// Sub draws len = min(Len(left), Len(right)) paired samples, one from
// each distribution, and inserts their differences into builder, then
// builds and returns the resulting Distribution. This is the paired
// resampling form required for combining confidence intervals under
// subtraction (spec §9): never subtract summary statistics directly.
func Sub(builder *Builder, left, right *Distribution, src rng.Source) *Distribution {
	n := left.Len()
	if right.Len() < n {
		n = right.Len()
	}
	for i := 0; i < n; i++ {
		builder.Insert(left.Sample(src) - right.Sample(src))
	}
	return builder.Build()
}

// ScaledDiv draws len = min(Len(num), Len(denom)) paired samples and
// inserts sample(num)*factor/sample(denom) into builder, then builds and
// returns the result. The caller must guarantee denom never samples to
// zero; a zero draw is a programmer error (precondition violation), not
// an expected outcome.
func ScaledDiv(builder *Builder, num *Distribution, factor int64, denom *Distribution, src rng.Source) *Distribution {
	n := num.Len()
	if denom.Len() < n {
		n = denom.Len()
	}
	for i := 0; i < n; i++ {
		d := denom.Sample(src)
		if d == 0 {
			fault.Invariant("dist.ScaledDiv", "denominator sampled to zero")
		}
		builder.Insert(num.Sample(src) * factor / d)
	}
	return builder.Build()
}

// ForEachBin calls fn once per distinct value with its multiplicity,
// in ascending value order. Used by reporting code that needs the raw
// samples (e.g. to feed an external histogram) rather than a random
// draw.
func (d *Distribution) ForEachBin(fn func(value, count int64)) {
	d.mustNotEmpty("dist.ForEachBin")
	prev := int64(0)
	for i, end := range d.endIndices {
		fn(d.values[i], end-prev)
		prev = end
	}
}

// Reset discards the distribution's bins but reuses its backing arrays
// for the returned Builder, avoiding a fresh allocation on the next
// calibration round.
func (d *Distribution) Reset() *Builder {
	d.mustNotEmpty("dist.Reset")
	b := &Builder{
		values: d.values[:0],
		counts: d.endIndices[:0],
	}
	d.values = nil
	d.endIndices = nil
	d.dead = true
	return b
}

// Finalize releases the distribution's backing arrays and poisons it
// against further use.
func (d *Distribution) Finalize() {
	d.values = nil
	d.endIndices = nil
	d.dead = true
}

func (d *Distribution) mustNotEmpty(op string) {
	if d.dead || len(d.values) == 0 {
		fault.Invariant(op, "distribution is empty or finalized")
	}
}
