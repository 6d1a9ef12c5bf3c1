// Package stats implements the non-parametric bootstrap resampler that
// turns a Distribution of raw samples into a central value plus a
// symmetric confidence interval, without assuming the samples are
// normally distributed.
package stats

import (
	"sort"

	"github.com/sarchlab/mbench/dist"
	"github.com/sarchlab/mbench/fault"
	"github.com/sarchlab/mbench/rng"
)

// Statistics is a bootstrap-derived central value and confidence
// interval; low <= center <= high always holds.
type Statistics struct {
	Center int64
	Low    int64
	High   int64
}

// TailObservations is the reference number of desired tail observations
// per side (E in spec §4.3).
const TailObservations = 10

// TrialSize is the reference per-trial sample count (m in spec §4.3); it
// is kept odd so the median is a single element, not an average of two.
const TrialSize = 11

// Measurement and Calibration are the two reference confidence levels
// recommended by spec §4.3.
const (
	Measurement = 0.95
	Calibration = 0.99
)

// Analyzer owns a pre-sized buffer of per-trial medians and the quantile
// indices derived from its configured confidence level.
type Analyzer struct {
	confidence float64
	trialSize  int
	numMedians int
	lowIdx     int
	centerIdx  int
	highIdx    int

	medians []int64
	trial   []int64
}

// New builds an Analyzer for the given confidence fraction (0,1) using
// the reference trial size and tail-observation target.
func New(confidence float64) *Analyzer {
	return NewWithTrialSize(confidence, TrialSize)
}

// NewWithTrialSize is New with an explicit odd per-trial sample count,
// exposed for tests that want a small, exactly-reasoned trial size.
func NewWithTrialSize(confidence float64, trialSize int) *Analyzer {
	if confidence <= 0 || confidence >= 1 {
		fault.Invariant("stats.New", "confidence %v out of range (0,1)", confidence)
	}
	if trialSize < 1 || trialSize%2 == 0 {
		fault.Invariant("stats.New", "trial size %d must be odd and positive", trialSize)
	}

	numMedians := smallestOddAtLeast(2 * TailObservations / (1 - confidence))

	oneSidedTail := (1 - confidence) / 2
	a := &Analyzer{
		confidence: confidence,
		trialSize:  trialSize,
		numMedians: numMedians,
		lowIdx:     int(oneSidedTail * float64(numMedians)),
		centerIdx:  numMedians / 2,
		highIdx:    int((1 - oneSidedTail) * float64(numMedians)),
		medians:    make([]int64, numMedians),
		trial:      make([]int64, trialSize),
	}
	if a.highIdx >= numMedians {
		a.highIdx = numMedians - 1
	}
	return a
}

func smallestOddAtLeast(x float64) int {
	n := int(x)
	if float64(n) < x {
		n++
	}
	if n%2 == 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Analyze draws NumMedians() trials of TrialSize() samples each from d,
// takes each trial's median via insertion sort, and returns the
// {center, low, high} quantiles of the resulting median distribution.
func (a *Analyzer) Analyze(d *dist.Distribution, src rng.Source) Statistics {
	for t := 0; t < a.numMedians; t++ {
		for i := 0; i < a.trialSize; i++ {
			v := d.Sample(src)
			j := i
			for j > 0 && a.trial[j-1] > v {
				a.trial[j] = a.trial[j-1]
				j--
			}
			a.trial[j] = v
		}
		a.medians[t] = a.trial[a.trialSize/2]
	}

	sort.Slice(a.medians, func(i, j int) bool { return a.medians[i] < a.medians[j] })

	return Statistics{
		Center: a.medians[a.centerIdx],
		Low:    a.medians[a.lowIdx],
		High:   a.medians[a.highIdx],
	}
}

// NumMedians returns the number of bootstrap trials this Analyzer runs.
func (a *Analyzer) NumMedians() int { return a.numMedians }

// TrialSize returns the per-trial sample count.
func (a *Analyzer) TrialSize() int { return a.trialSize }
