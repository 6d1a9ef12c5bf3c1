package stats_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mbench/dist"
	"github.com/sarchlab/mbench/rng"
	"github.com/sarchlab/mbench/stats"
)

var _ = Describe("Analyzer", func() {
	It("rejects out-of-range confidence fractions", func() {
		Expect(func() { stats.New(0) }).To(Panic())
		Expect(func() { stats.New(1) }).To(Panic())
		Expect(func() { stats.New(-0.1) }).To(Panic())
	})

	Describe("scenario S3", func() {
		It("returns {42,42,42} for a constant distribution of 42 repeated 10000 times", func() {
			a := stats.New(stats.Measurement)
			b := dist.NewBuilder()
			for i := 0; i < 10_000; i++ {
				b.Insert(42)
			}
			d := b.Build()

			got := a.Analyze(d, rng.System{})
			Expect(got).To(Equal(stats.Statistics{Center: 42, Low: 42, High: 42}))
		})
	})

	Describe("general properties", func() {
		It("returns low <= center <= high within [min,max] for any non-empty distribution", func() {
			a := stats.New(stats.Measurement)
			b := dist.NewBuilder()
			for i := int64(0); i < 5000; i++ {
				b.Insert(100 + i%53)
			}
			d := b.Build()

			got := a.Analyze(d, rng.System{})
			Expect(got.Low).To(BeNumerically("<=", got.Center))
			Expect(got.Center).To(BeNumerically("<=", got.High))
			Expect(got.Low).To(BeNumerically(">=", d.Min()))
			Expect(got.High).To(BeNumerically("<=", d.Max()))
		})
	})

	Describe("calibration confidence", func() {
		It("runs more trials at 99% than at 95%", func() {
			m := stats.New(stats.Measurement)
			c := stats.New(stats.Calibration)
			Expect(c.NumMedians()).To(BeNumerically(">", m.NumMedians()))
		})
	})
})
