package dist_test

import (
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mbench/dist"
	"github.com/sarchlab/mbench/rng"
)

var _ = Describe("Builder/Distribution", func() {
	Describe("Insert and Build", func() {
		It("matches scenario S1: [5,3,5,7,3,5] -> 3 bins, len 6, min 3, max 7", func() {
			b := dist.NewBuilder()
			for _, v := range []int64{5, 3, 5, 7, 3, 5} {
				b.Insert(v)
			}
			d := b.Build()

			Expect(d.NumBins()).To(Equal(3))
			Expect(d.Len()).To(Equal(6))
			Expect(d.Min()).To(Equal(int64(3)))
			Expect(d.Max()).To(Equal(int64(7)))
		})

		It("keeps bin values strictly increasing regardless of insertion order", func() {
			b := dist.NewBuilder()
			order := []int64{9, -3, 0, 9, -3, 5, -10}
			for _, v := range order {
				b.Insert(v)
			}
			d := b.Build()

			seen := map[int64]bool{}
			for _, v := range order {
				seen[v] = true
			}
			Expect(d.NumBins()).To(Equal(len(seen)))

			var prev int64
			first := true
			d.ForEachBin(func(value, _ int64) {
				if !first {
					Expect(value).To(BeNumerically(">", prev))
				}
				prev, first = value, false
			})
		})

		It("panics when building an empty distribution", func() {
			b := dist.NewBuilder()
			Expect(func() { b.Build() }).To(Panic())
		})
	})

	Describe("Sample", func() {
		It("samples proportional to multiplicity using the fixed source", func() {
			b := dist.NewBuilder()
			for _, v := range []int64{5, 3, 5, 7, 3, 5} {
				b.Insert(v)
			}
			d := b.Build()

			counts := map[int64]int{}
			// A fixed source cycling 0..5 exactly covers every slot once.
			src := rng.NewFixed(0, 1, 2, 3, 4, 5)
			for i := 0; i < 6; i++ {
				counts[d.Sample(src)]++
			}
			Expect(counts[int64(3)]).To(Equal(2))
			Expect(counts[int64(5)]).To(Equal(3))
			Expect(counts[int64(7)]).To(Equal(1))
		})

		It("panics sampling an empty or finalized distribution", func() {
			b := dist.NewBuilder()
			b.Insert(1)
			d := b.Build()
			d.Finalize()
			Expect(func() { d.Sample(rng.System{}) }).To(Panic())
		})
	})

	Describe("law of large numbers", func() {
		It("converges the empirical histogram to the source multiset", func() {
			b := dist.NewBuilder()
			multiset := map[int64]int{10: 1, 20: 3, 30: 6}
			for v, c := range multiset {
				for i := 0; i < c; i++ {
					b.Insert(v)
				}
			}
			d := b.Build()
			total := 0
			for _, c := range multiset {
				total += c
			}

			counts := map[int64]int{}
			trials := 20000
			src := rng.System{}
			for i := 0; i < trials; i++ {
				counts[d.Sample(src)]++
			}
			for v, c := range multiset {
				expected := float64(c) / float64(total)
				got := float64(counts[v]) / float64(trials)
				Expect(got).To(BeNumerically("~", expected, 0.03))
			}
		})
	})

	Describe("Sub", func() {
		It("has a central tendency near zero when both sides are the same distribution", func() {
			b := dist.NewBuilder()
			for i := int64(0); i < 5000; i++ {
				b.Insert(100 + i%37)
			}
			d := b.Build()

			out := dist.Sub(dist.NewBuilder(), d, d, rng.System{})
			samples := make([]int64, 0, out.Len())
			src := rng.System{}
			for i := 0; i < out.Len(); i++ {
				samples = append(samples, out.Sample(src))
			}
			sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
			median := samples[len(samples)/2]
			Expect(median).To(BeNumerically("~", 0, 5))
		})
	})

	Describe("ScaledDiv", func() {
		It("computes sample(num)*factor/sample(denom) and rejects zero denominators", func() {
			num := dist.NewBuilder()
			num.Insert(100)
			numD := num.Build()

			four := dist.NewBuilder()
			four.Insert(4)
			out := dist.ScaledDiv(dist.NewBuilder(), numD, 3, four.Build(), rng.System{})
			Expect(out.Len()).To(Equal(1))
			Expect(out.Min()).To(Equal(int64(75)))

			denom := dist.NewBuilder()
			denom.Insert(0)
			denomD := denom.Build()

			Expect(func() {
				dist.ScaledDiv(dist.NewBuilder(), numD, 1, denomD, rng.System{})
			}).To(Panic())
		})
	})

	Describe("ForEachBin", func() {
		It("visits every bin in ascending order with its multiplicity", func() {
			b := dist.NewBuilder()
			for _, v := range []int64{5, 3, 5, 7, 3, 5} {
				b.Insert(v)
			}
			d := b.Build()

			var values, counts []int64
			d.ForEachBin(func(value, count int64) {
				values = append(values, value)
				counts = append(counts, count)
			})
			Expect(values).To(Equal([]int64{3, 5, 7}))
			Expect(counts).To(Equal([]int64{2, 3, 1}))
		})
	})

	Describe("Reset", func() {
		It("returns a usable empty builder and poisons the source distribution", func() {
			b := dist.NewBuilder()
			b.Insert(42)
			d := b.Build()

			reused := d.Reset()
			Expect(reused.Empty()).To(BeTrue())
			reused.Insert(7)
			d2 := reused.Build()
			Expect(d2.Len()).To(Equal(1))

			Expect(func() { d.Len() }).To(Panic())
		})
	})
})
