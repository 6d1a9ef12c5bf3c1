package outlier_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mbench/outlier"
)

var _ = Describe("Filter", func() {
	Describe("Seed", func() {
		It("rejects windows smaller than 3", func() {
			Expect(func() { outlier.Seed([]int64{1, 2}, outlier.DefaultTolerance) }).To(Panic())
		})

		It("maintains min <= max_normal <= max after seeding", func() {
			f, _ := outlier.Seed([]int64{100, 102, 101, 100, 101}, outlier.DefaultTolerance)
			Expect(f.Min()).To(BeNumerically("<=", f.MaxNormal()))
			Expect(f.MaxNormal()).To(BeNumerically("<=", f.Max()))
			Expect(f.MaxNormal()).To(BeNumerically("<=", f.UpperTolerance()))
		})
	})

	Describe("scenario S2", func() {
		It("flags a spike as an outlier, then reclassifies it once repeated", func() {
			f, _ := outlier.Seed([]int64{100, 102, 101, 100, 101}, outlier.DefaultTolerance)

			r1 := f.Apply(10_000)
			Expect(r1.CurrentIsOutlier).To(BeTrue())
			Expect(r1.PreviousNotOutlier).To(BeFalse())

			r2 := f.Apply(10_000)
			Expect(r2.CurrentIsOutlier).To(BeFalse())
			Expect(r2.PreviousNotOutlier).To(BeTrue())
			Expect(r2.PreviousInput).To(Equal(int64(10_000)))
		})
	})

	Describe("zero-spread sequences", func() {
		It("classifies every input as normal when all values are equal", func() {
			f, normal := outlier.Seed([]int64{7, 7, 7, 7, 7}, outlier.DefaultTolerance)
			Expect(normal).To(HaveLen(5))

			for i := 0; i < 20; i++ {
				r := f.Apply(7)
				Expect(r.CurrentIsOutlier).To(BeFalse())
			}
		})
	})

	Describe("eviction of a pending outlier", func() {
		It("never reports a value aging out of the window as promoted to normal", func() {
			f, _ := outlier.Seed([]int64{1, 1, 1, 1, 1}, outlier.DefaultTolerance)

			r := f.Apply(100)
			Expect(r.CurrentIsOutlier).To(BeTrue())

			// Five follow-up, non-extreme values exactly cycle the N=5
			// window once: the last of them overwrites the slot that
			// still held 100, evicting it with no reclassification ever
			// having happened while it was present.
			for _, x := range []int64{2, 3, 4, 5, 6} {
				r := f.Apply(x)
				Expect(r.PreviousNotOutlier).To(BeFalse())
			}
		})
	})

	Describe("invariants", func() {
		It("keeps min <= max_normal <= max <= ... after many mixed inputs", func() {
			f, _ := outlier.Seed([]int64{10, 11, 9, 10, 11}, outlier.DefaultTolerance)
			inputs := []int64{12, 9, 8, 50, 11, 10, 9, 8, 7, 11, 12, 13, 1000, 1000, 10}
			for _, x := range inputs {
				f.Apply(x)
				Expect(f.Min()).To(BeNumerically("<=", f.MaxNormal()))
				Expect(f.MaxNormal()).To(BeNumerically("<=", f.Max()))
				Expect(f.MaxNormal()).To(BeNumerically("<=", f.UpperTolerance()))
			}
		})
	})
})
