package clock_test

import (
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mbench/clock"
	"github.com/sarchlab/mbench/dist"
	"github.com/sarchlab/mbench/logging"
	"github.com/sarchlab/mbench/outlier"
	"github.com/sarchlab/mbench/rng"
	"github.com/sarchlab/mbench/stats"
)

func seedFilter() *outlier.Filter {
	f, _ := outlier.Seed([]int64{100, 102, 101, 100, 101}, outlier.DefaultTolerance)
	return f
}

var _ = Describe("OS clock", func() {
	It("is monotonic for consecutive readings", func() {
		log := logging.Open(logging.DefaultConfig())
		defer log.Close()

		filter := seedFilter()
		src := rng.System{}
		calAnalyzer := stats.New(stats.Calibration)
		os := clock.NewOS(log, filter, src, calAnalyzer)
		defer os.Finalize()

		b := dist.NewBuilder()
		measureFilter := seedFilter()
		d := os.Measure(nil, func(ctx any) {}, 0, 1, measureFilter, b)
		Expect(d.Len()).To(BeNumerically(">=", 0))
	})

	Describe("scenario S5", func() {
		It("measures an empty workload with bounded, positive central duration", func() {
			log := logging.Open(logging.DefaultConfig())
			defer log.Close()

			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			filter := seedFilter()
			src := rng.System{}
			calAnalyzer := stats.New(stats.Calibration)
			measurement := stats.New(stats.Measurement)
			os := clock.NewOS(log, filter, src, calAnalyzer)
			defer os.Finalize()

			b := dist.NewBuilder()
			numRuns := 1000
			d := os.Measure(nil, func(ctx any) {}, 0, numRuns, filter, b)

			Expect(d.Len()).To(BeNumerically("<=", numRuns))

			st := measurement.Analyze(d, src)
			Expect(st.Center).To(BeNumerically(">", 0))
			Expect(st.Center).To(BeNumerically("<", 10_000_000))
		})
	})
})

var _ = Describe("Duration", func() {
	It("does not panic for a non-decreasing pair", func() {
		Expect(func() {
			clock.Duration(clock.Timestamp{}, clock.Timestamp{})
		}).NotTo(Panic())
	})
})
