//go:build amd64

package clock_test

import (
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mbench/clock"
	"github.com/sarchlab/mbench/dist"
	"github.com/sarchlab/mbench/logging"
	"github.com/sarchlab/mbench/rng"
	"github.com/sarchlab/mbench/stats"
)

var _ = Describe("TSC clock", func() {
	BeforeEach(func() {
		if !clock.TSCAvailable() {
			Skip("no invariant TSC on this CPU")
		}
	})

	Describe("scenario S6", func() {
		It("converts a constant-ticks distribution to ~1 second", func() {
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

			tsc, err := clock.NewTSC(log, os, filter, calAnalyzer, src)
			Expect(err).NotTo(HaveOccurred())
			defer tsc.Finalize()

			freqCenter := tsc.FrequencyStats().Center
			Expect(freqCenter).To(BeNumerically(">", 0))

			ticksBuilder := dist.NewBuilder()
			for i := 0; i < 1000; i++ {
				ticksBuilder.Insert(freqCenter)
			}
			ticks := ticksBuilder.Build()

			tmp := dist.NewBuilder()
			st, _ := tsc.Duration(tmp, ticks, measurement, src)

			width := tsc.FrequencyStats().High - tsc.FrequencyStats().Low
			Expect(st.Center).To(BeNumerically("~", 1_000_000_000, float64(width)+1))
		})
	})
})
