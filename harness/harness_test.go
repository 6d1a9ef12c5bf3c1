package harness_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mbench/harness"
	"github.com/sarchlab/mbench/rng"
)

var _ = Describe("Harness", func() {
	It("rejects more than one positional argument", func() {
		Expect(func() {
			harness.Initialize(harness.DefaultConfig(), []string{"a", "b"}, rng.System{})
		}).To(Panic())
	})

	It("runs a matching benchmark and skips a non-matching one", func() {
		h := harness.Initialize(harness.DefaultConfig(), []string{"target"}, rng.System{})
		defer h.Finalize()

		var ranTarget, ranOther bool

		gotTarget := h.Run(harness.Workload{
			Name:     "target_benchmark",
			Callable: func(ctx any, h *harness.Harness) { ranTarget = true },
		})
		gotOther := h.Run(harness.Workload{
			Name:     "unrelated_benchmark",
			Callable: func(ctx any, h *harness.Harness) { ranOther = true },
		})

		Expect(gotTarget).To(BeTrue())
		Expect(ranTarget).To(BeTrue())
		Expect(gotOther).To(BeFalse())
		Expect(ranOther).To(BeFalse())
	})

	It("exposes a usable clock to callables", func() {
		h := harness.Initialize(harness.DefaultConfig(), nil, rng.System{})
		defer h.Finalize()

		var sawClock bool
		h.Run(harness.Workload{
			Name: "probe",
			Callable: func(ctx any, h *harness.Harness) {
				sawClock = h.Clock() != nil
			},
		})
		Expect(sawClock).To(BeTrue())
	})
})
