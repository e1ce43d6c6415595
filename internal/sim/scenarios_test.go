package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/control"
	"github.com/san-kum/glide/internal/metrics"
	"github.com/san-kum/glide/internal/sim"
)

func still() control.ProfileSpec { return control.ProfileSpec{Kind: "none"} }

func run(cfg config.Config) *sim.Result {
	s, err := sim.New(cfg, nil, nil, nil)
	Expect(err).NotTo(HaveOccurred())
	res, err := s.Run(context.Background())
	Expect(err).NotTo(HaveOccurred())
	return res
}

func maxDeviation(records []metrics.Record) float64 {
	e0 := records[0].Mechanical()
	var worst float64
	for _, rec := range records {
		worst = math.Max(worst, math.Abs(rec.Mechanical()-e0))
	}
	return worst / math.Abs(e0)
}

var _ = Describe("energy bookkeeping", func() {
	Context("an undamped chain swinging from a fixed anchor", func() {
		var cfg config.Config

		BeforeEach(func() {
			cfg, _ = config.GetPreset("local_demo")
			cfg.Duration = 5
			cfg.LogInterval = 0
			cfg.Tether.DampingRatio = 0
			cfg.Tether.HangDirection = [2]float64{0.6, -0.8}
			cfg.WinchProfile = still()
			cfg.CurrentProfile = still()
		})

		It("keeps mechanical energy constant", func() {
			res := run(cfg)
			Expect(maxDeviation(res.Records)).To(BeNumerically("<", 1e-3))
			Expect(res.Summary.DriftWarnings).To(BeZero())
			Expect(res.Summary.Totals.DampingLoss).To(BeZero())
		})

		It("holds tighter with velocity Verlet", func() {
			cfg.Stepper = config.StepperVelocityVerlet
			res := run(cfg)
			Expect(maxDeviation(res.Records)).To(BeNumerically("<", 1e-5))
		})

		It("leaves the battery untouched", func() {
			res := run(cfg)
			Expect(res.Summary.Final.Battery).To(Equal(cfg.Battery.CapacityJ * cfg.Battery.InitialSoC))
			Expect(res.Clamps).To(BeEmpty())
		})
	})

	DescribeTable("balances anchor work while the winch reels the chain",
		func(stepper string) {
			cfg, _ := config.GetPreset("local_demo")
			cfg.Stepper = stepper
			cfg.Duration = 5
			cfg.LogInterval = 0
			cfg.MaxSubstepDt = 0.0025
			cfg.ConstraintIterations = 0
			cfg.Tether.DampingRatio = 0
			cfg.CurrentProfile = still()
			cfg.WinchProfile = control.ProfileSpec{Kind: "sine", Amplitude: 8, Frequency: 0.2}

			res := run(cfg)
			sum := res.Summary
			Expect(math.Abs(sum.Totals.AnchorWork)).To(BeNumerically(">", 10))
			Expect(math.Abs(sum.Unexplained)).To(BeNumerically("<", 0.1*math.Abs(sum.Totals.AnchorWork)),
				"unexplained %.2f J against %.2f J of anchor work", sum.Unexplained, sum.Totals.AnchorWork)
		},
		Entry("symplectic Euler", config.StepperSymplecticEuler),
		Entry("velocity Verlet", config.StepperVelocityVerlet),
	)

	Context("a damped three-node tether released stretched", func() {
		var res *sim.Result

		BeforeEach(func() {
			cfg := config.DefaultConfig()
			cfg.Tether.N = 2
			cfg.Tether.L0 = 20
			cfg.Tether.DampingRatio = 0.2
			cfg.Tether.InitialStretch = 0.1
			cfg.Dt = 0.001
			cfg.MaxSubstepDt = 0.0005
			cfg.ConstraintIterations = 0
			cfg.Duration = 3
			cfg.LogInterval = 0
			cfg.WinchProfile = still()
			cfg.CurrentProfile = still()
			res = run(cfg)
		})

		It("never gains mechanical energy", func() {
			prev := res.Records[0].Mechanical()
			for _, rec := range res.Records[1:] {
				Expect(rec.Mechanical()).To(BeNumerically("<=", prev+1e-9*math.Abs(prev)), "t=%f", rec.Time)
				prev = rec.Mechanical()
			}
		})

		It("settles toward the rest length", func() {
			Expect(res.Records[0].MaxStretch).To(BeZero())
			Expect(res.Summary.Final.MaxStretch).To(BeNumerically("<", 0.01))
		})

		It("books the loss as damping", func() {
			Expect(res.Summary.Totals.DampingLoss).To(BeNumerically(">", 0))
			Expect(res.Summary.MaxResidual).To(BeNumerically("<", 1e-2*res.Records[0].Elastic))
		})
	})

	Context("an EDT boosting a spinning tether in orbit", func() {
		var res *sim.Result

		BeforeEach(func() {
			cfg := config.DefaultConfig()
			cfg.Gravity.Mode = config.GravityOrbital
			cfg.Tether.Anchor = [2]float64{0, cfg.Gravity.REarth + 400e3}
			cfg.Tether.N = 4
			cfg.Tether.L0 = 100
			cfg.Tether.DampingRatio = 0
			cfg.Tether.InitialSpin = 0.1
			cfg.Dt = 0.01
			cfg.MaxSubstepDt = 0.001
			cfg.ConstraintIterations = 0
			cfg.Duration = 1
			cfg.LogInterval = 0
			cfg.EDT = config.EDTConfig{
				Mode:       config.EDTBoost,
				B:          [3]float64{0, 0, 0.5},
				Resistance: 1,
				IMax:       10,
			}
			cfg.Battery.CapacityJ = 1e6
			cfg.WinchProfile = still()
			cfg.CurrentProfile = control.ProfileSpec{Kind: "constant", Amplitude: 1}
			res = run(cfg)
		})

		It("turns battery energy into mechanical energy every step", func() {
			for i := 1; i < len(res.Records); i++ {
				prev, rec := res.Records[i-1], res.Records[i]
				Expect(rec.Mechanical()).To(BeNumerically(">", prev.Mechanical()), "t=%f", rec.Time)
				Expect(rec.Battery).To(BeNumerically("<", prev.Battery), "t=%f", rec.Time)
			}
			Expect(res.Summary.DriftWarnings).To(BeZero())
		})

		It("draws more from the battery than it delivers", func() {
			totals := res.Summary.Totals
			Expect(totals.EDTWork).To(BeNumerically(">", 0))
			Expect(totals.EDTDraw).To(BeNumerically(">", totals.EDTWork))
			Expect(totals.ResistiveLoss).To(BeNumerically(">", 0))
		})
	})
})

var _ = Describe("constraint projection", func() {
	DescribeTable("reduces the worst segment stretch with more iterations",
		func(iterations []int) {
			prev := math.Inf(1)
			var last float64
			for _, it := range iterations {
				cfg := config.DefaultConfig()
				cfg.Tether.N = 5
				cfg.Tether.L0 = 50
				cfg.Tether.InitialStretch = 0.2
				cfg.ConstraintTolerance = 0.02
				cfg.ConstraintIterations = it
				cfg.Dt = 0.01
				cfg.MaxSubstepDt = 0.005
				cfg.WinchProfile = still()

				s, err := sim.New(cfg, nil, nil, nil)
				Expect(err).NotTo(HaveOccurred())
				rec, err := s.Step(context.Background())
				Expect(err).NotTo(HaveOccurred())

				Expect(rec.MaxStretch).To(BeNumerically("<", prev), "iterations=%d", it)
				prev, last = rec.MaxStretch, rec.MaxStretch
			}
			Expect(last).To(BeNumerically("<=", 0.02+1e-9))
		},
		Entry("from none to converged", []int{0, 10, 40, 400}),
	)
})

var _ = Describe("presets", func() {
	DescribeTable("run briefly without drift",
		func(name string) {
			cfg, err := config.GetPreset(name)
			Expect(err).NotTo(HaveOccurred())
			cfg.Duration = 2
			cfg.LogInterval = 0
			res := run(cfg)
			Expect(res.Summary.DriftWarnings).To(BeZero())
			Expect(res.Summary.ClampEvents).To(BeZero())
			Expect(res.Final.Step).To(Equal(int(math.Floor(2/cfg.Dt + 1e-9))))
		},
		Entry("local demo", "local_demo"),
		Entry("engineering", "engineering"),
		Entry("orbital test", "orbital_test"),
	)
})
