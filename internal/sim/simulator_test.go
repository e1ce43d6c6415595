package sim

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/control"
	"github.com/san-kum/glide/internal/dynamo"
	"github.com/san-kum/glide/internal/metrics"
)

// quietDemo is the local demo with a fixed anchor and no EDT.
func quietDemo() config.Config {
	cfg, _ := config.GetPreset("local_demo")
	cfg.Duration = 1
	cfg.WinchProfile = control.ProfileSpec{Kind: "none"}
	cfg.CurrentProfile = control.ProfileSpec{Kind: "none"}
	cfg.LogInterval = 0
	return cfg
}

func TestSimulatorRun(t *testing.T) {
	cfg := quietDemo()
	s, err := New(cfg, nil, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.Records) != 201 {
		t.Errorf("expected 201 records, got %d", len(result.Records))
	}
	if result.Final.Step != 200 {
		t.Errorf("expected 200 steps, got %d", result.Final.Step)
	}
	if math.Abs(result.Final.Time-1) > 1e-9 {
		t.Errorf("final time = %f, want 1", result.Final.Time)
	}
	if result.Substeps != 1 {
		t.Errorf("dt equal to max sub-step should give one sub-step, got %d", result.Substeps)
	}
	for _, rec := range result.Records {
		if rec.Total != rec.Kinetic+rec.Elastic+rec.Grav+rec.Battery {
			t.Fatalf("t=%f: total is not the sum of the buckets", rec.Time)
		}
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero dt", func(c *config.Config) { c.Dt = 0 }},
		{"negative duration", func(c *config.Config) { c.Duration = -1 }},
		{"negative mass", func(c *config.Config) { c.Tether.RhoL = -1 }},
		{"zero stiffness", func(c *config.Config) { c.Tether.E = 0 }},
		{"unknown gravity", func(c *config.Config) { c.Gravity.Mode = "flat-earth" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := quietDemo()
			tt.mutate(&cfg)
			_, err := New(cfg, nil, nil, nil)
			if !errors.Is(err, dynamo.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSimulator_Substeps(t *testing.T) {
	tests := []struct {
		dt, max float64
		n       int
	}{
		{0.001, 0.005, 1},
		{0.01, 0.005, 2},
		{0.05, 0.005, 10},
	}
	for _, tt := range tests {
		cfg := quietDemo()
		cfg.Dt, cfg.MaxSubstepDt = tt.dt, tt.max
		s, err := New(cfg, nil, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		n, h := s.Substeps()
		if n != tt.n || h > tt.max {
			t.Errorf("dt=%g max=%g: %d sub-steps of %g", tt.dt, tt.max, n, h)
		}
	}
}

func TestSimulator_AnchorFollowsMotor(t *testing.T) {
	cfg := quietDemo()
	s, err := New(cfg, control.Constant(4), control.Constant(0), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	anchor := s.State().Anchor()
	want := 4 * cfg.Motor.RSpool * cfg.Duration
	if math.Abs(anchor.Pos[1]-want) > 1e-9 || anchor.Pos[0] != 0 {
		t.Errorf("anchor at %v, want (0, %g)", anchor.Pos, want)
	}
	if !anchor.IsAnchor() {
		t.Error("anchor became a free node")
	}
	if s.Ledger().Summary().Totals.AnchorWork == 0 {
		t.Error("moving anchor did no work")
	}
}

func TestSimulator_EDTOffLeavesBatteryAlone(t *testing.T) {
	cfg := quietDemo()
	cfg.CurrentProfile = control.ProfileSpec{Kind: "constant", Amplitude: 1}
	s, err := New(cfg, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	initial := cfg.Battery.CapacityJ * cfg.Battery.InitialSoC
	for _, rec := range res.Records {
		if rec.Battery != initial || rec.EDTWork != 0 || rec.EDTDraw != 0 {
			t.Fatalf("t=%f: EDT off but battery %g, work %g", rec.Time, rec.Battery, rec.EDTWork)
		}
	}
}

func TestSimulator_Instability(t *testing.T) {
	cfg := quietDemo()
	cfg.Duration = 60
	cfg.Dt = 0.05
	cfg.MaxSubstepDt = 0.05

	s, err := New(cfg, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Run(context.Background())
	if !errors.Is(err, dynamo.ErrUnstable) {
		t.Fatalf("expected ErrUnstable, got %v", err)
	}

	var inst *dynamo.InstabilityError
	if !errors.As(err, &inst) {
		t.Fatalf("expected *InstabilityError, got %T", err)
	}
	if inst.Node < 1 || inst.Step < 1 || inst.Reason == "" {
		t.Errorf("diagnostic incomplete: %+v", inst)
	}
	if res == nil || len(res.Records) != inst.Step {
		t.Errorf("partial result should hold the steps before step %d", inst.Step)
	}
}

func TestSimulator_Cancellation(t *testing.T) {
	cfg := quietDemo()
	cfg.Duration = 60

	s, err := New(cfg, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.AddObserver(ObserverFunc(func(rec metrics.Record, _ dynamo.State) {
		if rec.Step == 10 {
			cancel()
		}
	}))

	res, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Final.Step != 10 {
		t.Errorf("run should stop after the step in flight, stopped at %d", res.Final.Step)
	}
}

func TestSimulator_RecordInterval(t *testing.T) {
	cfg := quietDemo()
	cfg.RecordInterval = 0.1

	s, err := New(cfg, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 11 {
		t.Errorf("expected 11 records at 0.1 s over 1 s, got %d", len(res.Records))
	}
	if res.Summary.Steps != 200 {
		t.Errorf("ledger should still check every step, saw %d", res.Summary.Steps)
	}
}

type countMetric struct{ n int }

func (c *countMetric) Name() string           { return "count" }
func (c *countMetric) Observe(metrics.Record) { c.n++ }
func (c *countMetric) Value() float64         { return float64(c.n) }
func (c *countMetric) Reset()                 { c.n = 0 }

func TestSimulatorMetrics(t *testing.T) {
	s, err := New(quietDemo(), nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	metric := &countMetric{}
	s.AddMetric(metric)
	for _, m := range metrics.Defaults() {
		s.AddMetric(m)
	}

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Metrics["count"] != 201 {
		t.Errorf("expected the initial record and 200 steps, got %v", result.Metrics["count"])
	}
	if result.Metrics["stability"] != 1 {
		t.Errorf("stability = %v, want 1", result.Metrics["stability"])
	}
	if _, ok := result.Metrics["peak_tension"]; !ok {
		t.Error("default metrics missing")
	}
}

func TestSimulator_LateObserversSeeInitialRecord(t *testing.T) {
	s, err := New(quietDemo(), nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	var seen []metrics.Record
	s.AddObserver(ObserverFunc(func(rec metrics.Record, _ dynamo.State) {
		seen = append(seen, rec)
	}))

	if _, err := s.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0].Step != 0 || seen[0].Time != 0 || seen[1].Step != 1 {
		t.Fatalf("observed %+v", seen)
	}
	if seen[0].Total != s.Ledger().Records()[0].Total {
		t.Error("first observed record is not the ledger start")
	}

	s.Reset()
	seen = nil
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if seen[0].Step != 0 || len(seen) != len(s.Ledger().Records()) {
		t.Errorf("after reset: first step %d, %d observed, %d kept", seen[0].Step, len(seen), len(s.Ledger().Records()))
	}
}

func TestSimulator_StepPastDuration(t *testing.T) {
	cfg := quietDemo()
	cfg.Duration = 0.01
	s, err := New(cfg, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := s.Step(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if !s.Done() || s.State().Step != 5 {
		t.Errorf("step count %d", s.State().Step)
	}

	s.Reset()
	if s.State().Step != 0 || s.State().Time != 0 || len(s.Ledger().Records()) != 1 {
		t.Error("reset did not restore the initial state")
	}
}

func TestSimulator_NotInitialized(t *testing.T) {
	var s Simulator
	if _, err := s.Run(context.Background()); !errors.Is(err, dynamo.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestBatch(t *testing.T) {
	var cfgs []config.Config
	for _, name := range []string{"local_demo", "engineering"} {
		cfg, _ := config.GetPreset(name)
		cfg.Duration = 0.05
		cfg.LogInterval = 0
		cfgs = append(cfgs, cfg)
	}

	b := NewBatch(cfgs, nil)
	b.SetLimit(2)
	var setups atomic.Int32
	b.OnSetup(func(int, *Simulator) { setups.Add(1) })

	results, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(results) != 2 || results[0].Config.Name != "local_demo" || results[1].Config.Name != "engineering" {
		t.Errorf("results out of order")
	}
	if n := setups.Load(); n != 2 {
		t.Errorf("setup hook ran %d times", n)
	}
}

func TestBatch_InvalidConfig(t *testing.T) {
	bad := quietDemo()
	bad.Tether.N = 0
	_, err := NewBatch([]config.Config{quietDemo(), bad}, nil).Run(context.Background())
	if !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
