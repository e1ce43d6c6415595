package telemetry

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/metrics"
	"github.com/san-kum/glide/internal/sim"
)

func TestObserveSetsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("NewRunCollector: %v", err)
	}

	rec := metrics.Record{
		Time:       1.5,
		Step:       3,
		Buckets:    metrics.Buckets{Kinetic: 2, Elastic: 3, Grav: -4, Battery: 10, Total: 11, SoC: 0.25},
		Tension:    42,
		MaxStretch: 0.01,
		Residual:   -0.5,
		Drift:      true,
	}
	c.Observe("local_demo", rec)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"kinetic", testutil.ToFloat64(c.Energy.WithLabelValues("local_demo", "kinetic")), 2},
		{"grav", testutil.ToFloat64(c.Energy.WithLabelValues("local_demo", "grav")), -4},
		{"total", testutil.ToFloat64(c.Energy.WithLabelValues("local_demo", "total")), 11},
		{"soc", testutil.ToFloat64(c.SoC.WithLabelValues("local_demo")), 0.25},
		{"time", testutil.ToFloat64(c.SimTime.WithLabelValues("local_demo")), 1.5},
		{"tension", testutil.ToFloat64(c.Tension.WithLabelValues("local_demo")), 42},
		{"records", testutil.ToFloat64(c.Records.WithLabelValues("local_demo")), 1},
		{"drift", testutil.ToFloat64(c.DriftWarnings.WithLabelValues("local_demo")), 1},
	}
	for _, tc := range checks {
		if tc.got != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}

	if n, sum := histogram(t, reg, "glide_energy_residual_joules", "local_demo"); n != 1 || sum != 0.5 {
		t.Errorf("residual histogram count=%d sum=%v, want 1 and 0.5", n, sum)
	}
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewRunCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}
	a.Observe("x", metrics.Record{})
	if got := testutil.ToFloat64(b.Records.WithLabelValues("x")); got != 1 {
		t.Errorf("collectors not shared, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewRunCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	c.Observe("engineering", metrics.Record{Step: 1, Buckets: metrics.Buckets{Total: 7}})

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{
		"glide_energy_joules",
		"glide_battery_soc_ratio",
		"glide_records_total",
		"glide_energy_residual_joules",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %q in /metrics output", name)
		}
	}
	if !strings.Contains(body, `glide_energy_joules{bucket="total",preset="engineering"} 7`) {
		t.Errorf("total gauge missing from output:\n%s", body)
	}
}

func TestObserverFollowsRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewRunCollector(reg)
	if err != nil {
		t.Fatal(err)
	}

	cfg, _ := config.GetPreset("local_demo")
	cfg.Duration = 0.1
	cfg.LogInterval = 0
	s, err := sim.New(cfg, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.AddObserver(c.Observer(cfg.Name))

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(c.Records.WithLabelValues("local_demo")); int(got) != len(res.Records) {
		t.Errorf("records = %v, want %d", got, len(res.Records))
	}
	if got := testutil.ToFloat64(c.SimTime.WithLabelValues("local_demo")); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("sim time = %v", got)
	}
	want := res.Summary.Final.Total
	if got := testutil.ToFloat64(c.Energy.WithLabelValues("local_demo", "total")); got != want {
		t.Errorf("total = %v, want %v", got, want)
	}
}

func histogram(t *testing.T, gatherer prometheus.Gatherer, name, preset string) (uint64, float64) {
	t.Helper()

	families, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if h := m.GetHistogram(); h != nil && label(m, "preset") == preset {
				return h.GetSampleCount(), h.GetSampleSum()
			}
		}
	}
	return 0, 0
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
