// Package telemetry exports the energy state of running simulations as
// Prometheus metrics.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/glide/internal/dynamo"
	"github.com/san-kum/glide/internal/logging"
	"github.com/san-kum/glide/internal/metrics"
	"github.com/san-kum/glide/internal/sim"
)

// RunCollector bundles the gauges and counters fed by simulation records,
// labeled by preset so concurrent batch runs stay apart.
type RunCollector struct {
	gatherer prometheus.Gatherer

	Energy        *prometheus.GaugeVec
	SoC           *prometheus.GaugeVec
	SimTime       *prometheus.GaugeVec
	Tension       *prometheus.GaugeVec
	MaxStretch    *prometheus.GaugeVec
	Records       *prometheus.CounterVec
	DriftWarnings *prometheus.CounterVec
	Residuals     *prometheus.HistogramVec
}

// NewRunCollector registers the run metrics against reg, defaulting to the
// global registry when nil. Registering twice returns the existing
// collectors.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	energy, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glide_energy_joules",
		Help: "Energy per bucket (kinetic, elastic, grav, battery, total) at the last record.",
	}, []string{"preset", "bucket"}), "glide_energy_joules")
	if err != nil {
		return nil, err
	}
	soc, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glide_battery_soc_ratio",
		Help: "Battery state of charge.",
	}, []string{"preset"}), "glide_battery_soc_ratio")
	if err != nil {
		return nil, err
	}
	simTime, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glide_sim_time_seconds",
		Help: "Simulation time of the last record.",
	}, []string{"preset"}), "glide_sim_time_seconds")
	if err != nil {
		return nil, err
	}
	tension, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glide_anchor_tension_newtons",
		Help: "Tension of the anchor segment.",
	}, []string{"preset"}), "glide_anchor_tension_newtons")
	if err != nil {
		return nil, err
	}
	stretch, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glide_max_stretch_ratio",
		Help: "Largest relative segment length error after the constraint pass.",
	}, []string{"preset"}), "glide_max_stretch_ratio")
	if err != nil {
		return nil, err
	}
	records, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "glide_records_total",
		Help: "Energy records kept by the ledger.",
	}, []string{"preset"}), "glide_records_total")
	if err != nil {
		return nil, err
	}
	drift, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "glide_drift_warnings_total",
		Help: "Kept records whose energy residual exceeded the drift tolerance.",
	}, []string{"preset"}), "glide_drift_warnings_total")
	if err != nil {
		return nil, err
	}
	residuals, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "glide_energy_residual_joules",
		Help:    "Absolute unexplained mechanical energy change per step.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 10, 12),
	}, []string{"preset"}), "glide_energy_residual_joules")
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		gatherer:      gatherer,
		Energy:        energy,
		SoC:           soc,
		SimTime:       simTime,
		Tension:       tension,
		MaxStretch:    stretch,
		Records:       records,
		DriftWarnings: drift,
		Residuals:     residuals,
	}, nil
}

// Observe updates the metrics of preset from one record.
func (c *RunCollector) Observe(preset string, rec metrics.Record) {
	if c == nil {
		return
	}
	c.Energy.WithLabelValues(preset, "kinetic").Set(rec.Kinetic)
	c.Energy.WithLabelValues(preset, "elastic").Set(rec.Elastic)
	c.Energy.WithLabelValues(preset, "grav").Set(rec.Grav)
	c.Energy.WithLabelValues(preset, "battery").Set(rec.Battery)
	c.Energy.WithLabelValues(preset, "total").Set(rec.Total)
	c.SoC.WithLabelValues(preset).Set(rec.SoC)
	c.SimTime.WithLabelValues(preset).Set(rec.Time)
	c.Tension.WithLabelValues(preset).Set(rec.Tension)
	c.MaxStretch.WithLabelValues(preset).Set(rec.MaxStretch)
	c.Records.WithLabelValues(preset).Inc()
	if rec.Step > 0 {
		r := rec.Residual
		if r < 0 {
			r = -r
		}
		c.Residuals.WithLabelValues(preset).Observe(r)
	}
	if rec.Drift {
		c.DriftWarnings.WithLabelValues(preset).Inc()
	}
}

// Observer returns a simulator observer feeding this collector.
func (c *RunCollector) Observer(preset string) sim.Observer {
	return sim.ObserverFunc(func(rec metrics.Record, _ dynamo.State) {
		c.Observe(preset, rec)
	})
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RunCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve starts a /metrics endpoint on addr and returns the server. Shut it
// down with Shutdown.
func Serve(addr string, c *RunCollector, log logging.Logger) *http.Server {
	if c == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

// Shutdown stops a server started by Serve, waiting up to five seconds.
func Shutdown(srv *http.Server) error {
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
