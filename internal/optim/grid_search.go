// Package optim sweeps configuration parameters over a grid and ranks the
// runs by one of their metrics.
package optim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/logging"
	"github.com/san-kum/glide/internal/metrics"
	"github.com/san-kum/glide/internal/sim"
)

// Setter writes one parameter value into a configuration.
type Setter func(cfg *config.Config, v float64)

// Params are the sweepable configuration fields, by YAML name.
var Params = map[string]Setter{
	"dt":                    func(c *config.Config, v float64) { c.Dt = v },
	"tether_max_substep_dt": func(c *config.Config, v float64) { c.MaxSubstepDt = v },
	"constraint_iterations": func(c *config.Config, v float64) { c.ConstraintIterations = int(v) },
	"constraint_tolerance":  func(c *config.Config, v float64) { c.ConstraintTolerance = v },
	"numerical_vel_decay":   func(c *config.Config, v float64) { c.NumericalVelDecay = v },
	"n":                     func(c *config.Config, v float64) { c.Tether.N = int(v) },
	"damping_ratio":         func(c *config.Config, v float64) { c.Tether.DampingRatio = v },
	"initial_stretch":       func(c *config.Config, v float64) { c.Tether.InitialStretch = v },
	"youngs_modulus":        func(c *config.Config, v float64) { c.Tether.E = v },
	"kp":                    func(c *config.Config, v float64) { c.Motor.Kp = v },
	"ki":                    func(c *config.Config, v float64) { c.Motor.Ki = v },
	"kd":                    func(c *config.Config, v float64) { c.Motor.Kd = v },
	"i_max":                 func(c *config.Config, v float64) { c.EDT.IMax = v },
	"resistance":            func(c *config.Config, v float64) { c.EDT.Resistance = v },
}

// ParamNames lists Params in order.
func ParamNames() []string {
	names := make([]string, 0, len(Params))
	for name := range Params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Trial is one grid point and its outcome. Failed runs keep Value at +Inf.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	limit      int
	log        logging.Logger
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("grid needs one range per parameter, have %d names and %d ranges", len(params), len(ranges))
	}
	for i, name := range params {
		if _, ok := Params[name]; !ok {
			return nil, fmt.Errorf("unknown parameter %q (available: %s)", name, strings.Join(ParamNames(), ", "))
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("parameter %s has no values", name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges, limit: 1, log: logging.Noop()}, nil
}

// SetLimit allows n trials in flight.
func (g *GridSearch) SetLimit(n int) {
	if n > 0 {
		g.limit = n
	}
}

func (g *GridSearch) SetLogger(log logging.Logger) {
	if log != nil {
		g.log = log
	}
}

// Points enumerates the grid, the last parameter varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	var points []map[string]float64
	g.collect(0, map[string]float64{}, &points)
	return points
}

func (g *GridSearch) collect(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.collect(depth+1, newParams, out)
	}
}

// Search runs base at every grid point and returns the trial with the
// smallest metricName along with all trials in grid order. A trial that
// fails validation or diverges is kept with its error; only cancellation
// stops the search.
func (g *GridSearch) Search(ctx context.Context, base config.Config, metricName string) (Trial, []Trial, error) {
	points := g.Points()
	trials := make([]Trial, len(points))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.limit)
	for i, p := range points {
		i, p := i, p
		eg.Go(func() error {
			trials[i] = g.trial(ctx, base, p, metricName)
			return ctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return Trial{}, trials, err
	}

	best := Trial{Value: math.Inf(1)}
	for _, t := range trials {
		if t.Err == nil && t.Value < best.Value {
			best = t
		}
	}
	if best.Params == nil {
		return best, trials, fmt.Errorf("no trial of %d completed", len(trials))
	}
	return best, trials, nil
}

func (g *GridSearch) trial(ctx context.Context, base config.Config, params map[string]float64, metricName string) Trial {
	t := Trial{Params: params, Value: math.Inf(1)}

	cfg := base
	for name, v := range params {
		Params[name](&cfg, v)
	}

	s, err := sim.New(cfg, nil, nil, g.log)
	if err != nil {
		t.Err = err
		return t
	}
	for _, m := range metrics.Defaults() {
		s.AddMetric(m)
	}

	res, err := s.Run(ctx)
	if err != nil {
		t.Err = err
		return t
	}

	v, ok := Value(res, metricName)
	if !ok {
		t.Err = fmt.Errorf("run has no metric %q", metricName)
		return t
	}
	t.Value = v
	g.log.Debug(ctx, "trial done", logging.Any("params", params), logging.Float(metricName, v))
	return t
}

// Value reads a metric from a result: any registered metric, or one of the
// summary fields max_residual, dissipated and final_total.
func Value(res *sim.Result, name string) (float64, bool) {
	switch name {
	case "max_residual":
		return res.Summary.MaxResidual, true
	case "dissipated":
		return res.Summary.Dissipated, true
	case "final_total":
		return res.Summary.Final.Total, true
	}
	v, ok := res.Metrics[name]
	return v, ok
}

// ParseRange reads "a,b,c" as a list or "start:stop:step" as an inclusive
// range.
func ParseRange(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		var bounds [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("range %q: %w", s, err)
			}
			bounds[i] = v
		}
		start, stop, step := bounds[0], bounds[1], bounds[2]
		if step <= 0 || stop < start {
			return nil, fmt.Errorf("range %q: need start <= stop and a positive step", s)
		}
		n := int(math.Floor((stop-start)/step+1e-9)) + 1
		values := make([]float64, n)
		for i := range values {
			values[i] = start + float64(i)*step
		}
		return values, nil
	}

	var values []float64
	for _, p := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("values %q: %w", s, err)
		}
		values = append(values, v)
	}
	return values, nil
}
