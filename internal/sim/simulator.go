package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/control"
	"github.com/san-kum/glide/internal/dynamo"
	"github.com/san-kum/glide/internal/integrators"
	"github.com/san-kum/glide/internal/logging"
	"github.com/san-kum/glide/internal/metrics"
	"github.com/san-kum/glide/internal/physics"
)

// Simulator owns the node state of one run and advances it through the
// ordered force pipeline: motor, gravity, EDT and tether forces, then the
// stepper, numerical limiters, battery, constraints and the ledger.
type Simulator struct {
	cfg     config.Config
	winch   control.Profile
	current control.Profile
	log     logging.Logger

	tether  *physics.Tether
	gravity *physics.Gravity
	motor   *physics.Motor
	edt     *physics.EDT
	stepper integrators.Stepper
	battery *metrics.Battery
	ledger  *metrics.Ledger

	metrics   []metrics.Metric
	observers []Observer

	state    dynamo.State
	forces   []dynamo.Vec2
	internal []dynamo.Vec2
	freeMass float64
	n        int
	h        float64
	steps    int
	lastLog  float64

	omegaCmd   float64
	currentCmd float64

	// end-of-sub-step anchor seen by second force evaluations
	anchorNext dynamo.Vec2
	evaluated  bool

	initial   metrics.Record
	announced bool
}

// New validates cfg and builds a simulator at t = 0. Nil profiles fall back
// to the profiles described in cfg.
func New(cfg config.Config, winch, current control.Profile, log logging.Logger) (*Simulator, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Noop()
	}

	var err error
	if winch == nil {
		if winch, err = cfg.WinchProfile.Build(); err != nil {
			return nil, &dynamo.ConfigError{Field: "winch_profile", Value: cfg.WinchProfile.Kind, Reason: err.Error()}
		}
	}
	if current == nil {
		if current, err = cfg.CurrentProfile.Build(); err != nil {
			return nil, &dynamo.ConfigError{Field: "current_profile", Value: cfg.CurrentProfile.Kind, Reason: err.Error()}
		}
	}

	stepper, err := integrators.New(cfg.Stepper)
	if err != nil {
		return nil, &dynamo.ConfigError{Field: "stepper", Value: cfg.Stepper, Reason: err.Error()}
	}

	s := &Simulator{
		cfg:     cfg,
		winch:   winch,
		current: current,
		log:     log,
		tether:  physics.NewTether(cfg),
		gravity: physics.NewGravity(cfg.Gravity),
		edt:     physics.NewEDT(cfg.EDT),
		stepper: stepper,
	}
	s.n, s.h = integrators.Substeps(cfg.Dt, cfg.MaxSubstepDt)
	s.Reset()
	return s, nil
}

func (s *Simulator) AddMetric(m metrics.Metric) { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer)     { s.observers = append(s.observers, o) }
func (s *Simulator) Config() config.Config      { return s.cfg }
func (s *Simulator) State() dynamo.State        { return s.state }
func (s *Simulator) Tether() *physics.Tether    { return s.tether }
func (s *Simulator) Motor() *physics.Motor      { return s.motor }
func (s *Simulator) Ledger() *metrics.Ledger    { return s.ledger }
func (s *Simulator) Battery() *metrics.Battery  { return s.battery }
func (s *Simulator) Substeps() (int, float64)   { return s.n, s.h }
func (s *Simulator) Done() bool                 { return s.state.Step >= s.steps }

// Reset rebuilds the initial state: the chain hangs from the anchor, the
// battery is at its initial charge and the ledger holds the t = 0 record.
// Metrics and observers receive that record on the next Run or Step, so
// they may be attached after New.
func (s *Simulator) Reset() {
	cfg := s.cfg
	anchor := dynamo.Vec2{cfg.Tether.Anchor[0], cfg.Tether.Anchor[1]}
	hang := dynamo.Vec2{cfg.Tether.HangDirection[0], cfg.Tether.HangDirection[1]}

	nodes := s.tether.InitialNodes(anchor, hang, cfg.Tether.InitialStretch, cfg.Tether.InitialSpin)
	s.state = dynamo.State{Nodes: nodes}
	s.forces = make([]dynamo.Vec2, len(nodes))
	s.internal = make([]dynamo.Vec2, len(nodes))
	s.freeMass = metrics.FreeMass(nodes)
	s.steps = int(math.Floor(cfg.Duration/cfg.Dt + 1e-9))

	s.motor = physics.NewMotor(cfg.Motor, anchor)
	s.battery = metrics.NewBattery(cfg.Battery.CapacityJ, cfg.Battery.InitialSoC)
	s.state.Battery = s.battery.Energy()
	s.ledger = metrics.NewLedger(cfg.DriftTolerance, cfg.DriftFloor, cfg.RecordInterval)
	s.lastLog = 0

	s.omegaCmd = s.winch(0)
	s.currentCmd = s.current(0)
	s.initial = s.ledger.Start(s.record(metrics.Flows{}, 0))
	s.announced = false
	for _, m := range s.metrics {
		m.Reset()
	}
}

func (s *Simulator) announce() {
	if s.announced {
		return
	}
	s.announced = true
	s.notify(s.initial)
}

// Run steps until the configured duration, the context is cancelled, or the
// state diverges.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	if s.state.Nodes == nil {
		return nil, dynamo.ErrNotInitialized
	}
	s.announce()
	log := logging.WithRunLogger(ctx, s.log)
	log.Info(ctx, "run started",
		logging.String("preset", s.cfg.Name),
		logging.Int("nodes", len(s.state.Nodes)),
		logging.Int("substeps", s.n),
		logging.Float("substep_dt", s.h),
		logging.Float("stability_limit", s.cfg.StabilityLimit()),
	)
	if s.h > s.cfg.StabilityLimit() {
		log.Warn(ctx, "sub-step exceeds the explicit stability limit of the chain",
			logging.Float("substep_dt", s.h),
			logging.Float("limit", s.cfg.StabilityLimit()),
		)
	}

	for !s.Done() {
		select {
		case <-ctx.Done():
			log.Warn(ctx, "run cancelled", logging.Float("time", s.state.Time))
			return s.result(), ctx.Err()
		default:
		}

		if _, err := s.step(ctx, log); err != nil {
			log.Error(ctx, "run aborted", logging.Err(err))
			return s.result(), err
		}
	}

	res := s.result()
	log.Info(ctx, "run finished",
		logging.Float("time", s.state.Time),
		logging.Float("E_total", res.Summary.Final.Total),
		logging.Float("SoC", res.Summary.Final.SoC),
		logging.Int("drift_warnings", res.Summary.DriftWarnings),
		logging.Int("clamp_events", res.Summary.ClampEvents),
	)
	return res, nil
}

// Step advances one outer step and returns its record. It keeps stepping
// past the configured duration, which the live view relies on.
func (s *Simulator) Step(ctx context.Context) (metrics.Record, error) {
	if s.state.Nodes == nil {
		return metrics.Record{}, dynamo.ErrNotInitialized
	}
	s.announce()
	return s.step(ctx, logging.WithRunLogger(ctx, s.log))
}

func (s *Simulator) step(ctx context.Context, log logging.Logger) (metrics.Record, error) {
	nodes := s.state.Nodes
	var flows metrics.Flows

	for k := 0; k < s.n; k++ {
		if err := s.substep(ctx, log, k, &flows); err != nil {
			return metrics.Record{}, err
		}
	}

	before := s.mechanical(nodes)
	report := s.tether.ApplyConstraints(nodes, s.cfg.ConstraintIterations)
	flows.ConstraintDelta = s.mechanical(nodes) - before

	s.state.Step++
	rec, kept, warn := s.ledger.Append(s.record(flows, report.MaxAfter))
	if warn != nil {
		log.Warn(ctx, "energy drift",
			logging.Int("step", warn.Step),
			logging.Float("time", warn.Time),
			logging.Float("residual", warn.Residual),
			logging.Float("limit", warn.Limit),
		)
	}
	if kept {
		s.notify(rec)
	}
	if s.cfg.LogInterval > 0 && s.state.Time-s.lastLog >= s.cfg.LogInterval-1e-9 {
		s.lastLog = s.state.Time
		log.Info(ctx, "energy",
			logging.Float("t", rec.Time),
			logging.Float("SoC", rec.SoC),
			logging.Float("E_total", rec.Total),
			logging.Float("E_kin", rec.Kinetic),
			logging.Float("E_el", rec.Elastic),
			logging.Float("E_grav", rec.Grav),
			logging.Float("P_edt", rec.EDTDraw/s.cfg.Dt),
			logging.Float("P_motor", rec.MotorDraw/s.cfg.Dt),
		)
	}
	return rec, nil
}

func (s *Simulator) substep(ctx context.Context, log logging.Logger, k int, flows *metrics.Flows) error {
	nodes := s.state.Nodes
	t, h := s.state.Time, s.h

	s.omegaCmd = s.winch(t)
	s.currentCmd = s.current(t)

	ms := s.motor.Advance(t, h, s.omegaCmd, s.tether.AnchorTension(nodes))
	u0 := s.gravity.Potential(nodes[0].Pos)
	nodes[0].Vel = ms.Vel

	edt := s.accumulate(nodes, s.forces)
	anchorForce := s.internal[0]
	damping := s.tether.DampingPower(nodes)

	s.anchorNext, s.evaluated = ms.Pos, false
	s.stepper.Step(nodes, s.forces, t, h, s.evalForces)
	nodes[0].Pos = ms.Pos
	if s.evaluated {
		// trapezoidal anchor work to match the averaged kick
		anchorForce = anchorForce.Add(s.internal[0]).Mul(0.5)
	}
	motor := s.motor.Power(anchorForce, nodes[0].Vel)

	ke := metrics.KineticEnergy(nodes)
	s.limitVelocities(nodes, h)

	flows.EDTWork += edt.Orbit * h
	flows.AnchorWork += motor.Mech * h
	flows.DampingLoss += damping * h
	flows.ResistiveLoss += edt.Loss * h
	flows.MotorLoss += motor.Loss() * h
	flows.NumericalLoss += ke - metrics.KineticEnergy(nodes)
	flows.RefShift -= s.freeMass * (s.gravity.Potential(nodes[0].Pos) - u0)
	flows.EDTDraw += edt.Net * h
	flows.MotorDraw += motor.Elec * h

	s.state.Time = t + h
	if ev, clamped := s.battery.Drain(edt.Net+motor.Elec, h, s.state.Time); clamped {
		s.ledger.NoteClamp(ev)
		log.Debug(ctx, "battery clamped",
			logging.Float("time", ev.Time),
			logging.Float("requested", ev.Requested),
			logging.Float("applied", ev.Applied),
		)
	}
	s.state.Battery = s.battery.Energy()

	if i, reason := s.state.FirstInvalid(s.cfg.MaxSpeed); i >= 0 {
		return &dynamo.InstabilityError{
			Step:    s.state.Step + 1,
			Substep: k,
			Time:    s.state.Time,
			Node:    i,
			Pos:     nodes[i].Pos,
			Vel:     nodes[i].Vel,
			Reason:  reason,
		}
	}
	return nil
}

// accumulate writes the net force on every node into out, keeps the
// tether-only forces in s.internal and returns the EDT evaluation.
func (s *Simulator) accumulate(nodes []dynamo.Node, out []dynamo.Vec2) physics.EDTOutput {
	s.tether.InternalForces(nodes, s.internal)
	copy(out, s.internal)

	for i := range nodes {
		if nodes[i].IsAnchor() {
			continue
		}
		out[i] = out[i].Add(s.gravity.Acceleration(nodes[i].Pos).Mul(nodes[i].Mass))
	}

	tip := len(nodes) - 1
	edt := s.edt.Evaluate(nodes[0].Pos, nodes[tip].Pos, nodes[tip].Vel, s.currentCmd)
	out[tip] = out[tip].Add(edt.Force)
	return edt
}

// evalForces serves steppers that evaluate forces at the end of the
// sub-step. The anchor has already moved by then.
func (s *Simulator) evalForces(nodes []dynamo.Node, _ float64, out []dynamo.Vec2) {
	nodes[0].Pos = s.anchorNext
	s.evaluated = true
	s.accumulate(nodes, out)
}

// limitVelocities applies the numerical velocity decay and the speed
// limiter to the free nodes.
func (s *Simulator) limitVelocities(nodes []dynamo.Node, h float64) {
	decay := 1.0
	if s.cfg.NumericalVelDecay > 0 {
		decay = math.Exp(-s.cfg.NumericalVelDecay * h)
	}
	limit := s.cfg.VelocityLimit

	for i := range nodes {
		n := &nodes[i]
		if n.IsAnchor() {
			continue
		}
		if decay != 1 {
			n.Vel = n.Vel.Mul(decay)
		}
		if limit > 0 {
			if v := n.Vel.Len(); v > limit {
				n.Vel = n.Vel.Mul(limit / v)
			}
		}
	}
}

func (s *Simulator) mechanical(nodes []dynamo.Node) float64 {
	return metrics.Measure(nodes, s.tether, s.gravity, 0, 0).Mechanical()
}

func (s *Simulator) record(flows metrics.Flows, maxStretch float64) metrics.Record {
	nodes := s.state.Nodes
	return metrics.Record{
		Time:       s.state.Time,
		Step:       s.state.Step,
		Buckets:    metrics.Measure(nodes, s.tether, s.gravity, s.battery.Energy(), s.battery.Capacity()),
		Flows:      flows,
		OmegaCmd:   s.omegaCmd,
		CurrentCmd: s.currentCmd,
		Tension:    s.tether.AnchorTension(nodes),
		MaxStretch: maxStretch,
	}
}

func (s *Simulator) notify(rec metrics.Record) {
	for _, m := range s.metrics {
		m.Observe(rec)
	}
	for _, o := range s.observers {
		o.OnRecord(rec, s.state)
	}
}

func (s *Simulator) result() *Result {
	res := &Result{
		Config:   s.cfg,
		Records:  s.ledger.Records(),
		Final:    s.state.Clone(),
		Summary:  s.ledger.Summary(),
		Metrics:  make(map[string]float64, len(s.metrics)),
		Clamps:   s.battery.Events(),
		Substeps: s.n,
		SubDt:    s.h,
	}
	for _, m := range s.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	return res
}

// String describes the run setup for logs and the CLI banner.
func (s *Simulator) String() string {
	return fmt.Sprintf("%s: %d segments, dt=%g, %d sub-steps of %.3g s, gravity=%s, edt=%s",
		s.cfg.Name, s.tether.Segments(), s.cfg.Dt, s.n, s.h, s.cfg.Gravity.Mode, s.cfg.EDT.Mode)
}
