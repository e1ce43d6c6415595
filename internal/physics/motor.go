package physics

import (
	"math"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/control"
	"github.com/san-kum/glide/internal/dynamo"
)

const (
	maxMotorAccel = 100.0 // rad/s²
	maxMotorSpeed = 50.0  // rad/s
)

// Motor is the winch that drives the anchor node along its axis.
//
// In feed-forward mode the spool follows the commanded speed exactly. In
// closed-loop mode a PID on the speed error produces a torque that fights the
// tension load and bearing friction, with bounded acceleration and speed.
type Motor struct {
	radius  float64
	inertia float64
	tauMax  float64
	bm      float64
	eta     float64
	closed  bool
	pid     *control.PID

	base dynamo.Vec2
	axis dynamo.Vec2

	theta  float64
	omega  float64
	torque float64
}

// MotorSample is the anchor kinematics after one motor update.
type MotorSample struct {
	Omega  float64
	Torque float64
	Length float64
	Pos    dynamo.Vec2
	Vel    dynamo.Vec2
}

// MotorPower splits the anchor power into the mechanical power delivered to
// the tether and the electrical power drawn from the battery.
type MotorPower struct {
	Mech float64
	Elec float64
}

// Loss is the electrical power that never reaches the tether (or, when
// regenerating, the mechanical power that never reaches the battery).
func (p MotorPower) Loss() float64 { return p.Elec - p.Mech }

func NewMotor(cfg config.MotorConfig, base dynamo.Vec2) *Motor {
	axis, _, ok := dynamo.Unit(dynamo.Vec2{cfg.Axis[0], cfg.Axis[1]}, 1e-12)
	if !ok {
		axis = dynamo.Vec2{0, 1}
	}
	pid := control.NewPID(cfg.Kp, cfg.Ki, cfg.Kd)
	if cfg.Ki > 0 {
		pid.IntegralLimit = cfg.TauMax / cfg.Ki
	}
	return &Motor{
		radius:  cfg.RSpool,
		inertia: cfg.Jm,
		tauMax:  cfg.TauMax,
		bm:      cfg.Bm,
		eta:     cfg.Eta,
		closed:  cfg.ClosedLoop,
		pid:     pid,
		base:    base,
		axis:    axis,
	}
}

// Advance updates the spool over a sub-step of length h at time t and
// returns the anchor position at the end of the sub-step and its velocity.
// tension is the anchor segment tension, read only in closed-loop mode.
func (m *Motor) Advance(t, h, omegaCmd, tension float64) MotorSample {
	if m.closed {
		tau := clip(m.pid.Update(omegaCmd-m.omega, t), m.tauMax)
		domega := (tau - tension*m.radius - m.bm*m.omega) / m.inertia
		domega = clip(domega, maxMotorAccel)
		m.omega = clip(m.omega+domega*h, maxMotorSpeed)
		m.torque = tau
	} else {
		m.omega = omegaCmd
		m.torque = tension * m.radius
	}
	m.theta += m.omega * h
	return m.Sample()
}

// Sample returns the current anchor kinematics without advancing.
func (m *Motor) Sample() MotorSample {
	s := m.radius * m.theta
	return MotorSample{
		Omega:  m.omega,
		Torque: m.torque,
		Length: s,
		Pos:    m.base.Add(m.axis.Mul(s)),
		Vel:    m.axis.Mul(m.omega * m.radius),
	}
}

// Power returns the power the anchor delivers into the tether, given the
// tether force acting on the anchor node and the anchor velocity.
func (m *Motor) Power(anchorForce, anchorVel dynamo.Vec2) MotorPower {
	mech := -anchorForce.Dot(anchorVel)
	if mech >= 0 {
		return MotorPower{Mech: mech, Elec: mech / m.eta}
	}
	return MotorPower{Mech: mech, Elec: mech * m.eta}
}

func (m *Motor) Axis() dynamo.Vec2 { return m.axis }

func (m *Motor) Reset() {
	m.theta = 0
	m.omega = 0
	m.torque = 0
	m.pid.Reset()
}

func clip(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
