package control

import "math"

// PID is a scalar PID loop. The motor feeds it the speed error each sub-step
// and clips the output to its torque limit, so the integral is bounded to
// keep it from winding up against that clip.
type PID struct {
	Kp, Ki, Kd float64

	// IntegralLimit bounds |∫err dt|; zero leaves it unbounded.
	IntegralLimit float64

	integral float64
	prevErr  float64
	prevT    float64
	started  bool
}

func NewPID(kp, ki, kd float64) *PID {
	return &PID{Kp: kp, Ki: ki, Kd: kd}
}

// Update returns the control output for error err observed at time t. The
// first call has no history and returns the proportional term only.
func (p *PID) Update(err, t float64) float64 {
	if !p.started {
		p.prevErr, p.prevT, p.started = err, t, true
		return p.Kp * err
	}

	dt := t - p.prevT
	if dt <= 0 {
		return p.Kp*err + p.Ki*p.integral
	}

	p.integral += err * dt
	if p.IntegralLimit > 0 {
		p.integral = math.Max(-p.IntegralLimit, math.Min(p.IntegralLimit, p.integral))
	}
	derivative := (err - p.prevErr) / dt
	p.prevErr, p.prevT = err, t

	return p.Kp*err + p.Ki*p.integral + p.Kd*derivative
}

func (p *PID) Integral() float64 { return p.integral }

func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.started = false
}
