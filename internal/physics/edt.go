package physics

import (
	"math"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/dynamo"
)

const (
	spanEps     = 1e-9
	velocityEps = 1e-9
)

// EDT models the electrodynamic force on the tip. The field is taken as out
// of plane (B_z), so the Lorentz force lies in the plane, perpendicular to
// the tether.
type EDT struct {
	mode       string
	length     float64
	b          [3]float64
	resistance float64
	iMax       float64
}

// EDTOutput is one evaluation of the EDT model. Net is the power drawn from
// the battery; a negative value means the tether is generating.
type EDTOutput struct {
	Current float64
	Force   dynamo.Vec2
	Loss    float64
	Orbit   float64
	Net     float64
	EMF     float64
}

func NewEDT(cfg config.EDTConfig) *EDT {
	return &EDT{
		mode:       cfg.Mode,
		length:     cfg.Length,
		b:          cfg.B,
		resistance: cfg.Resistance,
		iMax:       cfg.IMax,
	}
}

func (e *EDT) Mode() string { return e.mode }

// Evaluate returns the force on the tip and the power terms for the
// normalized current command cmd, clamped to [-1, 1].
func (e *EDT) Evaluate(anchor, tip, tipVel dynamo.Vec2, cmd float64) EDTOutput {
	if e.mode == config.EDTOff {
		return EDTOutput{}
	}

	current := clip(cmd, 1) * e.iMax
	out := EDTOutput{
		Current: current,
		Loss:    current * current * e.resistance,
	}

	dir, span, ok := dynamo.Unit(tip.Sub(anchor), spanEps)
	if !ok {
		out.Net = out.Loss
		return out
	}
	length := span
	if e.length > 0 {
		length = e.length
	}

	mag := math.Abs(current) * length * math.Abs(e.b[2])
	candidate := dynamo.Perp(dir).Mul(mag)

	sign := 1.0
	if tipVel.Len() > velocityEps {
		aiding := candidate.Dot(tipVel) >= 0
		if aiding != (e.mode == config.EDTBoost) {
			sign = -1
		}
	} else if e.mode == config.EDTDrag {
		sign = -1
	}

	out.Force = candidate.Mul(sign)
	out.Orbit = out.Force.Dot(tipVel)
	out.EMF = e.emf(tipVel, dir) * length

	if e.mode == config.EDTBoost {
		out.Net = out.Loss + math.Max(0, out.Orbit)
	} else {
		out.Net = out.Loss + math.Min(0, out.Orbit)
	}
	return out
}

// emf returns |(v × B)·L̂| per unit length. Only B_z contributes an
// in-plane component for a planar velocity.
func (e *EDT) emf(v, dir dynamo.Vec2) float64 {
	bz := e.b[2]
	vxb := dynamo.Vec2{v[1] * bz, -v[0] * bz}
	return math.Abs(vxb.Dot(dir))
}
