package physics

import (
	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/dynamo"
)

// p̂ used at the origin, so the clamped pull there points along -y.
var up = dynamo.Vec2{0, 1}

// Gravity is the gravitational field. Mode is fixed at construction.
type Gravity struct {
	orbital   bool
	g0        float64
	mu        float64
	minRadius float64
}

func NewGravity(cfg config.GravityConfig) *Gravity {
	return &Gravity{
		orbital:   cfg.Mode == config.GravityOrbital,
		g0:        cfg.G0,
		mu:        cfg.Mu,
		minRadius: cfg.MinRadius,
	}
}

func (g *Gravity) Orbital() bool { return g.orbital }

// Acceleration returns the field at p. In orbital mode the radius is clamped
// to the minimum radius and a point at the origin is pulled along -y.
func (g *Gravity) Acceleration(p dynamo.Vec2) dynamo.Vec2 {
	if !g.orbital {
		return dynamo.Vec2{0, -g.g0}
	}
	dir, r, ok := dynamo.Unit(p, 1e-12)
	if !ok {
		dir = up
	}
	r = g.clamp(r)
	return dir.Mul(-g.mu / (r * r))
}

// Potential returns the potential per unit mass at p.
func (g *Gravity) Potential(p dynamo.Vec2) float64 {
	if !g.orbital {
		return g.g0 * p[1]
	}
	return -g.mu / g.clamp(p.Len())
}

func (g *Gravity) clamp(r float64) float64 {
	if r < g.minRadius {
		return g.minRadius
	}
	return r
}
