package physics

import (
	"math"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/dynamo"
)

// Segments shorter than this have no direction and are skipped.
const minSegmentLength = 1e-12

// Tether is a chain of point masses joined by axial spring-dampers. Segment
// i joins node i and node i+1; node 0 is the anchor.
type Tether struct {
	n         int
	rest      float64
	k         float64
	c         float64
	mass      float64
	payload   float64
	tolerance float64
}

// ConstraintReport summarizes one constraint pass.
type ConstraintReport struct {
	Iterations  int
	MaxBefore   float64
	MaxAfter    float64
	Corrections int
	Impulses    int
}

func NewTether(cfg config.Config) *Tether {
	return &Tether{
		n:         cfg.Tether.N,
		rest:      cfg.SegmentLength(),
		k:         cfg.Stiffness(),
		c:         cfg.Damping(),
		mass:      cfg.SegmentMass(),
		payload:   cfg.Tether.PayloadMass,
		tolerance: cfg.ConstraintTolerance,
	}
}

func (t *Tether) Segments() int        { return t.n }
func (t *Tether) RestLength() float64  { return t.rest }
func (t *Tether) Stiffness() float64   { return t.k }
func (t *Tether) Damping() float64     { return t.c }
func (t *Tether) SegmentMass() float64 { return t.mass }
func (t *Tether) Tolerance() float64   { return t.tolerance }
func (t *Tether) TotalMass() float64   { return float64(t.n)*t.mass + t.payload }

// InitialNodes lays the chain out from anchor along direction with every
// segment pre-stretched by the fraction stretch. A non-zero spin gives the
// free nodes the velocity of a rigid rotation about the anchor (rad/s,
// counter-clockwise).
func (t *Tether) InitialNodes(anchor, direction dynamo.Vec2, stretch, spin float64) []dynamo.Node {
	dir, _, ok := dynamo.Unit(direction, minSegmentLength)
	if !ok {
		dir = dynamo.Vec2{0, -1}
	}
	step := t.rest * (1 + stretch)

	nodes := make([]dynamo.Node, t.n+1)
	for i := range nodes {
		r := dir.Mul(float64(i) * step)
		nodes[i] = dynamo.Node{
			Index: i,
			Pos:   anchor.Add(r),
			Mass:  t.mass,
		}
		if i == 0 {
			continue
		}
		if i == t.n {
			nodes[i].Mass += t.payload
		}
		nodes[i].InvMass = 1 / nodes[i].Mass
		nodes[i].Vel = dynamo.Perp(r).Mul(spin)
	}
	return nodes
}

// InternalForces writes the spring-damper force on every node into out,
// which must have one entry per node.
func (t *Tether) InternalForces(nodes []dynamo.Node, out []dynamo.Vec2) {
	for i := range out {
		out[i] = dynamo.Zero
	}
	for i := 0; i+1 < len(nodes); i++ {
		a, b := &nodes[i], &nodes[i+1]
		u, length, ok := dynamo.Unit(b.Pos.Sub(a.Pos), minSegmentLength)
		if !ok {
			continue
		}
		stretch := length - t.rest
		rel := b.Vel.Sub(a.Vel).Dot(u)

		f := u.Mul(-t.k*stretch - t.c*rel)
		out[i] = out[i].Sub(f)
		out[i+1] = out[i+1].Add(f)
	}
}

// DampingPower is the rate at which the dampers dissipate energy, Σ c·rel².
func (t *Tether) DampingPower(nodes []dynamo.Node) float64 {
	var p float64
	for i := 0; i+1 < len(nodes); i++ {
		u, _, ok := dynamo.Unit(nodes[i+1].Pos.Sub(nodes[i].Pos), minSegmentLength)
		if !ok {
			continue
		}
		rel := nodes[i+1].Vel.Sub(nodes[i].Vel).Dot(u)
		p += t.c * rel * rel
	}
	return p
}

// ElasticEnergy is Σ ½·k·stretch² over all segments.
func (t *Tether) ElasticEnergy(nodes []dynamo.Node) float64 {
	var e float64
	for i := 0; i+1 < len(nodes); i++ {
		s := nodes[i+1].Pos.Sub(nodes[i].Pos).Len() - t.rest
		e += 0.5 * t.k * s * s
	}
	return e
}

// Tensions returns k·max(0, stretch) per segment; slack segments carry none.
func (t *Tether) Tensions(nodes []dynamo.Node) []float64 {
	out := make([]float64, 0, len(nodes)-1)
	for i := 0; i+1 < len(nodes); i++ {
		out = append(out, t.tension(nodes[i], nodes[i+1]))
	}
	return out
}

func (t *Tether) AnchorTension(nodes []dynamo.Node) float64 {
	if len(nodes) < 2 {
		return 0
	}
	return t.tension(nodes[0], nodes[1])
}

func (t *Tether) tension(a, b dynamo.Node) float64 {
	return t.k * math.Max(0, b.Pos.Sub(a.Pos).Len()-t.rest)
}

// Residuals returns |L − rest|/rest per segment.
func (t *Tether) Residuals(nodes []dynamo.Node) []float64 {
	out := make([]float64, 0, len(nodes)-1)
	for i := 0; i+1 < len(nodes); i++ {
		out = append(out, t.residual(nodes[i], nodes[i+1]))
	}
	return out
}

func (t *Tether) MaxResidual(nodes []dynamo.Node) float64 {
	var worst float64
	for i := 0; i+1 < len(nodes); i++ {
		worst = math.Max(worst, t.residual(nodes[i], nodes[i+1]))
	}
	return worst
}

func (t *Tether) residual(a, b dynamo.Node) float64 {
	return math.Abs(b.Pos.Sub(a.Pos).Len()-t.rest) / t.rest
}

// ApplyConstraints runs Gauss-Seidel passes from anchor to tip. A segment
// whose length leaves the band rest·(1 ± tolerance) is projected back onto
// the nearest edge, the correction split by inverse mass. The relative axial
// velocity that would carry a projected segment further out of the band is
// then removed with an inelastic impulse, so the pass never adds energy.
func (t *Tether) ApplyConstraints(nodes []dynamo.Node, iterations int) ConstraintReport {
	report := ConstraintReport{MaxBefore: t.MaxResidual(nodes)}
	lo := t.rest * (1 - t.tolerance)
	hi := t.rest * (1 + t.tolerance)

	for it := 0; it < iterations; it++ {
		report.Iterations++
		for i := 0; i+1 < len(nodes); i++ {
			a, b := &nodes[i], &nodes[i+1]
			w := a.InvMass + b.InvMass
			if w == 0 {
				continue
			}
			u, length, ok := dynamo.Unit(b.Pos.Sub(a.Pos), minSegmentLength)
			if !ok {
				continue
			}

			var target float64
			switch {
			case length > hi:
				target = hi
			case length < lo:
				target = lo
			default:
				continue
			}

			gap := length - target
			a.Pos = a.Pos.Add(u.Mul(gap * a.InvMass / w))
			b.Pos = b.Pos.Sub(u.Mul(gap * b.InvMass / w))
			report.Corrections++

			rel := b.Vel.Sub(a.Vel).Dot(u)
			if (gap > 0 && rel > 0) || (gap < 0 && rel < 0) {
				j := rel / w
				a.Vel = a.Vel.Add(u.Mul(j * a.InvMass))
				b.Vel = b.Vel.Sub(u.Mul(j * b.InvMass))
				report.Impulses++
			}
		}
	}

	report.MaxAfter = t.MaxResidual(nodes)
	return report
}
