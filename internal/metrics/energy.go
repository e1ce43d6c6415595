package metrics

import (
	"github.com/san-kum/glide/internal/dynamo"
)

// Elastic reports the strain energy stored in a node chain.
type Elastic interface {
	ElasticEnergy(nodes []dynamo.Node) float64
}

// Field reports the gravitational potential per unit mass at a point.
type Field interface {
	Potential(p dynamo.Vec2) float64
}

// Buckets is the energy partition of one state, in joules.
type Buckets struct {
	Kinetic float64
	Elastic float64
	Grav    float64
	Battery float64
	Total   float64
	SoC     float64
}

// Mechanical is the tether's own energy, excluding the battery.
func (b Buckets) Mechanical() float64 {
	return b.Kinetic + b.Elastic + b.Grav
}

// Measure partitions the energy of nodes. Kinetic energy and gravitational
// potential are summed over the free nodes only; potential is taken relative
// to the anchor, Σ m·(U(p_i) − U(p_0)). It does not modify its inputs.
func Measure(nodes []dynamo.Node, tether Elastic, field Field, battery, capacity float64) Buckets {
	var b Buckets
	if len(nodes) == 0 {
		return b
	}

	u0 := field.Potential(nodes[0].Pos)
	for _, n := range nodes {
		if n.IsAnchor() {
			continue
		}
		b.Kinetic += 0.5 * n.Mass * n.Vel.Dot(n.Vel)
		b.Grav += n.Mass * (field.Potential(n.Pos) - u0)
	}
	b.Elastic = tether.ElasticEnergy(nodes)
	b.Battery = battery
	b.Total = b.Kinetic + b.Elastic + b.Grav + b.Battery
	if capacity > 0 {
		b.SoC = battery / capacity
	}
	return b
}

// FreeMass is the total mass of the non-anchor nodes.
func FreeMass(nodes []dynamo.Node) float64 {
	var m float64
	for _, n := range nodes {
		if !n.IsAnchor() {
			m += n.Mass
		}
	}
	return m
}

// KineticEnergy sums ½·m·v² over the free nodes.
func KineticEnergy(nodes []dynamo.Node) float64 {
	var e float64
	for _, n := range nodes {
		if !n.IsAnchor() {
			e += 0.5 * n.Mass * n.Vel.Dot(n.Vel)
		}
	}
	return e
}
