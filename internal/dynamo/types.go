package dynamo

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec2 is the planar vector used for every position, velocity and force.
type Vec2 = mgl64.Vec2

// Zero is the zero vector.
var Zero = Vec2{0, 0}

// Node is a point mass of the tether chain.
type Node struct {
	Index   int
	Pos     Vec2
	Vel     Vec2
	Mass    float64
	InvMass float64
}

// IsAnchor reports whether the node is kinematically driven.
func (n Node) IsAnchor() bool { return n.InvMass == 0 }

// State is the node chain at a time instant plus the battery energy.
type State struct {
	Time    float64
	Step    int
	Nodes   []Node
	Battery float64
}

func (s State) Clone() State {
	c := s
	c.Nodes = make([]Node, len(s.Nodes))
	copy(c.Nodes, s.Nodes)
	return c
}

func (s State) Anchor() Node { return s.Nodes[0] }
func (s State) Tip() Node    { return s.Nodes[len(s.Nodes)-1] }

// Positions returns a copy of the node positions.
func (s State) Positions() []Vec2 {
	out := make([]Vec2, len(s.Nodes))
	for i, n := range s.Nodes {
		out[i] = n.Pos
	}
	return out
}

// FirstInvalid returns the index of the first node whose position or
// velocity is non-finite, or whose speed exceeds maxSpeed (when maxSpeed > 0).
// It returns -1 and an empty reason when every node is valid.
func (s State) FirstInvalid(maxSpeed float64) (int, string) {
	for i, n := range s.Nodes {
		if !finite(n.Pos) {
			return i, "non-finite position"
		}
		if !finite(n.Vel) {
			return i, "non-finite velocity"
		}
		if maxSpeed > 0 {
			if v := n.Vel.Len(); v > maxSpeed {
				return i, fmt.Sprintf("speed %.3g m/s exceeds limit %.3g m/s", v, maxSpeed)
			}
		}
	}
	return -1, ""
}

func finite(v Vec2) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Cross returns the z component of the planar cross product a × b.
func Cross(a, b Vec2) float64 {
	return a[0]*b[1] - a[1]*b[0]
}

// Perp rotates v by +90 degrees.
func Perp(v Vec2) Vec2 {
	return Vec2{-v[1], v[0]}
}

// Unit returns v/|v| and |v|. When |v| < eps the direction is undefined and
// ok is false; the returned direction is then the zero vector.
func Unit(v Vec2, eps float64) (dir Vec2, length float64, ok bool) {
	length = v.Len()
	if length < eps {
		return Zero, length, false
	}
	return v.Mul(1 / length), length, true
}
