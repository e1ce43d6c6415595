package integrators

import "github.com/san-kum/glide/internal/dynamo"

// SymplecticEuler updates velocity first and moves each node with the new
// velocity. It is the default scheme for the stiff chain.
type SymplecticEuler struct{}

func NewSymplecticEuler() *SymplecticEuler {
	return &SymplecticEuler{}
}

func (e *SymplecticEuler) Name() string { return "symplectic_euler" }

func (e *SymplecticEuler) Step(nodes []dynamo.Node, forces []dynamo.Vec2, _, h float64, _ ForceFunc) {
	for i := range nodes {
		n := &nodes[i]
		if n.InvMass == 0 {
			continue
		}
		n.Vel = n.Vel.Add(forces[i].Mul(n.InvMass * h))
		n.Pos = n.Pos.Add(n.Vel.Mul(h))
	}
}
