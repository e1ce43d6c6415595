package integrators

import "github.com/san-kum/glide/internal/dynamo"

// VelocityVerlet is the kick-drift-kick form: positions move with the old
// velocity and half the old acceleration, then velocities take the mean of
// the old and new accelerations.
type VelocityVerlet struct {
	scratch []dynamo.Node
	next    []dynamo.Vec2
}

func NewVelocityVerlet() *VelocityVerlet {
	return &VelocityVerlet{}
}

func (v *VelocityVerlet) Name() string { return "velocity_verlet" }

func (v *VelocityVerlet) ensureScratch(n int) {
	if len(v.scratch) != n {
		v.scratch = make([]dynamo.Node, n)
		v.next = make([]dynamo.Vec2, n)
	}
}

func (v *VelocityVerlet) Step(nodes []dynamo.Node, forces []dynamo.Vec2, t, h float64, eval ForceFunc) {
	v.ensureScratch(len(nodes))
	h2 := 0.5 * h * h

	for i := range nodes {
		n := &nodes[i]
		if n.InvMass != 0 {
			n.Pos = n.Pos.Add(n.Vel.Mul(h)).Add(forces[i].Mul(n.InvMass * h2))
		}
	}

	copy(v.scratch, nodes)
	eval(v.scratch, t+h, v.next)

	halfH := 0.5 * h
	for i := range nodes {
		n := &nodes[i]
		if n.InvMass == 0 {
			continue
		}
		n.Vel = n.Vel.Add(forces[i].Add(v.next[i]).Mul(n.InvMass * halfH))
	}
}
