package integrators

import (
	"testing"

	"github.com/san-kum/glide/internal/dynamo"
)

func benchChain(n int) []dynamo.Node {
	nodes := make([]dynamo.Node, n)
	for i := range nodes {
		nodes[i] = dynamo.Node{Index: i, Pos: dynamo.Vec2{0, -float64(i)}, Mass: 1, InvMass: 1}
	}
	nodes[0].InvMass = 0
	return nodes
}

func chainForces(nodes []dynamo.Node, _ float64, out []dynamo.Vec2) {
	for i := range out {
		out[i] = dynamo.Vec2{0, -9.8}
	}
	for i := 0; i+1 < len(nodes); i++ {
		d := nodes[i+1].Pos.Sub(nodes[i].Pos)
		f := d.Mul(-100 * (d.Len() - 1))
		out[i] = out[i].Sub(f)
		out[i+1] = out[i+1].Add(f)
	}
}

func benchStepper(b *testing.B, s Stepper, n int) {
	nodes := benchChain(n)
	forces := make([]dynamo.Vec2, n)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		chainForces(nodes, 0, forces)
		s.Step(nodes, forces, 0, 1e-4, chainForces)
	}
}

func BenchmarkSymplecticEuler(b *testing.B)    { benchStepper(b, NewSymplecticEuler(), 26) }
func BenchmarkVelocityVerlet(b *testing.B)     { benchStepper(b, NewVelocityVerlet(), 26) }
func BenchmarkSymplecticEuler_41(b *testing.B) { benchStepper(b, NewSymplecticEuler(), 41) }
func BenchmarkVelocityVerlet_41(b *testing.B)  { benchStepper(b, NewVelocityVerlet(), 41) }
