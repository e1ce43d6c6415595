package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/dynamo"
)

// ForceFunc writes the net force on every node at time t into out.
type ForceFunc func(nodes []dynamo.Node, t float64, out []dynamo.Vec2)

// Stepper advances the free nodes of a chain by one sub-step. forces holds
// the net force at the start of the step; schemes that need a second
// evaluation call eval. Anchor nodes (zero inverse mass) are left alone.
type Stepper interface {
	Step(nodes []dynamo.Node, forces []dynamo.Vec2, t, h float64, eval ForceFunc)
	Name() string
}

// New returns the stepper registered under name.
func New(name string) (Stepper, error) {
	switch name {
	case "", config.StepperSymplecticEuler:
		return NewSymplecticEuler(), nil
	case config.StepperVelocityVerlet:
		return NewVelocityVerlet(), nil
	default:
		return nil, fmt.Errorf("unknown stepper: %s", name)
	}
}

// Substeps splits an outer step dt into n equal sub-steps of size h, with
// n = ceil(dt/maxStep) and at least one. A non-positive maxStep disables
// splitting.
func Substeps(dt, maxStep float64) (int, float64) {
	if maxStep <= 0 || dt <= maxStep {
		return 1, dt
	}
	n := int(math.Ceil(dt / maxStep))
	h := dt / float64(n)
	// guard against ceil rounding down on values like 0.3/0.1
	for h > maxStep {
		n++
		h = dt / float64(n)
	}
	return n, h
}
