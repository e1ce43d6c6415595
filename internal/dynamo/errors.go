package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidConfig indicates a missing preset or an out-of-range parameter.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrUnstable indicates the simulation became numerically unstable.
	ErrUnstable = errors.New("dynamo: simulation unstable (state diverged)")

	// ErrNotInitialized indicates a run was requested before setup.
	ErrNotInitialized = errors.New("dynamo: simulator not initialized")
)

// ConfigError describes a configuration field that failed validation.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// InstabilityError carries the step and node at which the run diverged.
type InstabilityError struct {
	Step    int
	Substep int
	Time    float64
	Node    int
	Pos     Vec2
	Vel     Vec2
	Reason  string
}

func (e *InstabilityError) Error() string {
	return fmt.Sprintf("step %d substep %d (t=%.4f): node %d %s (pos=%v vel=%v)",
		e.Step, e.Substep, e.Time, e.Node, e.Reason, e.Pos, e.Vel)
}

func (e *InstabilityError) Unwrap() error { return ErrUnstable }
