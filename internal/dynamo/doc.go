// Package dynamo provides the core primitives shared by the tether simulator.
//
// The package defines the fundamental types every other package exchanges:
//
//   - [Vec2]: planar vector (an alias of mgl64.Vec2)
//   - [Node]: point mass of the tether chain
//   - [State]: ordered node chain plus battery energy at a time instant
//   - [ConfigError], [InstabilityError]: typed failures wrapping the
//     package sentinel errors
//
// # Conventions
//
// Node 0 is the anchor. Its inverse mass is zero, so no force or constraint
// correction ever moves it; only the motor model positions it. The last node
// is the tip (payload) and is the only node the EDT model acts on.
//
// # Thread Safety
//
// State values are plain data. A running simulator owns its State
// exclusively; use [State.Clone] to hand a snapshot to another goroutine.
package dynamo
