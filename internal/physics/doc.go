// Package physics provides the force models of the tether simulator.
//
// Every model is built once from an immutable [config.Config] and is a pure
// function of the node state it is handed, apart from the [Motor], which
// carries the spool angle and speed between sub-steps:
//
//   - [Gravity]: flat or two-body acceleration and potential
//   - [Motor]: winch boundary driving the anchor node
//   - [EDT]: electrodynamic force on the tip and its electrical power
//   - [Tether]: axial spring-damper forces and compliant length constraints
//
// Force composition is owned by the simulator; no model here reads another.
//
// # Energy
//
// Each model exposes the power terms the ledger needs to close the energy
// balance of a step:
//
//	p := edt.Evaluate(anchor, tip, cmd)
//	battery -= p.Net * h
package physics
