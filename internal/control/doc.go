// Package control provides the command inputs of the tether simulator.
//
// Command profiles are pure functions of time, injected into the simulator at
// construction and sampled every sub-step:
//
//   - [Profile]: winch angular velocity ω(t) or normalized EDT current i(t)
//   - [ProfileSpec]: YAML description of a profile (constant, sine, square, ramp)
//   - [PID]: scalar feedback loop used by the closed-loop winch motor
//   - [Manual]: operator offset layered over a profile by the live view
//
// # Usage
//
//	winch, _ := control.ProfileSpec{Kind: "sine", Amplitude: 8, Frequency: 0.2}.Build()
//	current := control.Clamp(control.Constant(0.8), -1, 1)
//	sim, _ := sim.New(cfg, winch, current, logger)
package control
