package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/glide/internal/control"
	"github.com/san-kum/glide/internal/dynamo"
)

const (
	DefaultDt             = 0.01
	DefaultDuration       = 60.0
	DefaultMaxSubstepDt   = 0.005
	DefaultIterations     = 3
	DefaultTolerance      = 0.05
	DefaultMaxSpeed       = 1e5
	DefaultDriftTolerance = 1e-2
	DefaultDriftFloor     = 1.0
	DefaultLogInterval    = 1.0

	StepperSymplecticEuler = "symplectic_euler"
	StepperVelocityVerlet  = "velocity_verlet"

	GravityLocal   = "local"
	GravityOrbital = "orbital"

	EDTOff   = "off"
	EDTBoost = "boost"
	EDTDrag  = "drag"
)

// Config is the immutable parameter record of one run. It is built once from
// a preset (optionally overlaid by a YAML file and CLI flags), validated, and
// then passed by value to every component.
type Config struct {
	Name     string  `yaml:"name"`
	Dt       float64 `yaml:"dt"`
	Duration float64 `yaml:"duration"`

	MaxSubstepDt         float64 `yaml:"tether_max_substep_dt"`
	ConstraintIterations int     `yaml:"constraint_iterations"`
	ConstraintTolerance  float64 `yaml:"constraint_tolerance"`
	Stepper              string  `yaml:"stepper"`

	// Numerics-only velocity decay per second; 0 keeps pure physics.
	NumericalVelDecay float64 `yaml:"numerical_vel_decay_per_s"`
	// Speed limiter in m/s; 0 disables.
	VelocityLimit float64 `yaml:"velocity_limit"`
	// Speeds above MaxSpeed abort the run as unstable.
	MaxSpeed float64 `yaml:"max_speed"`

	Tether  TetherConfig  `yaml:"tether"`
	Motor   MotorConfig   `yaml:"motor"`
	Gravity GravityConfig `yaml:"gravity"`
	EDT     EDTConfig     `yaml:"edt"`
	Battery BatteryConfig `yaml:"battery"`

	WinchProfile   control.ProfileSpec `yaml:"winch_profile"`
	CurrentProfile control.ProfileSpec `yaml:"current_profile"`

	LogInterval    float64 `yaml:"log_interval"`
	RecordInterval float64 `yaml:"record_interval"`
	DriftTolerance float64 `yaml:"drift_tolerance"`
	DriftFloor     float64 `yaml:"drift_floor"`
	SaveEnergyCSV  bool    `yaml:"save_energy_csv"`
}

type TetherConfig struct {
	N            int     `yaml:"n"`
	L0           float64 `yaml:"l0"`
	E            float64 `yaml:"youngs_modulus"`
	D            float64 `yaml:"diameter"`
	RhoL         float64 `yaml:"rho_l"`
	DampingRatio float64 `yaml:"damping_ratio"`
	PayloadMass  float64 `yaml:"payload_mass"`

	Anchor         [2]float64 `yaml:"anchor"`
	HangDirection  [2]float64 `yaml:"hang_direction"`
	InitialStretch float64    `yaml:"initial_stretch"`
	InitialSpin    float64    `yaml:"initial_spin"`
}

type MotorConfig struct {
	RSpool     float64    `yaml:"r_spool"`
	Jm         float64    `yaml:"j_m"`
	TauMax     float64    `yaml:"tau_max"`
	Bm         float64    `yaml:"b_m"`
	Eta        float64    `yaml:"eta"`
	Axis       [2]float64 `yaml:"axis"`
	ClosedLoop bool       `yaml:"closed_loop"`
	Kp         float64    `yaml:"kp"`
	Ki         float64    `yaml:"ki"`
	Kd         float64    `yaml:"kd"`
}

type GravityConfig struct {
	Mode      string  `yaml:"mode"`
	G0        float64 `yaml:"local_g"`
	Mu        float64 `yaml:"mu"`
	REarth    float64 `yaml:"r_earth"`
	MinRadius float64 `yaml:"min_radius"`
}

type EDTConfig struct {
	Mode       string     `yaml:"mode"`
	Length     float64    `yaml:"length"`
	B          [3]float64 `yaml:"b_vec"`
	Resistance float64    `yaml:"resistance"`
	IMax       float64    `yaml:"i_max"`
}

type BatteryConfig struct {
	CapacityJ  float64 `yaml:"capacity_j"`
	InitialSoC float64 `yaml:"initial_soc"`
}

// DefaultConfig returns the shared baseline every preset starts from.
func DefaultConfig() Config {
	return Config{
		Name:                 "default",
		Dt:                   DefaultDt,
		Duration:             DefaultDuration,
		MaxSubstepDt:         DefaultMaxSubstepDt,
		ConstraintIterations: DefaultIterations,
		ConstraintTolerance:  DefaultTolerance,
		Stepper:              StepperSymplecticEuler,
		MaxSpeed:             DefaultMaxSpeed,
		Tether: TetherConfig{
			N:             25,
			L0:            200.0,
			E:             30e9,
			D:             0.005,
			RhoL:          1.5,
			DampingRatio:  0.05,
			HangDirection: [2]float64{0, -1},
		},
		Motor: MotorConfig{
			RSpool: 0.25,
			Jm:     0.08,
			TauMax: 15.0,
			Bm:     0.02,
			Eta:    0.87,
			Axis:   [2]float64{0, 1},
			Kp:     2.0,
		},
		Gravity: GravityConfig{
			Mode:      GravityLocal,
			G0:        9.80665,
			Mu:        3.986004418e14,
			REarth:    6.371e6,
			MinRadius: 1e3,
		},
		EDT: EDTConfig{
			Mode:       EDTOff,
			Length:     100.0,
			B:          [3]float64{0, 0, 3.1e-5},
			Resistance: 50.0,
			IMax:       2.5,
		},
		Battery: BatteryConfig{
			CapacityJ:  5e5,
			InitialSoC: 1.0,
		},
		WinchProfile:   control.ProfileSpec{Kind: "sine", Amplitude: 8.0, Frequency: 0.2},
		CurrentProfile: control.ProfileSpec{Kind: "square", Amplitude: 0.8, Period: 20.0},
		LogInterval:    DefaultLogInterval,
		DriftTolerance: DefaultDriftTolerance,
		DriftFloor:     DefaultDriftFloor,
		SaveEnergyCSV:  true,
	}
}

// Load overlays the YAML file at path on base.
func Load(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Normalize lower-cases mode strings so validation and the models agree.
func (c Config) Normalize() Config {
	c.Stepper = strings.ToLower(strings.TrimSpace(c.Stepper))
	c.Gravity.Mode = strings.ToLower(strings.TrimSpace(c.Gravity.Mode))
	c.EDT.Mode = strings.ToLower(strings.TrimSpace(c.EDT.Mode))
	return c
}

// Validate reports the first out-of-range parameter as a *dynamo.ConfigError.
func (c Config) Validate() error {
	positive := []struct {
		field string
		v     float64
	}{
		{"dt", c.Dt},
		{"duration", c.Duration},
		{"tether_max_substep_dt", c.MaxSubstepDt},
		{"tether.l0", c.Tether.L0},
		{"tether.youngs_modulus", c.Tether.E},
		{"tether.diameter", c.Tether.D},
		{"tether.rho_l", c.Tether.RhoL},
		{"motor.r_spool", c.Motor.RSpool},
		{"battery.capacity_j", c.Battery.CapacityJ},
	}
	for _, p := range positive {
		if !(p.v > 0) || math.IsInf(p.v, 0) {
			return &dynamo.ConfigError{Field: p.field, Value: p.v, Reason: "must be positive and finite"}
		}
	}

	nonNegative := []struct {
		field string
		v     float64
	}{
		{"constraint_tolerance", c.ConstraintTolerance},
		{"numerical_vel_decay_per_s", c.NumericalVelDecay},
		{"velocity_limit", c.VelocityLimit},
		{"max_speed", c.MaxSpeed},
		{"tether.damping_ratio", c.Tether.DampingRatio},
		{"tether.payload_mass", c.Tether.PayloadMass},
		{"tether.initial_stretch", c.Tether.InitialStretch},
		{"motor.b_m", c.Motor.Bm},
		{"edt.length", c.EDT.Length},
		{"edt.resistance", c.EDT.Resistance},
		{"edt.i_max", c.EDT.IMax},
		{"log_interval", c.LogInterval},
		{"record_interval", c.RecordInterval},
		{"drift_tolerance", c.DriftTolerance},
		{"drift_floor", c.DriftFloor},
	}
	for _, p := range nonNegative {
		if p.v < 0 || math.IsNaN(p.v) {
			return &dynamo.ConfigError{Field: p.field, Value: p.v, Reason: "must not be negative"}
		}
	}

	if c.Tether.N < 1 {
		return &dynamo.ConfigError{Field: "tether.n", Value: c.Tether.N, Reason: "need at least one segment"}
	}
	if c.ConstraintIterations < 0 {
		return &dynamo.ConfigError{Field: "constraint_iterations", Value: c.ConstraintIterations, Reason: "must not be negative"}
	}
	if c.Tether.InitialStretch >= 1 {
		return &dynamo.ConfigError{Field: "tether.initial_stretch", Value: c.Tether.InitialStretch, Reason: "must be a fraction below 1"}
	}
	if vecLen(c.Tether.HangDirection) == 0 {
		return &dynamo.ConfigError{Field: "tether.hang_direction", Value: c.Tether.HangDirection, Reason: "must be non-zero"}
	}
	if vecLen(c.Motor.Axis) == 0 {
		return &dynamo.ConfigError{Field: "motor.axis", Value: c.Motor.Axis, Reason: "must be non-zero"}
	}
	if !(c.Motor.Eta > 0 && c.Motor.Eta <= 1) {
		return &dynamo.ConfigError{Field: "motor.eta", Value: c.Motor.Eta, Reason: "must lie in (0, 1]"}
	}
	if c.Motor.ClosedLoop {
		if !(c.Motor.Jm > 0) {
			return &dynamo.ConfigError{Field: "motor.j_m", Value: c.Motor.Jm, Reason: "closed loop needs positive inertia"}
		}
		if !(c.Motor.TauMax > 0) {
			return &dynamo.ConfigError{Field: "motor.tau_max", Value: c.Motor.TauMax, Reason: "closed loop needs positive torque limit"}
		}
	}
	if c.Battery.InitialSoC < 0 || c.Battery.InitialSoC > 1 {
		return &dynamo.ConfigError{Field: "battery.initial_soc", Value: c.Battery.InitialSoC, Reason: "must lie in [0, 1]"}
	}

	switch strings.ToLower(c.Stepper) {
	case StepperSymplecticEuler, StepperVelocityVerlet:
	default:
		return &dynamo.ConfigError{Field: "stepper", Value: c.Stepper, Reason: "unknown stepper"}
	}

	switch strings.ToLower(c.Gravity.Mode) {
	case GravityLocal:
	case GravityOrbital:
		if !(c.Gravity.Mu > 0) {
			return &dynamo.ConfigError{Field: "gravity.mu", Value: c.Gravity.Mu, Reason: "orbital mode needs positive mu"}
		}
		if !(c.Gravity.MinRadius > 0) {
			return &dynamo.ConfigError{Field: "gravity.min_radius", Value: c.Gravity.MinRadius, Reason: "orbital mode needs a positive clamp radius"}
		}
	default:
		return &dynamo.ConfigError{Field: "gravity.mode", Value: c.Gravity.Mode, Reason: "expected local or orbital"}
	}

	switch strings.ToLower(c.EDT.Mode) {
	case EDTOff, EDTBoost, EDTDrag:
	default:
		return &dynamo.ConfigError{Field: "edt.mode", Value: c.EDT.Mode, Reason: "expected off, boost or drag"}
	}

	if _, err := c.WinchProfile.Build(); err != nil {
		return &dynamo.ConfigError{Field: "winch_profile", Value: c.WinchProfile.Kind, Reason: err.Error()}
	}
	if _, err := c.CurrentProfile.Build(); err != nil {
		return &dynamo.ConfigError{Field: "current_profile", Value: c.CurrentProfile.Kind, Reason: err.Error()}
	}
	return nil
}

// SegmentLength is the rest length of each segment.
func (c Config) SegmentLength() float64 { return c.Tether.L0 / float64(c.Tether.N) }

// Stiffness is the axial spring constant per segment, E·A/rest.
func (c Config) Stiffness() float64 {
	area := math.Pi * (c.Tether.D / 2) * (c.Tether.D / 2)
	return c.Tether.E * area / c.SegmentLength()
}

// SegmentMass is the lumped mass of each node.
func (c Config) SegmentMass() float64 { return c.Tether.RhoL * c.SegmentLength() }

// Damping is the axial damping coefficient, 2·ζ·√(k·m).
func (c Config) Damping() float64 {
	return 2 * math.Sqrt(c.Stiffness()*c.SegmentMass()) * c.Tether.DampingRatio
}

// StabilityLimit is the largest explicit sub-step that resolves the highest
// axial mode of the chain, 2/ω_max with ω_max = 2·√(k/m).
func (c Config) StabilityLimit() float64 {
	omegaMax := 2 * math.Sqrt(c.Stiffness()/c.SegmentMass())
	return 2 / omegaMax
}

func vecLen(v [2]float64) float64 {
	return math.Hypot(v[0], v[1])
}
