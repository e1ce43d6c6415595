package config

import (
	"sort"
	"strings"

	"github.com/san-kum/glide/internal/dynamo"
)

// Presets maps a mode name to its configuration builder. Each call returns a
// fresh copy, so callers may overlay files and flags without aliasing.
var Presets = map[string]func() Config{
	"engineering":  engineering,
	"orbital_test": orbitalTest,
	"local_demo":   localDemo,
}

// Subsystem testing: soft tether, EDT boost, fine control step.
func engineering() Config {
	c := DefaultConfig()
	c.Name = "engineering"
	c.Tether.L0 = 250.0
	c.Tether.N = 25
	c.Tether.E = 5e9
	c.Tether.RhoL = 1.6
	c.EDT.Mode = EDTBoost
	c.EDT.IMax = 0.5
	c.Motor.TauMax = 8.0
	c.Battery.CapacityJ = 2e6
	c.Dt = 0.005
	c.MaxSubstepDt = 0.005
	c.ConstraintIterations = 3
	return c
}

// Pseudo-orbital validation: constant reduced g, long stiff tether, EDT drag,
// coarse control step relying on sub-stepping.
func orbitalTest() Config {
	c := DefaultConfig()
	c.Name = "orbital_test"
	c.Gravity.Mode = GravityLocal
	c.Gravity.G0 = 8.70
	c.Tether.L0 = 300.0
	c.Tether.N = 40
	c.Tether.E = 40e9
	c.Tether.RhoL = 1.8
	c.Dt = 0.05
	c.MaxSubstepDt = 0.005
	c.ConstraintIterations = 4
	c.EDT.Mode = EDTDrag
	c.Battery.CapacityJ = 1e6
	return c
}

// Simple ground demo.
func localDemo() Config {
	c := DefaultConfig()
	c.Name = "local_demo"
	c.Tether.L0 = 100.0
	c.Tether.N = 15
	c.Gravity.Mode = GravityLocal
	c.Gravity.G0 = 9.80665
	c.EDT.Mode = EDTOff
	c.Dt = 0.005
	c.MaxSubstepDt = 0.005
	c.ConstraintIterations = 2
	return c
}

// GetPreset returns a copy of the named preset.
func GetPreset(name string) (Config, error) {
	build, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Config{}, &dynamo.ConfigError{
			Field:  "preset",
			Value:  name,
			Reason: "unknown preset (available: " + strings.Join(ListPresets(), ", ") + ")",
		}
	}
	return build(), nil
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
