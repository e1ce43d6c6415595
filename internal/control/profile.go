package control

import (
	"fmt"
	"math"
	"strings"
)

// Profile is a command value as a function of simulation time.
type Profile func(t float64) float64

// ProfileSpec describes a profile in configuration files.
type ProfileSpec struct {
	Kind      string  `yaml:"kind"`
	Amplitude float64 `yaml:"amplitude"`
	Frequency float64 `yaml:"frequency,omitempty"`
	Period    float64 `yaml:"period,omitempty"`
	Slope     float64 `yaml:"slope,omitempty"`
	Offset    float64 `yaml:"offset,omitempty"`
}

// Build turns the description into a Profile.
func (s ProfileSpec) Build() (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s.Kind)) {
	case "", "none":
		return Constant(0), nil
	case "constant":
		return Constant(s.Offset + s.Amplitude), nil
	case "sine":
		if s.Frequency < 0 {
			return nil, fmt.Errorf("sine profile: negative frequency %g", s.Frequency)
		}
		return Offset(Sine(s.Amplitude, s.Frequency), s.Offset), nil
	case "square":
		if s.Period <= 0 {
			return nil, fmt.Errorf("square profile: period must be positive, got %g", s.Period)
		}
		return Offset(Square(s.Amplitude, s.Period), s.Offset), nil
	case "ramp":
		return Offset(Ramp(s.Slope, s.Amplitude), s.Offset), nil
	default:
		return nil, fmt.Errorf("unknown profile kind: %s", s.Kind)
	}
}

func Constant(v float64) Profile {
	return func(float64) float64 { return v }
}

// Sine returns a·sin(2π·f·t).
func Sine(amplitude, frequency float64) Profile {
	w := 2 * math.Pi * frequency
	return func(t float64) float64 { return amplitude * math.Sin(w*t) }
}

// Square alternates +a and −a every half period, starting high at t = 0.
func Square(amplitude, period float64) Profile {
	half := period / 2
	return func(t float64) float64 {
		if int(math.Floor(t/half))%2 == 0 {
			return amplitude
		}
		return -amplitude
	}
}

// Ramp grows linearly from zero; a non-zero limit caps the magnitude.
func Ramp(slope, limit float64) Profile {
	return func(t float64) float64 {
		v := slope * t
		if limit != 0 {
			l := math.Abs(limit)
			v = math.Max(-l, math.Min(l, v))
		}
		return v
	}
}

func Offset(p Profile, offset float64) Profile {
	if offset == 0 {
		return p
	}
	return func(t float64) float64 { return p(t) + offset }
}

// Clamp bounds the output of p to [lo, hi].
func Clamp(p Profile, lo, hi float64) Profile {
	return func(t float64) float64 {
		return math.Max(lo, math.Min(hi, p(t)))
	}
}
