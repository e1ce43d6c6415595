package metrics

import "math"

// Stability is the fraction of steps whose energy balance closed within
// tolerance.
type Stability struct {
	name     string
	warnings int
	samples  int
}

func NewStability() *Stability {
	return &Stability{
		name: "stability",
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(rec Record) {
	s.samples++
	if rec.Drift {
		s.warnings++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.warnings)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.warnings = 0
	s.samples = 0
}

// EnergyDrift is the largest running sum of ledger residuals relative to the
// peak energy held in motion and stretch. Work drawn from or returned to the
// battery and losses booked as dissipation do not count.
type EnergyDrift struct {
	name     string
	scale    float64
	maxDrift float64
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{
		name: "energy_drift",
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(rec Record) {
	e.scale = math.Max(e.scale, rec.Kinetic+rec.Elastic)
	if e.scale > 0 {
		e.maxDrift = math.Max(e.maxDrift, math.Abs(rec.Unexplained)/e.scale)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.scale = 0
	e.maxDrift = 0
}
