package metrics

import (
	"math"
)

// ControlEffort is the mean absolute command (winch speed plus normalized
// current) over the run.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(rec Record) {
	c.sum += math.Abs(rec.OmegaCmd) + math.Abs(rec.CurrentCmd)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// PeakTension is the largest anchor tension seen, in newtons.
type PeakTension struct {
	peak float64
}

func NewPeakTension() *PeakTension { return &PeakTension{} }

func (p *PeakTension) Name() string       { return "peak_tension" }
func (p *PeakTension) Observe(rec Record) { p.peak = math.Max(p.peak, rec.Tension) }
func (p *PeakTension) Value() float64     { return p.peak }
func (p *PeakTension) Reset()             { p.peak = 0 }
