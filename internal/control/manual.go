package control

// Manual holds an operator offset added on top of a profile.
// The live view nudges it from key presses.
type Manual struct {
	offset float64
	step   float64
}

func NewManual(step float64) *Manual {
	return &Manual{step: step}
}

func (m *Manual) Nudge(dir int) { m.offset += float64(dir) * m.step }
func (m *Manual) Reset()        { m.offset = 0 }
func (m *Manual) Offset() float64 {
	return m.offset
}

// Over returns base(t) plus the current offset, read at call time.
func (m *Manual) Over(base Profile) Profile {
	return func(t float64) float64 { return base(t) + m.offset }
}
