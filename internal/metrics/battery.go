package metrics

const maxKeptClampEvents = 256

// ClampEvent records a battery update that would have left [0, capacity].
type ClampEvent struct {
	Time      float64
	Requested float64 // energy the update asked for, J
	Applied   float64 // energy after clamping, J
	Full      bool    // clamped at capacity rather than at zero
}

// Battery integrates the electrical power drawn by the EDT and the motor.
// Positive power drains it; negative power charges it.
type Battery struct {
	capacity float64
	energy   float64
	events   []ClampEvent
	clamps   int
}

func NewBattery(capacity, soc float64) *Battery {
	b := &Battery{capacity: capacity}
	b.energy = clamp(capacity*soc, 0, capacity)
	return b
}

// Drain removes power·h joules at time t. It returns the clamp event when
// the result had to be bounded.
func (b *Battery) Drain(power, h, t float64) (ClampEvent, bool) {
	requested := b.energy - power*h
	b.energy = clamp(requested, 0, b.capacity)
	if b.energy == requested {
		return ClampEvent{}, false
	}

	ev := ClampEvent{Time: t, Requested: requested, Applied: b.energy, Full: requested > b.capacity}
	b.clamps++
	if len(b.events) < maxKeptClampEvents {
		b.events = append(b.events, ev)
	}
	return ev, true
}

func (b *Battery) Energy() float64   { return b.energy }
func (b *Battery) Capacity() float64 { return b.capacity }

// SoC is the state of charge, energy over capacity.
func (b *Battery) SoC() float64 {
	if b.capacity <= 0 {
		return 0
	}
	return b.energy / b.capacity
}

// Clamps is the total number of clamp events; Events keeps the first few.
func (b *Battery) Clamps() int          { return b.clamps }
func (b *Battery) Events() []ClampEvent { return b.events }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
