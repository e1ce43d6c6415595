package metrics

// Metric reduces the record stream of a run to a single number.
type Metric interface {
	Name() string
	Observe(rec Record)
	Value() float64
	Reset()
}

// Defaults returns the metrics every run reports.
func Defaults() []Metric {
	return []Metric{NewEnergyDrift(), NewStability(), NewControlEffort(), NewPeakTension()}
}
