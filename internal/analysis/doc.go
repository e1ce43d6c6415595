// Package analysis finds oscillations in recorded energy series.
//
// The tether exchanges energy between its kinetic and elastic buckets at
// twice the frequency of its dominant mode, so [DominantFrequency] of the
// elastic series reveals the longitudinal or pendulum period of a run:
//
//	spec, err := analysis.Analyze(elastic, dt)
//	if err == nil {
//	    fmt.Printf("%.3f Hz\n", spec.Peak)
//	}
package analysis
