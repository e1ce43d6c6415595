package sim

import (
	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/dynamo"
	"github.com/san-kum/glide/internal/metrics"
)

// Observer receives every record the ledger keeps. The state is the live
// simulator state and must not be retained.
type Observer interface {
	OnRecord(rec metrics.Record, state dynamo.State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(rec metrics.Record, state dynamo.State)

func (f ObserverFunc) OnRecord(rec metrics.Record, state dynamo.State) { f(rec, state) }

// Result is the outcome of a run. After a cancellation or an instability it
// holds everything recorded up to the last completed step.
type Result struct {
	Config   config.Config
	Records  []metrics.Record
	Final    dynamo.State
	Summary  metrics.Summary
	Metrics  map[string]float64
	Clamps   []metrics.ClampEvent
	Substeps int
	SubDt    float64
}
