package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/glide/internal/metrics"
)

// Series names accepted by EnergySeries.
var SeriesNames = []string{"total", "mechanical", "kinetic", "elastic", "grav", "battery", "soc"}

// EnergySeries extracts one named column from records.
func EnergySeries(records []metrics.Record, name string) ([]float64, error) {
	pick, ok := map[string]func(metrics.Record) float64{
		"total":      func(r metrics.Record) float64 { return r.Total },
		"mechanical": func(r metrics.Record) float64 { return r.Mechanical() },
		"kinetic":    func(r metrics.Record) float64 { return r.Kinetic },
		"elastic":    func(r metrics.Record) float64 { return r.Elastic },
		"grav":       func(r metrics.Record) float64 { return r.Grav },
		"battery":    func(r metrics.Record) float64 { return r.Battery },
		"soc":        func(r metrics.Record) float64 { return r.SoC },
	}[name]
	if !ok {
		return nil, fmt.Errorf("unknown series %q (available: %v)", name, SeriesNames)
	}

	out := make([]float64, len(records))
	for i, rec := range records {
		out[i] = pick(rec)
	}
	return out, nil
}

// Downsample keeps at most n evenly spaced values.
func Downsample(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	out := make([]float64, n)
	step := float64(len(values)-1) / float64(n-1)
	for i := range out {
		out[i] = values[int(float64(i)*step+0.5)]
	}
	return out
}

// PlotEnergy draws the named series of records as ASCII charts, one per
// series.
func PlotEnergy(records []metrics.Record, names []string, width, height int) (string, error) {
	if len(records) < 2 {
		return "", fmt.Errorf("need at least 2 records to plot, have %d", len(records))
	}

	var out string
	for _, name := range names {
		data, err := EnergySeries(records, name)
		if err != nil {
			return "", err
		}
		graph := asciigraph.Plot(Downsample(data, width),
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(fmt.Sprintf("%s (t = %.2f..%.2f s)", name, records[0].Time, records[len(records)-1].Time)),
		)
		out += graph + "\n\n"
	}
	return out, nil
}
