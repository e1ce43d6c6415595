package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/glide/internal/metrics"
)

const dpi = 150

// Series is one named column of the energy records.
type Series struct {
	Name string
	Pick func(metrics.Record) float64
}

// EnergySeries are the columns plotted by default.
var EnergySeries = []Series{
	{"kinetic", func(r metrics.Record) float64 { return r.Kinetic }},
	{"elastic", func(r metrics.Record) float64 { return r.Elastic }},
	{"grav", func(r metrics.Record) float64 { return r.Grav }},
	{"battery", func(r metrics.Record) float64 { return r.Battery }},
	{"total", func(r metrics.Record) float64 { return r.Total }},
}

var extraSeries = []Series{
	{"mechanical", func(r metrics.Record) float64 { return r.Mechanical() }},
	{"soc", func(r metrics.Record) float64 { return r.SoC }},
	{"residual", func(r metrics.Record) float64 { return r.Residual }},
}

// FindSeries resolves comma-separated series names; an empty list selects
// EnergySeries.
func FindSeries(names string) ([]Series, error) {
	if strings.TrimSpace(names) == "" {
		return EnergySeries, nil
	}
	var out []Series
outer:
	for _, name := range strings.Split(names, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		for _, s := range append(EnergySeries, extraSeries...) {
			if s.Name == name {
				out = append(out, s)
				continue outer
			}
		}
		return nil, fmt.Errorf("unknown series %q", name)
	}
	return out, nil
}

func limitedTicker(maxLabels int, labelFmt string) plot.Ticker {
	if maxLabels < 2 {
		maxLabels = 2
	}
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
			return nil
		}
		if min == max {
			return []plot.Tick{{Value: min, Label: fmt.Sprintf(labelFmt, min)}}
		}
		step := (max - min) / float64(maxLabels-1)
		ticks := make([]plot.Tick, 0, maxLabels)
		for i := 0; i < maxLabels; i++ {
			v := min + float64(i)*step
			ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf(labelFmt, v)})
		}
		return ticks
	})
}

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.Title.Padding = vg.Points(8)
	p.X.Label.TextStyle.Font.Size = vg.Points(12)
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)
	p.X.Tick.Label.Font.Size = vg.Points(10)
	p.Y.Tick.Label.Font.Size = vg.Points(10)
	p.X.Tick.Marker = limitedTicker(8, "%.1f")
	p.Y.Tick.Marker = limitedTicker(8, "%.3g")
	p.Legend.Top = true
}

// EnergyPlot builds a line plot of series against time.
func EnergyPlot(title string, records []metrics.Record, series []Series) (*plot.Plot, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("need at least 2 records, have %d", len(records))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "energy (J)"
	stylePlot(p)

	for i, s := range series {
		pts := make(plotter.XYs, len(records))
		for j, rec := range records {
			pts[j].X = rec.Time
			pts[j].Y = s.Pick(rec)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", s.Name, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	return p, nil
}

// WritePNG renders p at widthIn x heightIn inches.
func WritePNG(w io.Writer, p *plot.Plot, widthIn, heightIn float64) error {
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(dpi),
	)
	p.Draw(draw.New(c))

	bw := bufio.NewWriter(w)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}

// SavePNG writes p to filename, creating its directory.
func SavePNG(p *plot.Plot, widthIn, heightIn float64, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()
	return WritePNG(f, p, widthIn, heightIn)
}
