package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/glide/internal/sim"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899")).
			Width(16)

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00"))

	SparkHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	SparkMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	SparkLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// RenderSummary formats the end-of-run table: final energy buckets, totals
// of the ledger flows and the reduced metrics.
func RenderSummary(res *sim.Result) string {
	sum := res.Summary
	final := sum.Final
	var b strings.Builder

	b.WriteString(titleStyle.Render(strings.ToUpper(res.Config.Name)) + "\n")
	b.WriteString(Subtle.Render(fmt.Sprintf("%d steps, %d records, %d sub-steps of %.3g s",
		sum.Steps, sum.Records, res.Substeps, res.SubDt)) + "\n\n")

	row := func(label, format string, v ...any) {
		b.WriteString(MetricLabel.Render(label) + MetricValue.Render(fmt.Sprintf(format, v...)) + "\n")
	}

	row("time", "%.3f s", final.Time)
	row("E_kin", "%.4g J", final.Kinetic)
	row("E_elastic", "%.4g J", final.Elastic)
	row("E_grav", "%.4g J", final.Grav)
	row("E_batt", "%.4g J", final.Battery)
	row("E_total", "%.6g J", final.Total)
	b.WriteString(MetricLabel.Render("SoC") + ProgressBar(final.SoC, 20) + fmt.Sprintf(" %.1f%%", 100*final.SoC) + "\n")

	b.WriteString("\n" + Separator(40) + "\n\n")
	t := sum.Totals
	row("EDT work", "%.4g J", t.EDTWork)
	row("anchor work", "%.4g J", t.AnchorWork)
	row("damping loss", "%.4g J", t.DampingLoss)
	row("resistive loss", "%.4g J", t.ResistiveLoss)
	row("motor loss", "%.4g J", t.MotorLoss)
	row("numerical loss", "%.4g J", t.NumericalLoss)
	row("dissipated", "%.4g J", sum.Dissipated)
	row("max residual", "%.3g J", sum.MaxResidual)

	if sum.DriftWarnings > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d drift warnings", sum.DriftWarnings)) + "\n")
	}
	if sum.ClampEvents > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d battery clamp events", sum.ClampEvents)) + "\n")
	}

	if len(res.Metrics) > 0 {
		b.WriteString("\n" + Separator(40) + "\n\n")
		names := make([]string, 0, len(res.Metrics))
		for name := range res.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			row(name, "%.6g", res.Metrics[name])
		}
	}

	if len(res.Records) > 1 {
		totals := make([]float64, len(res.Records))
		for i, rec := range res.Records {
			totals[i] = rec.Total
		}
		b.WriteString("\n" + MetricLabel.Render("E_total") + SparklineChart(totals, 40) + "\n")
	}

	return panelStyle.Render(b.String())
}

// ProgressBar renders a fraction in [0, 1] as a coloured bar.
func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	filled = max(0, min(width, filled))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case percent > 0.5:
		return SparkHigh.Render(bar)
	case percent > 0.2:
		return SparkMid.Render(bar)
	}
	return SparkLow.Render(bar)
}

// SparklineChart renders a mini sparkline from values
func SparklineChart(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	step := len(values) / width
	if step < 1 {
		step = 1
	}

	var result strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / rng
		idx := max(0, min(len(chars)-1, int(norm*float64(len(chars)-1))))

		c := string(chars[idx])
		switch {
		case norm > 0.7:
			result.WriteString(SparkHigh.Render(c))
		case norm > 0.3:
			result.WriteString(SparkMid.Render(c))
		default:
			result.WriteString(SparkLow.Render(c))
		}
	}
	return result.String()
}

func Separator(width int) string {
	mid := width / 2
	left := strings.Repeat("─", mid-3)
	right := strings.Repeat("─", width-mid-3)
	return Subtle.Render(left + " ◆ " + right)
}
