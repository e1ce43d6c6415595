// Package export renders runs to image files: the tether shape and energy
// series as hand-assembled SVG, and energy plots as PNG through gonum/plot.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/glide/internal/dynamo"
	"github.com/san-kum/glide/internal/metrics"
)

type bounds struct {
	minX, maxX, minY, maxY float64
}

func fit(xs, ys []float64, pad float64) bounds {
	b := bounds{xs[0], xs[0], ys[0], ys[0]}
	for i := range xs {
		b.minX, b.maxX = math.Min(b.minX, xs[i]), math.Max(b.maxX, xs[i])
		b.minY, b.maxY = math.Min(b.minY, ys[i]), math.Max(b.maxY, ys[i])
	}
	rx, ry := b.maxX-b.minX, b.maxY-b.minY
	if rx == 0 {
		rx = 1
	}
	if ry == 0 {
		ry = 1
	}
	b.minX -= rx * pad
	b.maxX += rx * pad
	b.minY -= ry * pad
	b.maxY += ry * pad
	return b
}

func header(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

func path(sb *strings.Builder, xs, ys []float64, b bounds, width, height int, stroke string) {
	fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, stroke)
	for i := range xs {
		x := (xs[i] - b.minX) / (b.maxX - b.minX) * float64(width)
		y := float64(height) - (ys[i]-b.minY)/(b.maxY-b.minY)*float64(height)
		if i == 0 {
			fmt.Fprintf(sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n")
}

// TetherSVG draws the node chain with equal axis scale, anchor in yellow
// and tip in red.
func TetherSVG(positions []dynamo.Vec2, width, height int) (string, error) {
	if len(positions) < 2 {
		return "", fmt.Errorf("need at least 2 nodes, have %d", len(positions))
	}

	xs := make([]float64, len(positions))
	ys := make([]float64, len(positions))
	for i, p := range positions {
		xs[i], ys[i] = p[0], p[1]
	}
	b := fit(xs, ys, 0.1)

	// square the world window so lengths are not distorted
	cx, cy := (b.minX+b.maxX)/2, (b.minY+b.maxY)/2
	half := math.Max((b.maxX-b.minX)/float64(width), (b.maxY-b.minY)/float64(height)) / 2
	b = bounds{cx - half*float64(width), cx + half*float64(width), cy - half*float64(height), cy + half*float64(height)}

	var sb strings.Builder
	header(&sb, width, height)
	path(&sb, xs, ys, b, width, height, "#00ccff")

	marker := func(i int, fill string) {
		x := (xs[i] - b.minX) / (b.maxX - b.minX) * float64(width)
		y := float64(height) - (ys[i]-b.minY)/(b.maxY-b.minY)*float64(height)
		fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"4\" fill=\"%s\"/>\n", x, y, fill)
	}
	marker(0, "#ffcc00")
	marker(len(xs)-1, "#ff4444")

	sb.WriteString("</svg>\n")
	return sb.String(), nil
}

// EnergySVG draws one energy series against time.
func EnergySVG(records []metrics.Record, pick func(metrics.Record) float64, width, height int) (string, error) {
	if len(records) < 2 {
		return "", fmt.Errorf("need at least 2 records, have %d", len(records))
	}

	ts := make([]float64, len(records))
	vs := make([]float64, len(records))
	for i, rec := range records {
		ts[i], vs[i] = rec.Time, pick(rec)
	}

	var sb strings.Builder
	header(&sb, width, height)
	path(&sb, ts, vs, fit(ts, vs, 0.05), width, height, "#00ff88")
	sb.WriteString("</svg>\n")
	return sb.String(), nil
}
