package viz

import (
	"math"
	"strings"

	"github.com/san-kum/glide/internal/dynamo"
)

// Braille cells hold 2x4 dots:
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a Braille pixel grid of Width x Height cells, or (2·Width) x
// (4·Height) dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the dot at (x, y); dots outside the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// Lit reports whether the dot at (x, y) is set.
func (c *Canvas) Lit(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// DrawBox draws a small filled square centred on (x, y).
func (c *Canvas) DrawBox(x, y, r int) {
	for i := -r; i <= r; i++ {
		for j := -r; j <= r; j++ {
			c.Set(x+i, y+j)
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// Viewport maps world coordinates in metres to canvas dots with y up and
// equal scale on both axes.
type Viewport struct {
	min   dynamo.Vec2
	scale float64
	w, h  int
}

// FitViewport frames points on a canvas with a margin of dots on each side.
func FitViewport(points []dynamo.Vec2, c *Canvas, margin int) Viewport {
	w, h := c.Width*2, c.Height*4
	if len(points) == 0 {
		return Viewport{scale: 1, w: w, h: h}
	}

	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = dynamo.Vec2{math.Min(lo[0], p[0]), math.Min(lo[1], p[1])}
		hi = dynamo.Vec2{math.Max(hi[0], p[0]), math.Max(hi[1], p[1])}
	}
	span := hi.Sub(lo)
	extent := math.Max(span[0], span[1])
	if extent <= 0 {
		extent = 1
	}

	usable := float64(min(w, h) - 1 - 2*margin)
	if usable < 1 {
		usable = 1
	}
	scale := usable / extent

	// centre the drawing in the spare room of the wider axis
	centre := lo.Add(span.Mul(0.5))
	origin := centre.Sub(dynamo.Vec2{float64(w-1) / 2 / scale, float64(h-1) / 2 / scale})
	return Viewport{min: origin, scale: scale, w: w, h: h}
}

// Project returns the dot coordinates of world point p.
func (v Viewport) Project(p dynamo.Vec2) (int, int) {
	d := p.Sub(v.min).Mul(v.scale)
	return int(math.Round(d[0])), v.h - 1 - int(math.Round(d[1]))
}

// DrawChain draws the polyline through points and marks the first and last.
func (c *Canvas) DrawChain(points []dynamo.Vec2, v Viewport) {
	for i := 0; i+1 < len(points); i++ {
		x0, y0 := v.Project(points[i])
		x1, y1 := v.Project(points[i+1])
		c.DrawLine(x0, y0, x1, y1)
	}
	if len(points) > 0 {
		x, y := v.Project(points[0])
		c.DrawBox(x, y, 1)
		x, y = v.Project(points[len(points)-1])
		c.DrawBox(x, y, 1)
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
