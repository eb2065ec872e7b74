package lattice

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"

	"neurosentinel/internal/sentinel"
)

type cell struct {
	r     rune
	color string
	depth float64
}

// Canvas is a z-buffered grid of colored runes. Smaller depth is nearer
// to the viewer and wins.
type Canvas struct {
	width, height int
	cells         []cell
}

// NewCanvas returns a blank canvas.
func NewCanvas(width, height int) *Canvas {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	cells := make([]cell, width*height)
	for i := range cells {
		cells[i] = cell{r: ' ', depth: math.Inf(1)}
	}
	return &Canvas{width: width, height: height, cells: cells}
}

// Size returns the canvas dimensions in cells.
func (c *Canvas) Size() (int, int) {
	return c.width, c.height
}

// Plot draws r at (x, y) unless something nearer is already there. It
// reports whether the cell was written.
func (c *Canvas) Plot(x, y int, depth float64, r rune, color string) bool {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return false
	}
	idx := y*c.width + x
	if depth > c.cells[idx].depth {
		return false
	}
	c.cells[idx] = cell{r: r, color: color, depth: depth}
	return true
}

// Line draws a straight segment with depth interpolated between the
// endpoints. The segment is clipped to the canvas first, so endpoints far
// off screen cost no more than ones inside it.
func (c *Canvas) Line(x0, y0 int, d0 float64, x1, y1 int, d1 float64, r rune, color string) {
	if c.width == 0 || c.height == 0 {
		return
	}
	fx0, fy0 := float64(x0), float64(y0)
	fdx, fdy := float64(x1-x0), float64(y1-y0)
	t0, t1, ok := clipSegment(fx0, fy0, fdx, fdy, float64(c.width-1), float64(c.height-1))
	if !ok {
		return
	}
	d0, d1 = d0+(d1-d0)*t0, d0+(d1-d0)*t1
	x0, y0 = int(math.Round(fx0+fdx*t0)), int(math.Round(fy0+fdy*t0))
	x1, y1 = int(math.Round(fx0+fdx*t1)), int(math.Round(fy0+fdy*t1))

	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	steps := maxInt(dx, -dy)
	errTerm := dx + dy
	x, y := x0, y0
	for i := 0; ; i++ {
		t := 0.0
		if steps > 0 {
			t = float64(i) / float64(steps)
		}
		c.Plot(x, y, d0+(d1-d0)*t, r, color)
		if x == x1 && y == y1 {
			return
		}
		e2 := 2 * errTerm
		if e2 >= dy {
			errTerm += dy
			x += sx
		}
		if e2 <= dx {
			errTerm += dx
			y += sy
		}
	}
}

// clipSegment clips the segment starting at (x, y) with direction
// (dx, dy) to [0,maxX]x[0,maxY] (Liang-Barsky). It returns the visible
// parameter range, or ok false when nothing is visible.
func clipSegment(x, y, dx, dy, maxX, maxY float64) (t0, t1 float64, ok bool) {
	t0, t1 = 0, 1
	p := [4]float64{-dx, dx, -dy, dy}
	q := [4]float64{x, maxX - x, y, maxY - y}
	for i := range p {
		if p[i] == 0 {
			if q[i] < 0 {
				return 0, 0, false
			}
			continue
		}
		ratio := q[i] / p[i]
		if p[i] < 0 {
			if ratio > t1 {
				return 0, 0, false
			}
			if ratio > t0 {
				t0 = ratio
			}
		} else {
			if ratio < t0 {
				return 0, 0, false
			}
			if ratio < t1 {
				t1 = ratio
			}
		}
	}
	return t0, t1, true
}

// Text writes s left to right starting at (x, y).
func (c *Canvas) Text(x, y int, depth float64, s string, color string) {
	for i, r := range []rune(s) {
		c.Plot(x+i, y, depth, r, color)
	}
}

// At returns the rune and color at (x, y).
func (c *Canvas) At(x, y int) (rune, string) {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return ' ', ""
	}
	at := c.cells[y*c.width+x]
	return at.r, at.color
}

// String returns the canvas without color.
func (c *Canvas) String() string {
	var b strings.Builder
	for y := 0; y < c.height; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < c.width; x++ {
			b.WriteRune(c.cells[y*c.width+x].r)
		}
	}
	return b.String()
}

// Render returns the canvas with each run of same-colored cells styled
// once.
func (c *Canvas) Render() string {
	styles := map[string]lipgloss.Style{}
	paint := func(color string, run []rune) string {
		if color == "" {
			return string(run)
		}
		style, ok := styles[color]
		if !ok {
			style = lipgloss.NewStyle().Foreground(lipgloss.Color(color))
			styles[color] = style
		}
		return style.Render(string(run))
	}

	var b strings.Builder
	for y := 0; y < c.height; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		var run []rune
		runColor := ""
		for x := 0; x < c.width; x++ {
			cur := c.cells[y*c.width+x]
			color := cur.color
			if cur.r == ' ' {
				color = ""
			}
			if color != runColor && len(run) > 0 {
				b.WriteString(paint(runColor, run))
				run = run[:0]
			}
			runColor = color
			run = append(run, cur.r)
		}
		if len(run) > 0 {
			b.WriteString(paint(runColor, run))
		}
	}
	return b.String()
}

// Projector maps world coordinates to canvas cells.
type Projector struct {
	// Distance is how far the camera sits from the origin along -Z.
	Distance float64
	// Focal scales the projected image.
	Focal float64
	// Aspect is the width/height ratio of one terminal cell.
	Aspect float64
}

// DefaultProjector frames a lattice spanning about five units around the
// origin.
func DefaultProjector() Projector {
	return Projector{Distance: 12, Focal: 1.2, Aspect: 2}
}

// projectLimit bounds projected coordinates so the int conversion stays
// defined for arbitrarily distant points.
const projectLimit = 1 << 40

// Project rotates v around the Y axis by yaw and applies a perspective
// divide. ok is false for points behind the camera and for non-finite
// positions.
func (p Projector) Project(v sentinel.Vec3, yaw float64, width, height int) (x, y int, depth float64, ok bool) {
	if !v.Finite() {
		return 0, 0, 0, false
	}
	sin, cos := math.Sincos(yaw)
	rx := v[0]*cos + v[2]*sin
	rz := -v[0]*sin + v[2]*cos
	ry := v[1]

	depth = p.Distance + rz
	if depth <= 0.1 {
		return 0, 0, depth, false
	}
	fit := math.Min(float64(width)/p.Aspect, float64(height))
	scale := p.Focal * fit / depth
	px := clampFloat(float64(width)/2+rx*scale*p.Aspect, -projectLimit, projectLimit)
	py := clampFloat(float64(height)/2-ry*scale, -projectLimit, projectLimit)
	return int(math.Round(px)), int(math.Round(py)), depth, true
}

// Blend mixes base towards glow by t in [0,1] in Lab space.
func Blend(base, glow string, t float64) string {
	from, err := colorful.Hex(base)
	if err != nil {
		return glow
	}
	to, err := colorful.Hex(glow)
	if err != nil {
		return glow
	}
	return from.BlendLab(to, clampFloat(t, 0, 1)).Clamped().Hex()
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
