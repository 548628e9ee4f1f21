package render

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/physics"
)

// TerminalRenderer provides a simple ASCII rendering for terminals. One
// buffer cell covers scale world units.
type TerminalRenderer struct {
	width     int
	height    int
	buffer    [][]rune
	scale     float64
	centerPos physics.Vector2D
	out       io.Writer
}

// NewTerminalRenderer creates a terminal renderer with the specified
// dimensions, writing frames to stdout.
func NewTerminalRenderer(width, height int, scale float64) *TerminalRenderer {
	buffer := make([][]rune, height)
	for i := range buffer {
		buffer[i] = make([]rune, width)
	}

	return &TerminalRenderer{
		width:  width,
		height: height,
		buffer: buffer,
		scale:  scale,
		out:    os.Stdout,
	}
}

// SetOutput redirects frame output, replacing stdout.
func (r *TerminalRenderer) SetOutput(w io.Writer) {
	r.out = w
}

// SetCenter sets the world position at the center of the view. Clients
// follow their own body by centering on it each frame.
func (r *TerminalRenderer) SetCenter(pos physics.Vector2D) {
	r.centerPos = pos
}

// worldToScreen converts world coordinates to buffer coordinates. The Y
// axis flips so that world up is screen up.
func (r *TerminalRenderer) worldToScreen(pos physics.Vector2D) (int, int) {
	screenX := int((pos.X-r.centerPos.X)/r.scale + float64(r.width)/2)
	screenY := int((r.centerPos.Y-pos.Y)/r.scale + float64(r.height)/2)
	return screenX, screenY
}

// Clear implements Renderer.
func (r *TerminalRenderer) Clear() {
	for y := range r.buffer {
		for x := range r.buffer[y] {
			r.buffer[y][x] = ' '
		}
	}
}

// Present implements Renderer.
func (r *TerminalRenderer) Present() {
	fmt.Fprint(r.out, "\033[H\033[2J")

	fmt.Fprintln(r.out, "+"+strings.Repeat("-", r.width)+"+")
	for y := range r.buffer {
		fmt.Fprintln(r.out, "|"+string(r.buffer[y])+"|")
	}
	fmt.Fprintln(r.out, "+"+strings.Repeat("-", r.width)+"+")
}

// bodyGlyphs are heading glyphs by octant, starting at angle 0 (east) and
// proceeding counterclockwise.
var bodyGlyphs = []rune{'>', '/', '^', '\\', '<', '/', 'v', '\\'}

// RenderBody implements Renderer. The glyph points along the body's
// heading; sleeping bodies render as '*'.
func (r *TerminalRenderer) RenderBody(body engine.MirrorBody) {
	x, y := r.worldToScreen(body.Rendered.Position)
	if x < 0 || x >= r.width || y < 0 || y >= r.height {
		return
	}

	if body.Sleeping {
		r.buffer[y][x] = '*'
		return
	}

	octant := int(math.Round(body.Rendered.Angle/(math.Pi/4))) % 8
	if octant < 0 {
		octant += 8
	}
	r.buffer[y][x] = bodyGlyphs[octant]
}

// RenderPlanet implements Renderer. Planets render as a filled disc with
// the first letter of their name at the center.
func (r *TerminalRenderer) RenderPlanet(planet engine.PlanetState) {
	center := physics.Vector2D{X: planet.X, Y: planet.Y}
	cx, cy := r.worldToScreen(center)

	cells := int(planet.Radius / r.scale)
	for dy := -cells; dy <= cells; dy++ {
		for dx := -cells; dx <= cells; dx++ {
			if dx*dx+dy*dy > cells*cells {
				continue
			}
			x, y := cx+dx, cy+dy
			if x >= 0 && x < r.width && y >= 0 && y < r.height {
				r.buffer[y][x] = 'O'
			}
		}
	}

	if cx >= 0 && cx < r.width && cy >= 0 && cy < r.height && planet.Name != "" {
		r.buffer[cy][cx] = rune(planet.Name[0])
	}
}
