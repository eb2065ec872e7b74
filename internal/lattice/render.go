package lattice

import (
	"sort"

	"neurosentinel/internal/presentation"
	"neurosentinel/internal/sentinel"
)

// Renderer draws scenes onto a canvas.
type Renderer struct {
	Projector Projector
	// Background is the color glow fades into.
	Background string
}

// NewRenderer returns a renderer with the default framing.
func NewRenderer() *Renderer {
	return &Renderer{Projector: DefaultProjector(), Background: presentation.Canvas}
}

// Glyph returns the character a node kind is drawn with.
func Glyph(kind sentinel.NodeKind) rune {
	switch kind {
	case sentinel.KindService:
		return '◆'
	case sentinel.KindDatabase:
		return '■'
	case sentinel.KindAPI:
		return '●'
	case sentinel.KindFile:
		return '▪'
	}
	return '○'
}

type projected struct {
	view  NodeView
	x, y  int
	depth float64
}

// Draw renders scene at the given yaw and pulse intensity.
func (r *Renderer) Draw(scene Scene, yaw, pulse float64, width, height int) *Canvas {
	canvas := NewCanvas(width, height)
	if width <= 0 || height <= 0 {
		return canvas
	}

	for _, link := range scene.Links {
		ax, ay, ad, okA := r.Projector.Project(link.A, yaw, width, height)
		bx, by, bd, okB := r.Projector.Project(link.B, yaw, width, height)
		if !okA || !okB {
			continue
		}
		glyph := '·'
		intensity := 0.45
		if link.Active {
			glyph = '•'
			intensity = pulse
		}
		if scene.State == sentinel.StateStrobeRed || scene.State == sentinel.StateSuccess {
			intensity = pulse
		}
		// Links sit slightly behind nodes at the same depth.
		canvas.Line(ax, ay, ad+0.5, bx, by, bd+0.5, glyph, Blend(r.Background, link.Color, intensity))
	}

	nodes := make([]projected, 0, len(scene.Nodes))
	for _, view := range scene.Nodes {
		x, y, depth, ok := r.Projector.Project(view.Node.Position, yaw, width, height)
		if !ok {
			continue
		}
		nodes = append(nodes, projected{view: view, x: x, y: y, depth: depth})
	}
	// Far to near so nearer halos overwrite equal-depth ties deterministically.
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].depth > nodes[j].depth })

	for _, node := range nodes {
		fade := clampFloat(1-(node.depth-(r.Projector.Distance-5))/15, 0.45, 1)
		intensity := fade * (0.5 + 0.5*pulse)
		if node.view.Active {
			intensity = 1
		}
		color := Blend(r.Background, node.view.Color, intensity)

		if node.view.Size >= 0.85 {
			halo := Blend(r.Background, node.view.Color, intensity*0.5)
			canvas.Plot(node.x-1, node.y, node.depth+0.1, '░', halo)
			canvas.Plot(node.x+1, node.y, node.depth+0.1, '░', halo)
		}
		canvas.Plot(node.x, node.y, node.depth, Glyph(node.view.Node.Kind), color)

		if node.view.Active {
			canvas.Plot(node.x-2, node.y, node.depth, '[', presentation.White)
			canvas.Plot(node.x+2, node.y, node.depth, ']', presentation.White)
			label := node.view.Node.Name
			if label == "" {
				label = node.view.Node.ID
			}
			canvas.Text(node.x+4, node.y, node.depth, label, presentation.White)
		}
	}
	return canvas
}

// Render draws scene and returns the colored text.
func (r *Renderer) Render(scene Scene, yaw, pulse float64, width, height int) string {
	return r.Draw(scene, yaw, pulse, width, height).Render()
}
