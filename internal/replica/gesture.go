package replica

import "coartistry-backend/internal/drawing"

// Tool 현재 선택된 도구
type Tool int

const (
	ToolBrush Tool = iota
	ToolEraser
	ToolShape
)

// Gesture coalesces one pointer press into a single operation. Intermediate
// moves only collect points; nothing is emitted until Up.
type Gesture struct {
	Tool  Tool
	Brush drawing.BrushKind
	Shape drawing.ShapeKind
	Size  float64
	Color string

	points []drawing.Point
	active bool
}

// Down starts a gesture at p, dropping any unfinished one.
func (g *Gesture) Down(p drawing.Point) {
	g.points = append(g.points[:0], p)
	g.active = true
}

func (g *Gesture) Move(p drawing.Point) {
	if !g.active {
		return
	}
	if g.Tool == ToolShape {
		// shapes only need the anchor and the latest position
		g.points = append(g.points[:1], p)
		return
	}
	g.points = append(g.points, p)
}

// Up finishes the gesture and returns the operation it produced. A stroke
// with fewer than two points produces nothing.
func (g *Gesture) Up(p drawing.Point) (drawing.Operation, bool) {
	if !g.active {
		return drawing.Operation{}, false
	}
	g.Move(p)
	g.active = false
	pts := g.points
	g.points = nil

	var (
		op  drawing.Operation
		err error
	)
	switch g.Tool {
	case ToolShape:
		op, err = drawing.NewShape("", g.Shape, pts[0], pts[len(pts)-1], g.Size, g.Color)
	case ToolEraser:
		op, err = drawing.NewFreehand("", dedupe(pts), g.Brush, g.Size, drawing.EraserColor)
	default:
		op, err = drawing.NewFreehand("", dedupe(pts), g.Brush, g.Size, g.Color)
	}
	if err != nil {
		return drawing.Operation{}, false
	}
	return op, true
}

// Active reports whether a pointer is currently down.
func (g *Gesture) Active() bool { return g.active }

// dedupe drops consecutive repeats, so a click without movement is not a stroke.
func dedupe(pts []drawing.Point) []drawing.Point {
	out := make([]drawing.Point, 0, len(pts))
	for i, p := range pts {
		if i > 0 && p == pts[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
