package canvas

import (
	"math"

	"github.com/gogpu/gg"

	"coartistry-backend/internal/drawing"
)

// arrowHead is the fixed depth of an arrow's head in pixels.
const arrowHead = 10

// DrawShape strokes op.ShapeType in the box spanned by op.Start and op.End.
// Unknown shapes draw nothing.
func (s *Surface) DrawShape(op drawing.Operation) {
	if op.Start == nil || op.End == nil {
		return
	}
	pts, closed, ok := shapePath(op.ShapeType, *op.Start, *op.End)
	if !ok {
		return
	}
	dc := s.dc
	dc.Push()
	defer dc.Pop()

	s.setColor(op.Color, 1)
	dc.SetLineWidth(strokeSize(op.Size))
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	if op.ShapeType == drawing.ShapeCircle {
		w, h := op.End.X-op.Start.X, op.End.Y-op.Start.Y
		dc.DrawCircle((op.Start.X+op.End.X)/2, (op.Start.Y+op.End.Y)/2, math.Hypot(w, h)/2)
		_ = dc.Stroke()
		return
	}

	dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		dc.LineTo(p.X, p.Y)
	}
	if closed {
		dc.ClosePath()
	}
	_ = dc.Stroke()
}

// shapePath returns the outline vertices of a shape. Circles report ok with no
// vertices because they are drawn as arcs.
func shapePath(kind drawing.ShapeKind, start, end drawing.Point) (pts []drawing.Point, closed, ok bool) {
	x1, y1, x2, y2 := start.X, start.Y, end.X, end.Y
	midX, midY := (x1+x2)/2, (y1+y2)/2
	w, h := x2-x1, y2-y1
	p := func(x, y float64) drawing.Point { return drawing.Point{X: x, Y: y} }

	switch kind {
	case drawing.ShapeLine:
		return []drawing.Point{p(x1, y1), p(x2, y2)}, false, true
	case drawing.ShapeRectangle:
		return []drawing.Point{p(x1, y1), p(x2, y1), p(x2, y2), p(x1, y2)}, true, true
	case drawing.ShapeCircle:
		return nil, true, true
	case drawing.ShapeTriangle:
		return []drawing.Point{p(midX, y1), p(x1, y2), p(x2, y2)}, true, true
	case drawing.ShapeDiamond:
		return []drawing.Point{p(midX, y1), p(x2, midY), p(midX, y2), p(x1, midY)}, true, true
	case drawing.ShapePentagon:
		return regularPolygon(5, midX, midY, math.Min(math.Abs(w), math.Abs(h))/2), true, true
	case drawing.ShapeHexagon:
		return regularPolygon(6, midX, midY, math.Min(math.Abs(w), math.Abs(h))/2), true, true
	case drawing.ShapePolygon:
		return regularPolygon(8, midX, midY, math.Min(math.Abs(w), math.Abs(h))/2), true, true
	case drawing.ShapeStar:
		return star(5, midX, midY, math.Min(math.Abs(w), math.Abs(h))/2), true, true
	case drawing.ShapeArrowRight:
		return []drawing.Point{
			p(x1, midY), p(x2-arrowHead, y1), p(x2-arrowHead, y1+h/3),
			p(x2, midY), p(x2-arrowHead, y1+2*h/3), p(x2-arrowHead, y2),
		}, true, true
	case drawing.ShapeArrowLeft:
		return []drawing.Point{
			p(x2, midY), p(x1+arrowHead, y1), p(x1+arrowHead, y1+h/3),
			p(x1, midY), p(x1+arrowHead, y1+2*h/3), p(x1+arrowHead, y2),
		}, true, true
	case drawing.ShapeArrowUp:
		return []drawing.Point{
			p(midX, y2), p(x1, y1+arrowHead), p(x1+w/3, y1+arrowHead),
			p(midX, y1), p(x1+2*w/3, y1+arrowHead), p(x2, y1+arrowHead),
		}, true, true
	case drawing.ShapeArrowDown:
		return []drawing.Point{
			p(midX, y1), p(x1, y2-arrowHead), p(x1+w/3, y2-arrowHead),
			p(midX, y2), p(x1+2*w/3, y2-arrowHead), p(x2, y2-arrowHead),
		}, true, true
	}
	return nil, false, false
}

// regularPolygon places n vertices on a circle starting at the top.
func regularPolygon(n int, cx, cy, r float64) []drawing.Point {
	pts := make([]drawing.Point, n)
	for i := range pts {
		a := 2*math.Pi*float64(i)/float64(n) - math.Pi/2
		pts[i] = drawing.Point{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	return pts
}

// star alternates outer and half-size inner vertices, starting at the top.
func star(spikes int, cx, cy, outer float64) []drawing.Point {
	pts := make([]drawing.Point, spikes*2)
	a := -math.Pi / 2
	for i := range pts {
		r := outer
		if i%2 == 1 {
			r = outer / 2
		}
		pts[i] = drawing.Point{X: cx + math.Cos(a)*r, Y: cy + math.Sin(a)*r}
		a += math.Pi / float64(spikes)
	}
	return pts
}
