package canvas

import (
	"encoding/binary"
	"math"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/gg"

	"coartistry-backend/internal/drawing"
)

// MaxStrokeSize 렌더링 시 적용하는 굵기 상한
const MaxStrokeSize = 200

// strokeSize clamps a relayed size to [0, MaxStrokeSize].
func strokeSize(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, MaxStrokeSize)
}

// strokeSeed derives the PRNG seed for stochastic brushes from the stroke
// itself, so every replica replaying the stroke gets the same dabs.
func strokeSeed(op drawing.Operation) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, p := range op.Points {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.X))
		_, _ = d.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.Y))
		_, _ = d.Write(buf[:])
	}
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(op.Size))
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(op.Color)
	_, _ = d.WriteString(string(op.BrushType))
	return d.Sum64()
}

func strokeRand(op drawing.Operation) *rand.Rand {
	seed := strokeSeed(op)
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// DrawFreehand renders a stroke with its brush. Unknown brushes use the plain
// round polyline.
func (s *Surface) DrawFreehand(op drawing.Operation) {
	pts := op.Points
	if len(pts) < 2 {
		return
	}
	op.Size = strokeSize(op.Size)
	dc := s.dc
	dc.Push()
	defer dc.Pop()

	switch op.BrushType {
	case drawing.BrushPencil:
		s.setColor(op.Color, 1)
		s.strokeSmooth(pts, op.Size, gg.LineCapRound, gg.LineJoinRound)

	case drawing.BrushCalligraphy:
		s.setColor(op.Color, 1)
		dx := math.Cos(math.Pi/6) * op.Size
		dy := math.Sin(math.Pi/6) * op.Size
		dc.SetLineCap(gg.LineCapSquare)
		dc.SetLineJoin(gg.LineJoinBevel)
		dc.SetLineWidth(1)
		for i := 1; i < len(pts); i++ {
			dc.MoveTo(pts[i-1].X-dx, pts[i-1].Y-dy)
			dc.LineTo(pts[i].X+dx, pts[i].Y+dy)
		}
		_ = dc.Stroke()

	case drawing.BrushAirbrush:
		rng := strokeRand(op)
		s.setColor(op.Color, 0.2)
		dabs := int(50 * (op.Size / 5))
		for _, p := range pts {
			for i := 0; i < dabs; i++ {
				ox := (rng.Float64() - 0.5) * op.Size * 4
				oy := (rng.Float64() - 0.5) * op.Size * 4
				r := rng.Float64() * 1.5
				dc.DrawCircle(p.X+ox, p.Y+oy, r)
				_ = dc.Fill()
			}
		}

	case drawing.BrushOil:
		rng := strokeRand(op)
		dabs := int(20 * (op.Size / 5))
		for _, p := range pts {
			for i := 0; i < dabs; i++ {
				ox := (rng.Float64() - 0.5) * op.Size * 2
				oy := (rng.Float64() - 0.5) * op.Size * 2
				r := rng.Float64() * (op.Size / 2)
				s.setColor(op.Color, 0.7+rng.Float64()*0.3)
				dc.DrawCircle(p.X+ox, p.Y+oy, r)
				_ = dc.Fill()
			}
		}

	case drawing.BrushMarker:
		s.setColor(op.Color, 0.5)
		s.strokePolyline(pts, op.Size)

	case drawing.BrushWatercolor:
		// 블러 대신 오프셋을 준 반투명 스트로크를 겹쳐 번짐을 흉내낸다
		s.setColor(op.Color, 0.2)
		for _, off := range [...]float64{-1.5, 0, 1.5} {
			shifted := make([]drawing.Point, len(pts))
			for i, p := range pts {
				shifted[i] = drawing.Point{X: p.X + off, Y: p.Y + off}
			}
			s.strokeSmooth(shifted, op.Size, gg.LineCapRound, gg.LineJoinRound)
		}

	case drawing.BrushTexture:
		s.setColor(op.Color, 1)
		s.strokePolyline(pts, op.Size)
		s.stipple(op)

	default:
		s.setColor(op.Color, 1)
		s.strokePolyline(pts, op.Size)
	}
}

func (s *Surface) strokePolyline(pts []drawing.Point, width float64) {
	dc := s.dc
	dc.SetLineWidth(width)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		dc.LineTo(p.X, p.Y)
	}
	_ = dc.Stroke()
}

// strokeSmooth draws quadratic segments through the midpoints of consecutive points.
func (s *Surface) strokeSmooth(pts []drawing.Point, width float64, lc gg.LineCap, lj gg.LineJoin) {
	dc := s.dc
	dc.SetLineWidth(width)
	dc.SetLineCap(lc)
	dc.SetLineJoin(lj)
	dc.MoveTo(pts[0].X, pts[0].Y)
	for i := 1; i < len(pts); i++ {
		prev, cur := pts[i-1], pts[i]
		dc.QuadraticTo(prev.X, prev.Y, (prev.X+cur.X)/2, (prev.Y+cur.Y)/2)
	}
	_ = dc.Stroke()
}

// stipple scatters darker specks along the stroke for the texture brush.
func (s *Surface) stipple(op drawing.Operation) {
	rng := strokeRand(op)
	base := gg.Hex(op.Color)
	s.dc.SetRGBA(base.R*0.6, base.G*0.6, base.B*0.6, 0.6)
	for _, p := range op.Points {
		for i := 0; i < 4; i++ {
			ox := (rng.Float64() - 0.5) * op.Size
			oy := (rng.Float64() - 0.5) * op.Size
			s.dc.DrawCircle(p.X+ox, p.Y+oy, 0.8)
			_ = s.dc.Fill()
		}
	}
}
