package canvas

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coartistry-backend/internal/drawing"
)

func pixel(s *Surface, x, y int) [4]byte {
	snap := s.Snapshot()
	i := (y*snap.Width + x) * 4
	return [4]byte{snap.Pix[i], snap.Pix[i+1], snap.Pix[i+2], snap.Pix[i+3]}
}

var white = [4]byte{255, 255, 255, 255}

func TestNewSurfaceIsBlank(t *testing.T) {
	s := New(20, 10, WithoutText())
	w, h := s.Bounds()
	assert.Equal(t, 20, w)
	assert.Equal(t, 10, h)
	assert.Equal(t, white, pixel(s, 0, 0))
	assert.Equal(t, white, pixel(s, 19, 9))
}

func TestFloodFillInsideRectangle(t *testing.T) {
	s := New(60, 60, WithoutText())
	rect, err := drawing.NewShape("r", drawing.ShapeRectangle, drawing.Point{X: 10, Y: 10}, drawing.Point{X: 50, Y: 50}, 2, "#000000")
	require.NoError(t, err)
	s.DrawShape(rect)

	assert.True(t, s.FloodFill(30, 30, "#ff0000"))
	assert.Equal(t, [4]byte{255, 0, 0, 255}, pixel(s, 30, 30))
	assert.Equal(t, [4]byte{255, 0, 0, 255}, pixel(s, 15, 45))
	assert.Equal(t, white, pixel(s, 3, 3))

	assert.False(t, s.FloodFill(30, 30, "#ff0000"), "same colour is a no-op")
	assert.False(t, s.FloodFill(-1, 5, "#00ff00"))
}

func TestStochasticBrushesAreDeterministic(t *testing.T) {
	for _, brush := range []drawing.BrushKind{drawing.BrushAirbrush, drawing.BrushOil, drawing.BrushTexture} {
		t.Run(string(brush), func(t *testing.T) {
			op, err := drawing.NewFreehand("r", []drawing.Point{{X: 20, Y: 20}, {X: 40, Y: 30}, {X: 60, Y: 25}}, brush, 6, "#3366cc")
			require.NoError(t, err)

			a := New(80, 50, WithoutText())
			b := New(80, 50, WithoutText())
			a.Render([]drawing.Operation{op})
			b.Render([]drawing.Operation{op})
			assert.True(t, bytes.Equal(a.Snapshot().Pix, b.Snapshot().Pix))
			assert.NotEqual(t, New(80, 50, WithoutText()).Snapshot().Pix, a.Snapshot().Pix)
		})
	}
}

func TestRenderReplaysFromBlank(t *testing.T) {
	s := New(40, 40, WithoutText())
	stroke, err := drawing.NewFreehand("r", []drawing.Point{{X: 5, Y: 20}, {X: 35, Y: 20}}, drawing.BrushPencil, 4, "#000000")
	require.NoError(t, err)

	s.Render([]drawing.Operation{stroke})
	drawn := s.Snapshot()
	assert.NotEqual(t, white, pixel(s, 20, 20))

	s.Render(nil)
	assert.Equal(t, white, pixel(s, 20, 20))

	s.Render([]drawing.Operation{stroke})
	assert.Equal(t, drawn.Pix, s.Snapshot().Pix)
}

func TestPutRasterClipsAtOrigin(t *testing.T) {
	src := New(4, 4, WithoutText())
	src.FloodFill(0, 0, "#00ff00")

	dst := New(2, 6, WithoutText())
	dst.PutRaster(src.Snapshot())
	assert.Equal(t, [4]byte{0, 255, 0, 255}, pixel(dst, 1, 3))
	assert.Equal(t, white, pixel(dst, 1, 5))
}

func TestShapeGeometry(t *testing.T) {
	start, end := drawing.Point{X: 0, Y: 0}, drawing.Point{X: 100, Y: 60}

	pts, closed, ok := shapePath(drawing.ShapeArrowRight, start, end)
	require.True(t, ok)
	assert.True(t, closed)
	assert.Equal(t, drawing.Point{X: 0, Y: 30}, pts[0])
	assert.Equal(t, drawing.Point{X: 90, Y: 0}, pts[1])
	assert.Equal(t, drawing.Point{X: 100, Y: 30}, pts[3])

	pts, _, _ = shapePath(drawing.ShapePentagon, start, end)
	require.Len(t, pts, 5)
	assert.InDelta(t, 50, pts[0].X, 1e-9)
	assert.InDelta(t, 0, pts[0].Y, 1e-9, "first vertex sits on top, radius is min(w,h)/2")

	pts, _, _ = shapePath(drawing.ShapeStar, start, end)
	require.Len(t, pts, 10)
	inner := math.Hypot(pts[1].X-50, pts[1].Y-30)
	assert.InDelta(t, 15, inner, 1e-9)

	pts, _, _ = shapePath(drawing.ShapePolygon, start, end)
	assert.Len(t, pts, 8)

	_, _, ok = shapePath("blob", start, end)
	assert.False(t, ok)
}

func TestEncodePNG(t *testing.T) {
	s := New(8, 8, WithoutText())
	var buf bytes.Buffer
	require.NoError(t, s.EncodePNG(&buf))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestOversizedStrokesAreClamped(t *testing.T) {
	pts := []drawing.Point{{X: 10, Y: 10}, {X: 30, Y: 20}}
	for _, brush := range []drawing.BrushKind{drawing.BrushAirbrush, drawing.BrushOil} {
		t.Run(string(brush), func(t *testing.T) {
			huge, err := drawing.NewFreehand("r", pts, brush, 1e9, "#3366cc")
			require.NoError(t, err)
			capped, err := drawing.NewFreehand("r", pts, brush, MaxStrokeSize, "#3366cc")
			require.NoError(t, err)

			a := New(40, 30, WithoutText())
			b := New(40, 30, WithoutText())
			a.Render([]drawing.Operation{huge})
			b.Render([]drawing.Operation{capped})
			assert.True(t, bytes.Equal(a.Snapshot().Pix, b.Snapshot().Pix))
		})
	}
	assert.Zero(t, strokeSize(-3))
	assert.Zero(t, strokeSize(math.NaN()))
	assert.Equal(t, 7.5, strokeSize(7.5))
}

func TestPutRasterIgnoresMismatchedRaster(t *testing.T) {
	s := New(10, 10, WithoutText())
	s.PutRaster(&drawing.Raster{Width: 1 << 62, Height: 1})
	s.PutRaster(&drawing.Raster{Width: 10, Height: 10, Pix: []byte{0, 0, 0, 255}})
	assert.Equal(t, white, pixel(s, 0, 0))
}
