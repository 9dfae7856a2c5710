// Package canvas renders drawing operations onto an in-memory RGBA surface.
package canvas

import (
	"io"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	"coartistry-backend/internal/drawing"
)

// 기본 캔버스 크기 (브라우저 캔버스와 동일)
const (
	DefaultWidth  = 3000
	DefaultHeight = 2000
)

// Background is the colour a cleared surface is filled with.
var Background = gg.Hex(drawing.EraserColor)

var (
	fontOnce   sync.Once
	fontSource *text.FontSource
)

// defaultFont returns the embedded Go Regular face source, or nil if it cannot be parsed.
func defaultFont() *text.FontSource {
	fontOnce.Do(func() {
		src, err := text.NewFontSource(goregular.TTF)
		if err == nil {
			fontSource = src
		}
	})
	return fontSource
}

// Surface is a drawing.Surface backed by a gg software context.
// It is not safe for concurrent use.
type Surface struct {
	dc     *gg.Context
	width  int
	height int
	font   *text.FontSource
}

var _ drawing.Surface = (*Surface)(nil)

// Option 서피스 옵션
type Option func(*Surface)

// WithoutText disables glyph rendering. Text operations are still accepted but draw nothing.
func WithoutText() Option {
	return func(s *Surface) { s.font = nil }
}

// New creates a cleared width×height surface.
func New(width, height int, opts ...Option) *Surface {
	s := &Surface{
		dc:     gg.NewContext(width, height),
		width:  width,
		height: height,
		font:   defaultFont(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Clear()
	return s
}

// Bounds returns the surface dimensions.
func (s *Surface) Bounds() (int, int) {
	return s.width, s.height
}

// Clear fills the surface with the background colour.
func (s *Surface) Clear() {
	s.dc.ClearPath()
	s.dc.ClearWithColor(Background)
}

// pixels returns the live RGBA buffer of the context.
func (s *Surface) pixels() []byte {
	_ = s.dc.FlushGPU()
	return s.dc.ResizeTarget().Data()
}

// Snapshot copies the current pixels into a raster.
func (s *Surface) Snapshot() *drawing.Raster {
	return &drawing.Raster{
		Width:  s.width,
		Height: s.height,
		Pix:    append([]byte(nil), s.pixels()...),
	}
}

// PutRaster overwrites the surface with r, anchored at the origin. Rows and
// columns outside either buffer are skipped.
func (s *Surface) PutRaster(r *drawing.Raster) {
	if !r.Valid() {
		return
	}
	dst := s.pixels()
	w := min(r.Width, s.width)
	h := min(r.Height, s.height)
	for y := 0; y < h; y++ {
		copy(dst[y*s.width*4:(y*s.width+w)*4], r.Pix[y*r.Width*4:(y*r.Width+w)*4])
	}
}

// EncodePNG writes the surface as a PNG image.
func (s *Surface) EncodePNG(w io.Writer) error {
	return s.dc.EncodePNG(w)
}

// Render clears the surface and replays log onto it.
func (s *Surface) Render(log []drawing.Operation) {
	drawing.Replay(s, log)
}

// setColor selects c with the given opacity as the current paint.
func (s *Surface) setColor(c string, alpha float64) {
	col := gg.Hex(c)
	s.dc.SetRGBA(col.R, col.G, col.B, col.A*alpha)
}

// DrawText draws op.Text at op.Pos using a font size of four times op.Size.
func (s *Surface) DrawText(op drawing.Operation) {
	if s.font == nil || op.Pos == nil {
		return
	}
	size := strokeSize(op.Size) * 4
	if size <= 0 {
		size = 20
	}
	s.dc.SetFont(s.font.Face(size))
	s.setColor(op.Color, 1)
	s.dc.DrawString(op.Text, op.Pos.X, op.Pos.Y)
}
