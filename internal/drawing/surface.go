package drawing

// Surface is the rasterizer collaborator an operation log is rendered onto.
// Implementations must be deterministic: the same calls in the same order on a
// cleared surface of the same size must produce the same pixels.
type Surface interface {
	// Bounds returns the surface's current pixel dimensions.
	Bounds() (width, height int)
	// Clear resets every pixel to the background.
	Clear()
	DrawFreehand(op Operation)
	DrawShape(op Operation)
	DrawText(op Operation)
	// FloodFill fills the region connected to (x, y) with color and reports
	// whether any pixel changed.
	FloodFill(x, y int, color string) bool
	// PutRaster copies a snapshot onto the surface at the origin, clipping
	// whatever does not fit.
	PutRaster(r *Raster)
	// Snapshot captures the surface as a raster.
	Snapshot() *Raster
}

// Apply renders a single operation onto s. Unknown operation types are ignored.
func Apply(s Surface, op Operation) {
	switch op.Type {
	case KindFreehand:
		if len(op.Points) < 2 {
			return
		}
		s.DrawFreehand(op)
	case KindShape:
		s.DrawShape(op)
	case KindText:
		s.DrawText(op)
	case KindFill:
		if op.ImageData != nil {
			s.PutRaster(op.ImageData)
			return
		}
		w, h := s.Bounds()
		x, y := op.SeedPixel(w, h)
		s.FloodFill(x, y, op.Color)
	}
}

// Replay clears s and applies the log in order. Replaying the same log twice
// yields the same surface.
func Replay(s Surface, log []Operation) {
	s.Clear()
	for _, op := range log {
		Apply(s, op)
	}
}
