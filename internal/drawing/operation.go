package drawing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrTooFewPoints   = errors.New("freehand stroke needs at least 2 points")
	ErrUnknownKind    = errors.New("unknown operation type")
	ErrUnknownShape   = errors.New("unknown shape type")
	ErrEmptyText      = errors.New("text operation has no text")
	ErrMissingPoint   = errors.New("operation is missing a required point")
	ErrSeedOutOfRange = errors.New("fill seed must be normalized to [0,1]")
)

// Kind 연산 종류
type Kind string

const (
	KindFreehand Kind = "freehand"
	KindShape    Kind = "shape"
	KindText     Kind = "text"
	KindFill     Kind = "fill"
)

// ShapeKind is the fixed set of shapes a shape operation may draw.
type ShapeKind string

const (
	ShapeLine       ShapeKind = "line"
	ShapeRectangle  ShapeKind = "rectangle"
	ShapeCircle     ShapeKind = "circle"
	ShapeTriangle   ShapeKind = "triangle"
	ShapeDiamond    ShapeKind = "diamond"
	ShapePentagon   ShapeKind = "pentagon"
	ShapeHexagon    ShapeKind = "hexagon"
	ShapePolygon    ShapeKind = "polygon"
	ShapeArrowRight ShapeKind = "arrow-right"
	ShapeArrowLeft  ShapeKind = "arrow-left"
	ShapeArrowUp    ShapeKind = "arrow-up"
	ShapeArrowDown  ShapeKind = "arrow-down"
	ShapeStar       ShapeKind = "star"
)

var shapeKinds = map[ShapeKind]struct{}{
	ShapeLine: {}, ShapeRectangle: {}, ShapeCircle: {}, ShapeTriangle: {},
	ShapeDiamond: {}, ShapePentagon: {}, ShapeHexagon: {}, ShapePolygon: {},
	ShapeArrowRight: {}, ShapeArrowLeft: {}, ShapeArrowUp: {}, ShapeArrowDown: {},
	ShapeStar: {},
}

// Valid reports whether s belongs to the enumerated shape set.
func (s ShapeKind) Valid() bool {
	_, ok := shapeKinds[s]
	return ok
}

// BrushKind 브러시 종류 (알 수 없는 값은 기본 브러시로 렌더링)
type BrushKind string

const (
	BrushPencil      BrushKind = "pencil"
	BrushNormal      BrushKind = "normal brush"
	BrushCalligraphy BrushKind = "calligraphy"
	BrushAirbrush    BrushKind = "airbrush"
	BrushOil         BrushKind = "oil"
	BrushMarker      BrushKind = "marker"
	BrushWatercolor  BrushKind = "watercolor"
	BrushTexture     BrushKind = "texture"
)

// EraserColor is what an eraser stroke paints with.
const EraserColor = "#ffffff"

// Point is a 2-D position on the drawing surface.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Operation is one immutable drawing action. Exactly the fields of its Type are set;
// the JSON field names are the ones browsers already send on remote-path.
//
// Operations are values: constructors copy their inputs and Clone hands out deep
// copies, so a logged operation is never changed after creation.
type Operation struct {
	Type   Kind    `json:"type"`
	RoomID string  `json:"roomId,omitempty"`
	Color  string  `json:"color"`
	Size   float64 `json:"size,omitempty"`

	// freehand
	Points    []Point   `json:"points,omitempty"`
	BrushType BrushKind `json:"brushType,omitempty"`

	// shape
	ShapeType ShapeKind `json:"shapeType,omitempty"`
	Start     *Point    `json:"start,omitempty"`
	End       *Point    `json:"end,omitempty"`

	// text
	Text string `json:"text,omitempty"`
	Pos  *Point `json:"pos,omitempty"`

	// fill: Seed is normalized to the origin surface's dimensions
	Seed      *Point  `json:"seed,omitempty"`
	ImageData *Raster `json:"imageData,omitempty"`
}

// NewFreehand builds a freehand stroke. Strokes with fewer than two points are
// rejected with ErrTooFewPoints and must not be emitted.
func NewFreehand(roomID string, points []Point, brush BrushKind, size float64, color string) (Operation, error) {
	op := Operation{
		Type:      KindFreehand,
		RoomID:    roomID,
		Points:    append([]Point(nil), points...),
		BrushType: brush,
		Size:      size,
		Color:     color,
	}
	if op.BrushType == "" {
		op.BrushType = BrushNormal
	}
	return op, op.Validate()
}

// NewShape builds a shape operation spanning start to end.
func NewShape(roomID string, shape ShapeKind, start, end Point, size float64, color string) (Operation, error) {
	op := Operation{
		Type:      KindShape,
		RoomID:    roomID,
		ShapeType: shape,
		Start:     &start,
		End:       &end,
		Size:      size,
		Color:     color,
	}
	return op, op.Validate()
}

// NewText builds a text operation anchored at pos (baseline-left).
func NewText(roomID, text string, pos Point, size float64, color string) (Operation, error) {
	op := Operation{
		Type:   KindText,
		RoomID: roomID,
		Text:   text,
		Pos:    &pos,
		Size:   size,
		Color:  color,
	}
	return op, op.Validate()
}

// NewFill builds a fill operation. seed must already be normalized (see NormalizeSeed).
// raster may be nil when the origin did not capture the surface.
func NewFill(roomID string, seed Point, color string, raster *Raster) (Operation, error) {
	op := Operation{
		Type:      KindFill,
		RoomID:    roomID,
		Seed:      &seed,
		Color:     color,
		ImageData: raster.Clone(),
	}
	return op, op.Validate()
}

// Validate checks that the fields required by the operation's type are present.
func (o Operation) Validate() error {
	switch o.Type {
	case KindFreehand:
		if len(o.Points) < 2 {
			return ErrTooFewPoints
		}
	case KindShape:
		if !o.ShapeType.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownShape, o.ShapeType)
		}
		if o.Start == nil || o.End == nil {
			return ErrMissingPoint
		}
	case KindText:
		if strings.TrimSpace(o.Text) == "" {
			return ErrEmptyText
		}
		if o.Pos == nil {
			return ErrMissingPoint
		}
	case KindFill:
		if o.Seed == nil {
			return ErrMissingPoint
		}
		if o.Seed.X < 0 || o.Seed.X > 1 || o.Seed.Y < 0 || o.Seed.Y > 1 {
			return ErrSeedOutOfRange
		}
		if o.ImageData != nil && !o.ImageData.Valid() {
			return ErrRasterSize
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, o.Type)
	}
	return nil
}

// HasRaster reports whether a fill carries the surface snapshot computed by its origin.
func (o Operation) HasRaster() bool {
	return o.Type == KindFill && o.ImageData != nil
}

// Clone returns a deep copy of o.
func (o Operation) Clone() Operation {
	c := o
	if o.Points != nil {
		c.Points = append([]Point(nil), o.Points...)
	}
	c.Start = clonePoint(o.Start)
	c.End = clonePoint(o.End)
	c.Pos = clonePoint(o.Pos)
	c.Seed = clonePoint(o.Seed)
	c.ImageData = o.ImageData.Clone()
	return c
}

func clonePoint(p *Point) *Point {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// NormalizeSeed converts a pixel position on a width×height surface to the
// normalized seed stored in fill operations.
func NormalizeSeed(px, py float64, width, height int) Point {
	if width <= 0 || height <= 0 {
		return Point{}
	}
	return Point{
		X: clamp01(px / float64(width)),
		Y: clamp01(py / float64(height)),
	}
}

// SeedPixel scales the fill seed to a width×height surface. Surfaces whose size
// differs from the origin get the proportional position, clamped to the bounds.
func (o Operation) SeedPixel(width, height int) (int, int) {
	if o.Seed == nil || width <= 0 || height <= 0 {
		return 0, 0
	}
	x := int(math.Floor(o.Seed.X * float64(width)))
	y := int(math.Floor(o.Seed.Y * float64(height)))
	return clampInt(x, 0, width-1), clampInt(y, 0, height-1)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CloneLog deep-copies an ordered operation log.
func CloneLog(ops []Operation) []Operation {
	if ops == nil {
		return []Operation{}
	}
	out := make([]Operation, len(ops))
	for i, op := range ops {
		out[i] = op.Clone()
	}
	return out
}
