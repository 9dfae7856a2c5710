package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"coartistry-backend/internal/canvas"
	"coartistry-backend/internal/drawing"
	"coartistry-backend/internal/replica"
)

// parsePoint "x,y" → Point
func parsePoint(s string) (drawing.Point, error) {
	xs, ys, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return drawing.Point{}, fmt.Errorf("point %q: want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return drawing.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return drawing.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	return drawing.Point{X: x, Y: y}, nil
}

// parsePath "x,y x,y ..." (공백 또는 ; 구분)
func parsePath(s string) ([]drawing.Point, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ';' })
	pts := make([]drawing.Point, 0, len(fields))
	for _, f := range fields {
		p, err := parsePoint(f)
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

type drawFlags struct {
	color  string
	size   float64
	brush  string
	eraser bool
	points string
	shape  string
	from   string
	to     string
	text   string
	at     string
	fill   string
}

// operation replays the flags as a pointer gesture or builds a text op.
// A fill is handled separately since it needs the rendered canvas.
func (f *drawFlags) operation() (drawing.Operation, error) {
	if f.text != "" {
		pos, err := parsePoint(f.at)
		if err != nil {
			return drawing.Operation{}, err
		}
		return drawing.NewText("", f.text, pos, f.size, f.color)
	}

	g := replica.Gesture{
		Tool:  replica.ToolBrush,
		Brush: drawing.BrushKind(f.brush),
		Size:  f.size,
		Color: f.color,
	}
	var pts []drawing.Point
	switch {
	case f.shape != "":
		from, err := parsePoint(f.from)
		if err != nil {
			return drawing.Operation{}, err
		}
		to, err := parsePoint(f.to)
		if err != nil {
			return drawing.Operation{}, err
		}
		g.Tool = replica.ToolShape
		g.Shape = drawing.ShapeKind(f.shape)
		if !g.Shape.Valid() {
			return drawing.Operation{}, fmt.Errorf("%w: %q", drawing.ErrUnknownShape, f.shape)
		}
		pts = []drawing.Point{from, to}
	default:
		var err error
		if pts, err = parsePath(f.points); err != nil {
			return drawing.Operation{}, err
		}
		if f.eraser {
			g.Tool = replica.ToolEraser
		}
	}
	if len(pts) < 2 {
		return drawing.Operation{}, drawing.ErrTooFewPoints
	}

	g.Down(pts[0])
	for _, p := range pts[1 : len(pts)-1] {
		g.Move(p)
	}
	op, ok := g.Up(pts[len(pts)-1])
	if !ok {
		return drawing.Operation{}, errors.New("gesture produced no operation")
	}
	return op, nil
}

func newDrawCmd(o *options) *cobra.Command {
	f := &drawFlags{}
	cmd := &cobra.Command{
		Use:   "draw <roomId>",
		Short: "Draw one stroke, shape, text or fill into a room",
		Example: `  coartistry draw abc123 --points "10,10 40,30 80,20" --brush marker
  coartistry draw abc123 --shape star --from 100,100 --to 180,180 --color "#ff0000"
  coartistry draw abc123 --text "hello" --at 50,50 --size 24
  coartistry draw abc123 --fill 10,10 --color "#00ff00"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				op   drawing.Operation
				seed drawing.Point
				err  error
			)
			if f.fill != "" {
				seed, err = parsePoint(f.fill)
			} else {
				op, err = f.operation()
			}
			if err != nil {
				return err
			}

			rc, err := openRoom(cmd.Context(), o, args[0], canvas.DefaultWidth, canvas.DefaultHeight)
			if err != nil {
				return err
			}
			defer rc.Close()
			r := rc.client.Replica()

			if f.fill != "" {
				changed, err := r.Fill(seed.X, seed.Y, f.color)
				if err != nil {
					return err
				}
				if !changed {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to fill")
					return nil
				}
			} else if err := r.Commit(op); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Drew %s (%d operations in room)\n", describe(op, f), len(r.Log()))
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.color, "color", replica.DefaultColor, "color as #rrggbb")
	fl.Float64Var(&f.size, "size", 5, "line width or font size")
	fl.StringVar(&f.brush, "brush", string(drawing.BrushPencil), "brush for --points")
	fl.BoolVar(&f.eraser, "eraser", false, "erase along --points")
	fl.StringVar(&f.points, "points", "", `freehand path "x,y x,y ..."`)
	fl.StringVar(&f.shape, "shape", "", "shape kind (line, rectangle, circle, star, ...)")
	fl.StringVar(&f.from, "from", "", "shape start x,y")
	fl.StringVar(&f.to, "to", "", "shape end x,y")
	fl.StringVar(&f.text, "text", "", "text to place")
	fl.StringVar(&f.at, "at", "", "text position x,y")
	fl.StringVar(&f.fill, "fill", "", "flood fill seed x,y")

	cmd.MarkFlagsMutuallyExclusive("points", "shape", "text", "fill")
	cmd.MarkFlagsOneRequired("points", "shape", "text", "fill")
	cmd.MarkFlagsRequiredTogether("shape", "from", "to")
	cmd.MarkFlagsRequiredTogether("text", "at")
	return cmd
}

func describe(op drawing.Operation, f *drawFlags) string {
	switch {
	case f.fill != "":
		return "fill"
	case op.Type == drawing.KindShape:
		return string(op.ShapeType)
	default:
		return string(op.Type)
	}
}

func newUndoCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <roomId>",
		Short: "Undo the latest operation in a room for everyone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := openRoom(cmd.Context(), o, args[0], canvas.DefaultWidth, canvas.DefaultHeight)
			if err != nil {
				return err
			}
			defer rc.Close()

			undone, err := rc.client.Replica().Undo()
			if err != nil {
				return err
			}
			if !undone {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to undo")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Undone (%d operations left)\n", len(rc.client.Replica().Log()))
			return nil
		},
	}
}
