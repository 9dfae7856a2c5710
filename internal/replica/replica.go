// Package replica is the client-side copy of a room's drawing: the ordered
// operation log, the local redo stack and the surface rendered from them.
package replica

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"coartistry-backend/internal/drawing"
	"coartistry-backend/internal/protocol"
)

var (
	ErrNoRoom    = errors.New("replica is not attached to a room")
	ErrOtherRoom = errors.New("event belongs to another room")
)

// DefaultColor 기본 브러시 색상
const DefaultColor = "#000000"

// Outbox is where the replica sends the events it produces. Sends are fire and
// forget: a failed send is reported but the local state keeps the change.
type Outbox interface {
	Send(event protocol.Event, data any) error
}

// Replica 로컬 연산 로그 + redo 스택
type Replica struct {
	mu      sync.Mutex
	roomID  string
	log     []drawing.Operation
	redo    []drawing.Operation
	surface drawing.Surface
	out     Outbox
	color   string
	logger  *zap.Logger
}

// Option configures a Replica.
type Option func(*Replica)

// WithLogger sets the logger used for dropped state. Defaults to a no-op.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Replica) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New returns an empty replica rendering onto surface. The surface is cleared.
func New(surface drawing.Surface, out Outbox, opts ...Option) *Replica {
	surface.Clear()
	r := &Replica{
		surface: surface,
		out:     out,
		color:   DefaultColor,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reset attaches the replica to roomID with an empty log and a blank surface.
func (r *Replica) Reset(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.roomID = roomID
	r.log = nil
	r.redo = nil
	r.surface.Clear()
}

// Room returns the room the replica mirrors.
func (r *Replica) Room() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomID
}

// Commit appends a locally drawn operation, renders just that operation and
// sends it as remote-path. Any redo history is discarded.
func (r *Replica) Commit(op drawing.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.roomID == "" {
		return ErrNoRoom
	}
	op = op.Clone()
	op.RoomID = r.roomID
	r.append(op)
	drawing.Apply(r.surface, op)

	return r.out.Send(protocol.EventRemotePath, op)
}

// Fill flood-fills the surface at pixel (px, py) and commits a fill operation
// carrying the normalized seed and a snapshot of the result. A seed-only
// flood-fill intent goes out first so peers have something to apply if the
// snapshot is lost. Filling a region that already has the color changes nothing
// and reports false.
func (r *Replica) Fill(px, py float64, color string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.roomID == "" {
		return false, ErrNoRoom
	}
	w, h := r.surface.Bounds()
	if px < 0 || py < 0 || px >= float64(w) || py >= float64(h) {
		return false, nil
	}
	if !r.surface.FloodFill(int(px), int(py), color) {
		return false, nil
	}

	seed := drawing.NormalizeSeed(px, py, w, h)
	op, err := drawing.NewFill(r.roomID, seed, color, r.surface.Snapshot())
	if err != nil {
		return true, err
	}
	r.append(op)

	intentErr := r.out.Send(protocol.EventFloodFill, protocol.FloodFill{
		X:         seed.X,
		Y:         seed.Y,
		FillColor: color,
		RoomID:    r.roomID,
	})
	return true, errors.Join(intentErr, r.out.Send(protocol.EventRemotePath, op))
}

func (r *Replica) append(op drawing.Operation) {
	r.log = append(r.log, op)
	r.redo = nil
}

// ApplyRemote appends an operation relayed from a peer and renders it onto the
// existing surface. The local redo stack is left alone.
func (r *Replica) ApplyRemote(op drawing.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.inRoom(op.RoomID); err != nil {
		return err
	}
	op = op.Clone()
	r.log = append(r.log, op)
	drawing.Apply(r.surface, op)
	return nil
}

// ApplyFillRequest handles a seed-only flood-fill intent. The raster-bearing
// fill operation is the record that counts: if it already arrived the intent
// is ignored, otherwise the fill is painted but not logged, since the
// operation that follows will be.
func (r *Replica) ApplyFillRequest(req protocol.FloodFill) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.inRoom(req.RoomID); err != nil {
		return false, err
	}
	if n := len(r.log); n > 0 {
		last := r.log[n-1]
		if last.HasRaster() && last.Color == req.FillColor &&
			last.Seed.X == req.X && last.Seed.Y == req.Y {
			return false, nil
		}
	}

	fill := drawing.Operation{
		Type:  drawing.KindFill,
		Seed:  &drawing.Point{X: req.X, Y: req.Y},
		Color: req.FillColor,
	}
	if err := fill.Validate(); err != nil {
		return false, err
	}
	w, h := r.surface.Bounds()
	x, y := fill.SeedPixel(w, h)
	return r.surface.FloodFill(x, y, req.FillColor), nil
}

// Undo moves the newest operation to the redo stack, redraws everything and
// broadcasts the resulting log. An empty log is left as is.
func (r *Replica) Undo() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.log)
	if n == 0 {
		return false, nil
	}
	op := r.log[n-1]
	r.log = r.log[:n-1]
	r.redo = append(r.redo, op)
	return true, r.broadcastState()
}

// Redo moves the newest undone operation back onto the log, redraws and
// broadcasts the resulting log. An empty redo stack is left as is.
func (r *Replica) Redo() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.redo)
	if n == 0 {
		return false, nil
	}
	op := r.redo[n-1]
	r.redo = r.redo[:n-1]
	r.log = append(r.log, op)
	return true, r.broadcastState()
}

func (r *Replica) broadcastState() error {
	drawing.Replay(r.surface, r.log)
	if r.roomID == "" {
		return nil
	}
	return r.out.Send(protocol.EventCanvasStateUpdate, protocol.CanvasState{
		RoomID: r.roomID,
		Paths:  drawing.CloneLog(r.log),
	})
}

// ReplaceState adopts a full log sent by a peer. The last full state wins: the
// local log is replaced wholesale, redo history is dropped and the surface is
// redrawn from blank. Operations that fail validation are skipped.
func (r *Replica) ReplaceState(state protocol.CanvasState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.inRoom(state.RoomID); err != nil {
		return err
	}
	log := make([]drawing.Operation, 0, len(state.Paths))
	for _, op := range state.Paths {
		if op.Validate() != nil {
			continue
		}
		log = append(log, op.Clone())
	}
	if skipped := len(state.Paths) - len(log); skipped > 0 {
		r.logger.Debug("invalid operations skipped in canvas state",
			zap.String("roomId", r.roomID),
			zap.Int("skipped", skipped),
		)
	}
	r.log = log
	r.redo = nil
	drawing.Replay(r.surface, r.log)
	return nil
}

// ProvideState answers a catch-up request from a peer with the current log.
func (r *Replica) ProvideState(req protocol.CanvasStateRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.inRoom(req.RoomID); err != nil {
		return err
	}
	return r.out.Send(protocol.EventCanvasStateUpdate, protocol.CanvasState{
		RoomID: r.roomID,
		Paths:  drawing.CloneLog(r.log),
	})
}

// SetColor changes the local brush color and tells the peer.
func (r *Replica) SetColor(color string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.color = color
	if r.roomID == "" {
		return nil
	}
	return r.out.Send(protocol.EventColorChange, protocol.ColorChange{Color: color, RoomID: r.roomID})
}

// ApplyColor adopts a color-updated event.
func (r *Replica) ApplyColor(color string) {
	r.mu.Lock()
	r.color = color
	r.mu.Unlock()
}

func (r *Replica) Color() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.color
}

// Log returns a copy of the operation log.
func (r *Replica) Log() []drawing.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return drawing.CloneLog(r.log)
}

func (r *Replica) RedoDepth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.redo)
}

// View runs fn with exclusive access to the surface.
func (r *Replica) View(fn func(drawing.Surface)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.surface)
}

// inRoom checks an inbound event's room tag. Untagged events are taken as
// belonging to the current room.
func (r *Replica) inRoom(roomID string) error {
	if r.roomID == "" {
		return ErrNoRoom
	}
	if roomID != "" && roomID != r.roomID {
		return ErrOtherRoom
	}
	return nil
}
