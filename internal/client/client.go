// Package client connects a replica to the relay over a WebSocket.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"coartistry-backend/internal/drawing"
	"coartistry-backend/internal/protocol"
	"coartistry-backend/internal/replica"
)

var (
	ErrHandshakeRejected = errors.New("relay rejected the handshake")
	ErrClosed            = errors.New("client closed")
)

// HandshakeError carries the HTTP status the relay answered the upgrade with.
type HandshakeError struct {
	Status int
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", ErrHandshakeRejected, e.Status)
}

func (e *HandshakeError) Unwrap() error { return ErrHandshakeRejected }

// Hooks are called from Run's goroutine. Any of them may be nil.
type Hooks struct {
	// Membership receives user-joined and user-left.
	Membership func(event protocol.Event, m protocol.Membership)
	// Rejected receives room-full and room-error.
	Rejected func(event protocol.Event, n protocol.Notice)
	// Changed fires after an inbound event touched the replica.
	Changed func(event protocol.Event)
}

// Options 클라이언트 설정
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Logger           *zap.Logger
	Hooks            Hooks
}

// Client is one authenticated relay connection driving a replica.
type Client struct {
	conn    *websocket.Conn
	replica *replica.Replica
	logger  *zap.Logger
	hooks   Hooks
	opts    Options

	writeMu sync.Mutex

	mu        sync.Mutex
	socketID  string
	username  string
	pending   string
	closed    bool
	closeOnce sync.Once
}

// Dial opens a relay connection presenting token as a bearer credential and
// waits for the session event. surface backs the client's replica.
func Dial(ctx context.Context, url, token string, surface drawing.Surface, opts Options) (*Client, error) {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, &HandshakeError{Status: resp.StatusCode}
		}
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &Client{
		conn:   conn,
		logger: opts.Logger,
		hooks:  opts.Hooks,
		opts:   opts,
	}
	c.replica = replica.New(surface, c, replica.WithLogger(opts.Logger.Named("replica")))

	if err := c.awaitSession(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) awaitSession(ctx context.Context) error {
	deadline := time.Now().Add(c.opts.HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	_, frame, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	env, err := protocol.Decode(frame)
	if err != nil {
		return err
	}
	if env.Event != protocol.EventSession {
		return fmt.Errorf("%w: expected %s, got %s", protocol.ErrMalformedFrame, protocol.EventSession, env.Event)
	}
	var info protocol.SessionInfo
	if err := env.DecodeData(&info); err != nil {
		return err
	}

	c.mu.Lock()
	c.socketID, c.username = info.SocketID, info.Username
	c.mu.Unlock()
	return c.conn.SetReadDeadline(time.Time{})
}

// Replica returns the replica this client keeps in sync.
func (c *Client) Replica() *replica.Replica { return c.replica }

// SocketID is the connection id the relay assigned.
func (c *Client) SocketID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socketID
}

func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Send implements replica.Outbox.
func (c *Client) Send(event protocol.Event, data any) error {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// JoinRoom asks the relay for a seat in roomID. The replica switches rooms
// once the relay confirms with user-joined.
func (c *Client) JoinRoom(roomID string) error {
	c.mu.Lock()
	c.pending = roomID
	username := c.username
	c.mu.Unlock()

	return c.Send(protocol.EventJoinRoom, protocol.JoinRoom{RoomID: roomID, Username: username})
}

// LeaveRoom leaves the current room and blanks the replica.
func (c *Client) LeaveRoom() error {
	roomID := c.replica.Room()
	if roomID == "" {
		return nil
	}
	c.replica.Reset("")
	return c.Send(protocol.EventLeaveRoom, protocol.LeaveRoom{RoomID: roomID})
}

// Run reads relay events until ctx is cancelled or the connection ends.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read relay: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		env, err := protocol.Decode(frame)
		if err != nil {
			c.logger.Debug("bad frame from relay", zap.Error(err))
			continue
		}
		if err := c.dispatch(env); err != nil {
			c.logger.Debug("event not applied",
				zap.String("event", string(env.Event)), zap.Error(err))
		}
	}
}

func (c *Client) dispatch(env protocol.Envelope) error {
	switch env.Event {
	case protocol.EventRemotePath:
		var op drawing.Operation
		if err := env.DecodeData(&op); err != nil {
			return err
		}
		if err := c.replica.ApplyRemote(op); err != nil {
			return err
		}
	case protocol.EventCanvasStateUpdate:
		var state protocol.CanvasState
		if err := env.DecodeData(&state); err != nil {
			return err
		}
		if err := c.replica.ReplaceState(state); err != nil {
			return err
		}
	case protocol.EventFloodFill:
		var req protocol.FloodFill
		if err := env.DecodeData(&req); err != nil {
			return err
		}
		applied, err := c.replica.ApplyFillRequest(req)
		if err != nil || !applied {
			return err
		}
	case protocol.EventColorUpdated:
		var color string
		if err := env.DecodeData(&color); err != nil {
			return err
		}
		c.replica.ApplyColor(color)
	case protocol.EventRequestCanvasState:
		var req protocol.CanvasStateRequest
		if err := env.DecodeData(&req); err != nil {
			return err
		}
		return c.replica.ProvideState(req)
	case protocol.EventUserJoined, protocol.EventUserLeft:
		var m protocol.Membership
		if err := env.DecodeData(&m); err != nil {
			return err
		}
		if err := c.membership(env.Event, m); err != nil {
			return err
		}
		if c.hooks.Membership != nil {
			c.hooks.Membership(env.Event, m)
		}
		return nil
	case protocol.EventRoomFull, protocol.EventRoomError:
		var n protocol.Notice
		if err := env.DecodeData(&n); err != nil {
			return err
		}
		c.mu.Lock()
		c.pending = ""
		c.mu.Unlock()
		if c.hooks.Rejected != nil {
			c.hooks.Rejected(env.Event, n)
		}
		return nil
	case protocol.EventSession:
		var info protocol.SessionInfo
		if err := env.DecodeData(&info); err != nil {
			return err
		}
		c.mu.Lock()
		c.socketID, c.username = info.SocketID, info.Username
		c.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("unexpected event %q", env.Event)
	}

	if c.hooks.Changed != nil {
		c.hooks.Changed(env.Event)
	}
	return nil
}

// membership adopts a confirmed join. A late joiner asks the peer for its log.
func (c *Client) membership(event protocol.Event, m protocol.Membership) error {
	c.mu.Lock()
	own := m.SocketID == c.socketID
	roomID := c.pending
	if own && event == protocol.EventUserJoined {
		c.pending = ""
	}
	c.mu.Unlock()

	if !own || event != protocol.EventUserJoined || roomID == "" {
		return nil
	}
	if c.replica.Room() != roomID {
		c.replica.Reset(roomID)
	}
	if len(m.UsersInRoom) < 2 {
		return nil
	}
	return c.Send(protocol.EventRequestCanvasState, protocol.CanvasStateRequest{RoomID: roomID})
}

// Close sends a close frame and closes the connection. Safe to call twice.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
