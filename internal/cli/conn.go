package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"coartistry-backend/internal/canvas"
	"coartistry-backend/internal/client"
	"coartistry-backend/internal/protocol"
)

const catchUpTimeout = 5 * time.Second

// roomConn is a relay connection seated in one room with a caught-up replica.
type roomConn struct {
	client  *client.Client
	surface *canvas.Surface
	changed chan protocol.Event
	members chan protocol.Membership
	done    chan error
	cancel  context.CancelFunc
	logger  *zap.Logger
}

// openRoom dials the relay, joins roomID and, when someone is already drawing
// there, waits for their canvas state before returning.
func openRoom(ctx context.Context, o *options, roomID string, width, height int) (*roomConn, error) {
	token, err := o.credential()
	if err != nil {
		return nil, err
	}
	wsURL, err := relayURL(o.server)
	if err != nil {
		return nil, err
	}

	rc := &roomConn{
		surface: canvas.New(width, height),
		changed: make(chan protocol.Event, 64),
		members: make(chan protocol.Membership, 8),
		done:    make(chan error, 1),
		logger:  o.logger(),
	}
	rejected := make(chan protocol.Notice, 1)
	joined := make(chan protocol.Membership, 1)

	var c *client.Client
	hooks := client.Hooks{
		Membership: func(event protocol.Event, m protocol.Membership) {
			if event == protocol.EventUserJoined && m.SocketID == c.SocketID() {
				select {
				case joined <- m:
				default:
				}
				return
			}
			rc.logger.Info(string(event), zap.String("username", m.Username), zap.Int("users", len(m.UsersInRoom)))
			select {
			case rc.members <- m:
			default:
			}
		},
		Rejected: func(_ protocol.Event, n protocol.Notice) {
			select {
			case rejected <- n:
			default:
			}
		},
		Changed: func(event protocol.Event) {
			select {
			case rc.changed <- event:
			default:
				rc.logger.Debug("change notification dropped", zap.String("event", string(event)))
			}
		},
	}

	c, err = client.Dial(ctx, wsURL, token, rc.surface, client.Options{
		HandshakeTimeout: o.timeout,
		WriteTimeout:     o.timeout,
		Logger:           rc.logger,
		Hooks:            hooks,
	})
	if err != nil {
		var he *client.HandshakeError
		if errors.As(err, &he) && he.Status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w (log in again)", err)
		}
		return nil, err
	}
	rc.client = c

	runCtx, cancel := context.WithCancel(ctx)
	rc.cancel = cancel
	go func() { rc.done <- c.Run(runCtx) }()

	if err := c.JoinRoom(roomID); err != nil {
		rc.Close()
		return nil, err
	}

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	var seat protocol.Membership
	select {
	case seat = <-joined:
	case n := <-rejected:
		rc.Close()
		return nil, fmt.Errorf("join %s: %s", roomID, n.Message)
	case err := <-rc.done:
		cancel()
		_ = c.Close()
		return nil, fmt.Errorf("join %s: connection ended: %v", roomID, err)
	case <-timer.C:
		rc.Close()
		return nil, fmt.Errorf("join %s: timed out", roomID)
	case <-ctx.Done():
		rc.Close()
		return nil, ctx.Err()
	}
	rc.logger.Debug("joined room", zap.String("room", roomID), zap.Int("users", len(seat.UsersInRoom)))

	if len(seat.UsersInRoom) > 1 {
		rc.awaitState(ctx)
	}
	return rc, nil
}

// awaitState waits for the peer's canvas-state-update answering our request.
func (rc *roomConn) awaitState(ctx context.Context) {
	timer := time.NewTimer(catchUpTimeout)
	defer timer.Stop()
	for {
		select {
		case ev := <-rc.changed:
			if ev == protocol.EventCanvasStateUpdate {
				return
			}
		case <-timer.C:
			rc.logger.Warn("no canvas state from peer, starting from a blank canvas")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Close leaves the room and waits for the read loop to finish.
func (rc *roomConn) Close() {
	_ = rc.client.LeaveRoom()
	rc.cancel()
	_ = rc.client.Close()
	<-rc.done
	_ = rc.logger.Sync()
}
