// Package relay forwards drawing events between the live members of a room.
// It never stores, validates or merges operations.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"coartistry-backend/internal/metrics"
	"coartistry-backend/internal/protocol"
	"coartistry-backend/internal/room"
	"coartistry-backend/internal/session"
)

// ErrRelayDropped marks an inbound event that was discarded without reply.
var ErrRelayDropped = errors.New("relay dropped event")

// drop reasons, used as metric labels
const (
	reasonRateLimited  = "rate_limited"
	reasonMalformed    = "malformed"
	reasonUnknownEvent = "unknown_event"
	reasonNoRoom       = "no_room"
	reasonRoomMismatch = "room_mismatch"
	reasonNoPeer       = "no_peer"
	reasonBinaryFrame  = "binary_frame"
)

// 클라이언트에 보내는 안내 메시지
const (
	msgRoomFull     = "Room is full"
	msgRoomNotFound = "Room does not exist"
	msgJoinFailed   = "Could not join room"
)

// Options 릴레이 옵션
type Options struct {
	// RoomLookupTimeout bounds the room store lookup during join-room.
	RoomLookupTimeout time.Duration
	Session           session.Options
	// MaxMessageSize caps inbound frames; 0 keeps the transport default.
	MaxMessageSize int64
}

// Engine is the relay. One Engine serves every connection of the process.
type Engine struct {
	registry *room.Registry
	metrics  *metrics.Metrics
	logger   *zap.Logger
	opts     Options

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewEngine 릴레이 엔진 생성
func NewEngine(registry *room.Registry, m *metrics.Metrics, logger *zap.Logger, opts Options) *Engine {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RoomLookupTimeout <= 0 {
		opts.RoomLookupTimeout = 5 * time.Second
	}
	return &Engine{
		registry: registry,
		metrics:  m,
		logger:   logger.Named("relay"),
		opts:     opts,
		sessions: make(map[string]*session.Session),
	}
}

// Connect registers s and tells the client its connection id.
func (e *Engine) Connect(s *session.Session) {
	e.mu.Lock()
	e.sessions[s.ID] = s
	n := len(e.sessions)
	e.mu.Unlock()

	e.metrics.Connections.Set(float64(n))
	e.logger.Info("session connected",
		zap.String("session", s.ID),
		zap.String("username", s.Identity.Username))

	e.send(s, protocol.EventSession, protocol.SessionInfo{
		SocketID: s.ID,
		Username: s.Identity.Username,
	})
}

// Disconnect evicts s from its room, notifies the remaining members and
// closes the session.
func (e *Engine) Disconnect(s *session.Session) {
	roomID, remaining, removed := e.registry.LeaveAll(s.ID)

	e.mu.Lock()
	delete(e.sessions, s.ID)
	n := len(e.sessions)
	e.mu.Unlock()
	s.Close()

	if removed {
		e.broadcastMembership(protocol.EventUserLeft, s, remaining)
	}
	e.metrics.Connections.Set(float64(n))
	e.updateGauges()

	sent, received := s.GetStats()
	e.logger.Info("session disconnected",
		zap.String("session", s.ID),
		zap.String("room", roomID),
		zap.Uint64("sent", sent),
		zap.Uint64("received", received),
		zap.Duration("duration", s.Duration()))
}

// Session returns the live session with the given id.
func (e *Engine) Session(id string) (*session.Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.sessions[id]
	return s, ok
}

// Handle processes one inbound text frame from s. Frames from one connection
// must be handled sequentially; that is what keeps per-sender order.
// Dropped events return an error wrapping ErrRelayDropped.
func (e *Engine) Handle(ctx context.Context, s *session.Session, frame []byte) error {
	if !s.Allow() {
		return e.drop(s, "", reasonRateLimited)
	}

	env, err := protocol.Decode(frame)
	if err != nil {
		return e.drop(s, "", reasonMalformed)
	}
	e.metrics.RelayEvents.WithLabelValues(string(env.Event)).Inc()

	switch env.Event {
	case protocol.EventJoinRoom:
		return e.handleJoin(ctx, s, env)
	case protocol.EventLeaveRoom:
		return e.handleLeave(s, env)
	case protocol.EventRemotePath, protocol.EventFloodFill, protocol.EventCanvasStateUpdate,
		protocol.EventColorChange, protocol.EventRequestCanvasState:
		return e.relay(s, env)
	default:
		return e.drop(s, env.Event, reasonUnknownEvent)
	}
}

func (e *Engine) handleJoin(ctx context.Context, s *session.Session, env protocol.Envelope) error {
	var req protocol.JoinRoom
	if err := env.DecodeData(&req); err != nil || req.RoomID == "" {
		return e.drop(s, env.Event, reasonMalformed)
	}

	// 인증된 사용자명을 우선 사용
	username := s.Identity.Username
	if username == "" {
		username = req.Username
	}

	lookupCtx, cancel := context.WithTimeout(ctx, e.opts.RoomLookupTimeout)
	defer cancel()

	res, err := e.registry.Join(lookupCtx, req.RoomID, room.Member{
		SessionID: s.ID,
		UserID:    strconv.FormatInt(s.Identity.UserID, 10),
		Username:  username,
	})
	switch {
	case errors.Is(err, room.ErrRoomFull):
		e.metrics.Joins.WithLabelValues("full").Inc()
		e.send(s, protocol.EventRoomFull, protocol.Notice{Message: msgRoomFull})
		return nil
	case errors.Is(err, room.ErrRoomNotFound):
		e.metrics.Joins.WithLabelValues("not_found").Inc()
		e.send(s, protocol.EventRoomError, protocol.Notice{Message: msgRoomNotFound})
		return nil
	case err != nil:
		e.metrics.Joins.WithLabelValues("error").Inc()
		e.logger.Error("join failed",
			zap.String("session", s.ID), zap.String("room", req.RoomID), zap.Error(err))
		e.send(s, protocol.EventRoomError, protocol.Notice{Message: msgJoinFailed})
		return nil
	}

	e.metrics.Joins.WithLabelValues("ok").Inc()
	s.SetRoom(req.RoomID)

	if res.Previous != "" {
		e.broadcastMembership(protocol.EventUserLeft, s, res.PreviousMembers)
	}
	if res.Rejoined {
		e.sendMembership(s, protocol.EventUserJoined, s, res.Members)
	} else {
		e.broadcastMembership(protocol.EventUserJoined, s, res.Members)
	}
	e.updateGauges()
	return nil
}

func (e *Engine) handleLeave(s *session.Session, env protocol.Envelope) error {
	var req protocol.LeaveRoom
	if err := env.DecodeData(&req); err != nil {
		return e.drop(s, env.Event, reasonMalformed)
	}
	remaining, removed := e.registry.Leave(req.RoomID, s.ID)
	if !removed {
		return nil
	}
	s.SetRoom("")
	e.broadcastMembership(protocol.EventUserLeft, s, remaining)
	e.updateGauges()
	return nil
}

// relay forwards a room-scoped event to the sender's room peers.
func (e *Engine) relay(s *session.Session, env protocol.Envelope) error {
	roomID, ok := e.registry.RoomOf(s.ID)
	if !ok {
		return e.drop(s, env.Event, reasonNoRoom)
	}

	var scope protocol.RoomScope
	if err := env.DecodeData(&scope); err != nil {
		return e.drop(s, env.Event, reasonMalformed)
	}
	if scope.RoomID != roomID {
		return e.drop(s, env.Event, reasonRoomMismatch)
	}

	others := e.registry.Others(roomID, s.ID)

	var (
		frame []byte
		err   error
	)
	switch env.Event {
	case protocol.EventColorChange:
		var cc protocol.ColorChange
		if err := env.DecodeData(&cc); err != nil {
			return e.drop(s, env.Event, reasonMalformed)
		}
		frame, err = protocol.Encode(protocol.EventColorUpdated, cc.Color)
	case protocol.EventRequestCanvasState:
		if len(others) == 0 {
			return e.drop(s, env.Event, reasonNoPeer)
		}
		frame, err = protocol.Encode(protocol.EventRequestCanvasState, protocol.CanvasStateRequest{
			RoomID:      roomID,
			RequesterID: s.ID,
		})
	default:
		frame, err = protocol.EncodeRaw(env.Event, env.Data)
	}
	if err != nil {
		return e.drop(s, env.Event, reasonMalformed)
	}

	e.fanOut(others, frame)
	return nil
}

func (e *Engine) drop(s *session.Session, event protocol.Event, reason string) error {
	e.metrics.RelayDropped.WithLabelValues(reason).Inc()
	e.logger.Debug("event dropped",
		zap.String("session", s.ID),
		zap.String("event", string(event)),
		zap.String("reason", reason))
	return fmt.Errorf("%w: %s", ErrRelayDropped, reason)
}

// fanOut writes one pre-encoded frame to each member. Failed writes are
// logged; the reader goroutine of that connection handles the teardown.
func (e *Engine) fanOut(members []room.Member, frame []byte) {
	for _, m := range members {
		peer, ok := e.Session(m.SessionID)
		if !ok {
			continue
		}
		if err := peer.Send(frame); err != nil {
			e.logger.Debug("send failed", zap.String("session", peer.ID), zap.Error(err))
		}
	}
}

func (e *Engine) send(s *session.Session, event protocol.Event, data any) {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		e.logger.Error("encode failed", zap.String("event", string(event)), zap.Error(err))
		return
	}
	if err := s.Send(frame); err != nil {
		e.logger.Debug("send failed", zap.String("session", s.ID), zap.Error(err))
	}
}

func membership(subject *session.Session, members []room.Member) protocol.Membership {
	users := make([]protocol.Member, len(members))
	for i, m := range members {
		users[i] = protocol.Member{SocketID: m.SessionID, Username: m.Username, UserID: m.UserID}
	}
	return protocol.Membership{
		SocketID:    subject.ID,
		Username:    subject.Identity.Username,
		UsersInRoom: users,
	}
}

// broadcastMembership sends event about subject to every session in members.
func (e *Engine) broadcastMembership(event protocol.Event, subject *session.Session, members []room.Member) {
	if len(members) == 0 {
		return
	}
	frame, err := protocol.Encode(event, membership(subject, members))
	if err != nil {
		e.logger.Error("encode failed", zap.String("event", string(event)), zap.Error(err))
		return
	}
	e.fanOut(members, frame)
}

func (e *Engine) sendMembership(to *session.Session, event protocol.Event, subject *session.Session, members []room.Member) {
	e.send(to, event, membership(subject, members))
}

func (e *Engine) updateGauges() {
	st := e.registry.Stats()
	e.metrics.LiveRooms.Set(float64(st.Rooms))
	e.metrics.LiveSessions.Set(float64(st.Sessions))
}
