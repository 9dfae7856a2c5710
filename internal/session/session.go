package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"coartistry-backend/internal/auth"
)

// ErrClosed is returned when writing to a closed session.
var ErrClosed = errors.New("session closed")

// State WebSocket 연결 상태
type State int

const (
	StateConnected State = iota // 인증 완료, 방 미입장
	StateInRoom                 // 방 참여 중
	StateClosed                 // 연결 종료
)

// String 상태를 문자열로 반환
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateInRoom:
		return "in_room"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the write side of a WebSocket connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// textMessage matches websocket.TextMessage in both gorilla and fasthttp flavours.
const textMessage = 1

// Session 클라이언트 세션 (Thread-Safe)
type Session struct {
	ID          string
	Identity    auth.Identity
	ConnectedAt time.Time

	conn         Conn
	writeTimeout time.Duration
	limiter      *rate.Limiter

	// 동시성 제어
	mu      sync.RWMutex
	writeMu sync.Mutex
	state   State
	roomID  string

	sent     uint64
	received uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// Options 세션 옵션
type Options struct {
	WriteTimeout time.Duration
	// RatePerSec <= 0 disables inbound rate limiting.
	RatePerSec float64
	Burst      int
}

// New 새 세션 생성
func New(conn Conn, id auth.Identity, opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		ID:           uuid.New().String(),
		Identity:     id,
		ConnectedAt:  time.Now(),
		conn:         conn,
		writeTimeout: opts.WriteTimeout,
		state:        StateConnected,
		ctx:          ctx,
		cancel:       cancel,
	}
	if opts.RatePerSec > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = int(opts.RatePerSec)
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), max(burst, 1))
	}
	return s
}

// Context 세션 컨텍스트 반환 (연결 종료 시 취소)
func (s *Session) Context() context.Context {
	return s.ctx
}

// Allow reports whether one more inbound frame fits the rate limit.
func (s *Session) Allow() bool {
	s.mu.Lock()
	s.received++
	s.mu.Unlock()

	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

// Send writes one text frame. Writes are serialized per session.
func (s *Session) Send(frame []byte) error {
	if s.IsClosed() {
		return ErrClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	if err := s.conn.WriteMessage(textMessage, frame); err != nil {
		return err
	}

	s.mu.Lock()
	s.sent++
	s.mu.Unlock()
	return nil
}

// SetRoom 현재 방 설정 (빈 문자열이면 방 없음)
func (s *Session) SetRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}
	s.roomID = roomID
	if roomID == "" {
		s.state = StateConnected
	} else {
		s.state = StateInRoom
	}
}

// Room 현재 방 조회
func (s *Session) Room() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.roomID
}

// GetState 현재 상태 조회
func (s *Session) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// GetStats 통계 조회
func (s *Session) GetStats() (sent, received uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sent, s.received
}

// Duration 연결 유지 시간
func (s *Session) Duration() time.Duration {
	return time.Since(s.ConnectedAt)
}

// Close 세션 정리
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.roomID = ""
	s.mu.Unlock()

	s.cancel()
	s.writeMu.Lock()
	_ = s.conn.Close()
	s.writeMu.Unlock()
}

// IsClosed 세션 종료 여부 확인
func (s *Session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == StateClosed
}
