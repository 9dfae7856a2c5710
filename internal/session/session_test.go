package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coartistry-backend/internal/auth"
)

type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	deadline time.Time
	closed   bool
	err      error
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadline = t
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestSessionLifecycle(t *testing.T) {
	conn := &fakeConn{}
	s := New(conn, auth.Identity{UserID: 1, Username: "alice"}, Options{WriteTimeout: time.Second})
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateConnected, s.GetState())

	s.SetRoom("abc")
	assert.Equal(t, StateInRoom, s.GetState())
	assert.Equal(t, "abc", s.Room())

	require.NoError(t, s.Send([]byte("hello")))
	assert.False(t, conn.deadline.IsZero())
	sent, _ := s.GetStats()
	assert.Equal(t, uint64(1), sent)

	s.Close()
	s.Close()
	assert.True(t, conn.closed)
	assert.Equal(t, "closed", s.GetState().String())
	assert.ErrorIs(t, s.Send([]byte("late")), ErrClosed)
	assert.Error(t, s.Context().Err())
}

func TestSendPropagatesWriteError(t *testing.T) {
	boom := errors.New("broken pipe")
	s := New(&fakeConn{err: boom}, auth.Identity{}, Options{})
	assert.ErrorIs(t, s.Send([]byte("x")), boom)
}

func TestAllowRateLimit(t *testing.T) {
	s := New(&fakeConn{}, auth.Identity{}, Options{RatePerSec: 1, Burst: 2})
	assert.True(t, s.Allow())
	assert.True(t, s.Allow())
	assert.False(t, s.Allow())

	unlimited := New(&fakeConn{}, auth.Identity{}, Options{})
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow())
	}
	_, received := unlimited.GetStats()
	assert.Equal(t, uint64(100), received)
}
