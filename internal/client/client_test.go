package client

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coartistry-backend/internal/auth"
	"coartistry-backend/internal/canvas"
	"coartistry-backend/internal/drawing"
	"coartistry-backend/internal/protocol"
	"coartistry-backend/internal/relay"
	"coartistry-backend/internal/room"
)

type rooms map[string]bool

func (r rooms) RoomExists(_ context.Context, id string) (bool, error) { return r[id], nil }

type relayServer struct {
	url string
	jwt *auth.JWTManager
}

func startRelay(t *testing.T, roomIDs ...string) *relayServer {
	t.Helper()
	store := rooms{}
	for _, id := range roomIDs {
		store[id] = true
	}
	jwtm := auth.NewJWTManager("client-secret", time.Hour)
	gate := auth.NewGate(jwtm, auth.NewMemoryRevocationList())
	engine := relay.NewEngine(room.NewRegistry(store, nil), nil, nil, relay.Options{MaxMessageSize: 8 << 20})

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", gate.Handshake(nil), websocket.New(engine.HandleWebSocket))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return &relayServer{url: "ws://" + ln.Addr().String() + "/ws", jwt: jwtm}
}

// peer is a running client plus channels fed by its hooks.
type peer struct {
	*Client
	joined   chan protocol.Membership
	rejected chan protocol.Notice
	changed  chan protocol.Event
}

func (s *relayServer) connect(t *testing.T, userID int64, username string) *peer {
	t.Helper()
	token, err := s.jwt.GenerateAccessToken(userID, username)
	require.NoError(t, err)

	p := &peer{
		joined:   make(chan protocol.Membership, 8),
		rejected: make(chan protocol.Notice, 8),
		changed:  make(chan protocol.Event, 32),
	}
	hooks := Hooks{
		Membership: func(event protocol.Event, m protocol.Membership) {
			if event == protocol.EventUserJoined {
				p.joined <- m
			}
		},
		Rejected: func(_ protocol.Event, n protocol.Notice) { p.rejected <- n },
		Changed:  func(event protocol.Event) { p.changed <- event },
	}

	ctx, cancel := context.WithCancel(context.Background())
	c, err := Dial(ctx, s.url, token, canvas.New(60, 40, canvas.WithoutText()), Options{Hooks: hooks})
	require.NoError(t, err)
	p.Client = c

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for relay event")
	}
	var zero T
	return zero
}

func stroke(t *testing.T, x float64) drawing.Operation {
	t.Helper()
	op, err := drawing.NewFreehand("", []drawing.Point{{X: x, Y: 5}, {X: x + 8, Y: 12}}, drawing.BrushPencil, 2, "#0000ff")
	require.NoError(t, err)
	return op
}

func TestDialRejectsBadToken(t *testing.T) {
	srv := startRelay(t)

	_, err := Dial(context.Background(), srv.url, "forged", canvas.New(10, 10, canvas.WithoutText()), Options{})

	require.ErrorIs(t, err, ErrHandshakeRejected)
	var hs *HandshakeError
	require.ErrorAs(t, err, &hs)
	assert.Equal(t, http.StatusUnauthorized, hs.Status)
}

func TestDialReceivesSession(t *testing.T) {
	srv := startRelay(t)
	alice := srv.connect(t, 1, "alice")

	assert.NotEmpty(t, alice.SocketID())
	assert.Equal(t, "alice", alice.Username())
}

func TestOperationsReachPeer(t *testing.T) {
	srv := startRelay(t, "abc123")
	alice := srv.connect(t, 1, "alice")
	bob := srv.connect(t, 2, "bob")

	require.NoError(t, alice.JoinRoom("abc123"))
	receive(t, alice.joined)
	require.NoError(t, bob.JoinRoom("abc123"))
	assert.Len(t, receive(t, bob.joined).UsersInRoom, 2)
	// bob's catch-up request is answered with alice's empty log
	assert.Equal(t, protocol.EventCanvasStateUpdate, receive(t, bob.changed))

	require.NoError(t, alice.Replica().Commit(stroke(t, 5)))
	assert.Equal(t, protocol.EventRemotePath, receive(t, bob.changed))
	assert.Equal(t, alice.Replica().Log(), bob.Replica().Log())

	require.NoError(t, alice.Replica().SetColor("#ff00ff"))
	assert.Equal(t, protocol.EventColorUpdated, receive(t, bob.changed))
	assert.Equal(t, "#ff00ff", bob.Replica().Color())

	_, err := alice.Replica().Undo()
	require.NoError(t, err)
	assert.Equal(t, protocol.EventCanvasStateUpdate, receive(t, bob.changed))
	assert.Empty(t, bob.Replica().Log())
}

func TestLateJoinerCatchesUp(t *testing.T) {
	srv := startRelay(t, "abc123")
	alice := srv.connect(t, 1, "alice")
	require.NoError(t, alice.JoinRoom("abc123"))
	receive(t, alice.joined)

	require.NoError(t, alice.Replica().Commit(stroke(t, 1)))
	require.NoError(t, alice.Replica().Commit(stroke(t, 20)))

	bob := srv.connect(t, 2, "bob")
	require.NoError(t, bob.JoinRoom("abc123"))
	receive(t, bob.joined)

	assert.Equal(t, protocol.EventCanvasStateUpdate, receive(t, bob.changed))
	assert.Equal(t, alice.Replica().Log(), bob.Replica().Log())
	assert.Equal(t, "abc123", bob.Replica().Room())
}

func TestRoomFullIsReported(t *testing.T) {
	srv := startRelay(t, "abc123")
	alice := srv.connect(t, 1, "alice")
	bob := srv.connect(t, 2, "bob")
	carol := srv.connect(t, 3, "carol")

	require.NoError(t, alice.JoinRoom("abc123"))
	receive(t, alice.joined)
	require.NoError(t, bob.JoinRoom("abc123"))
	receive(t, bob.joined)

	require.NoError(t, carol.JoinRoom("abc123"))
	assert.Equal(t, "Room is full", receive(t, carol.rejected).Message)
	assert.Empty(t, carol.Replica().Room())

	require.NoError(t, carol.JoinRoom("nowhere"))
	assert.Equal(t, "Room does not exist", receive(t, carol.rejected).Message)
}
