package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coartistry-backend/internal/config"
	"coartistry-backend/internal/handler"
	"coartistry-backend/internal/model"
	"coartistry-backend/internal/repository"
)

type stubUsers struct{}

func (stubUsers) CreateUser(context.Context, string, string) (*model.User, error) {
	return nil, repository.ErrUserExists
}

func (stubUsers) FindUserByUsername(context.Context, string) (*model.User, error) {
	return nil, repository.ErrUserNotFound
}

type stubRooms struct{}

func (stubRooms) CreateRoom(_ context.Context, id string, creator int64) (*model.Room, error) {
	return &model.Room{RoomID: id, CreatorID: creator}, nil
}

func (stubRooms) RoomExists(context.Context, string) (bool, error) { return true, nil }

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: ":0", BodyLimit: 1 << 20},
		WebSocket: config.WebSocketConfig{ReadBufferSize: 1024, WriteBufferSize: 1024, HandshakeTimeout: time.Second},
		CORS:      config.CORSConfig{AllowOrigins: "http://localhost:3000", AllowHeaders: "Authorization"},
		Auth: config.AuthConfig{
			JWTSecret:         "server-secret",
			AccessTokenExpiry: time.Hour,
			BcryptCost:        4,
			LoginRateLimit:    2,
			LoginRateWindow:   time.Minute,
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := New(testConfig(), Deps{
		Users:  stubUsers{},
		Rooms:  stubRooms{},
		Checks: []handler.Check{{Name: "database", Ping: func(context.Context) error { return nil }}},
	}, nil)
	s.SetupMiddleware()
	s.SetupRoutes()
	return s
}

func get(t *testing.T, s *Server, req *http.Request) (int, string) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestStatusAndHealth(t *testing.T) {
	s := newTestServer(t)

	status, body := get(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, handler.StatusText, body)

	status, _ = get(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, status)

	status, body = get(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "coartistry_ws_connections")
}

func TestWebSocketRouteNeedsUpgradeAndToken(t *testing.T) {
	s := newTestServer(t)

	status, _ := get(t, s, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUpgradeRequired, status)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	status, _ = get(t, s, req)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.HandshakeFails.WithLabelValues("missing")))
	assert.Zero(t, s.Registry().Stats().Sessions)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	s := newTestServer(t)
	body := `{"username":"alice","password":"pw"}`

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		last, _ = get(t, s, req)
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/logout", "/create-room", "/join-room"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"roomId":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		status, _ := get(t, s, req)
		assert.Equal(t, http.StatusUnauthorized, status, path)
	}
}
