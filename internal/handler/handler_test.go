package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coartistry-backend/internal/auth"
	"coartistry-backend/internal/model"
	"coartistry-backend/internal/repository"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
	err   error
}

func (m *memUsers) CreateUser(_ context.Context, username, hash string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.users[username]; ok {
		return nil, repository.ErrUserExists
	}
	u := &model.User{ID: int64(len(m.users) + 1), Username: username, PasswordHash: hash}
	m.users[username] = u
	return u, nil
}

func (m *memUsers) FindUserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

type memRooms struct {
	mu    sync.Mutex
	rooms map[string]int64
	err   error
}

func (m *memRooms) CreateRoom(_ context.Context, roomID string, creatorID int64) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.rooms[roomID]; ok {
		return nil, repository.ErrRoomExists
	}
	m.rooms[roomID] = creatorID
	return &model.Room{RoomID: roomID, CreatorID: creatorID}, nil
}

func (m *memRooms) RoomExists(_ context.Context, roomID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.rooms[roomID]
	return ok, nil
}

type fixture struct {
	app   *fiber.App
	users *memUsers
	rooms *memRooms
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users: &memUsers{users: map[string]*model.User{}},
		rooms: &memRooms{rooms: map[string]int64{}},
	}
	jwtm := auth.NewJWTManager("handler-secret", time.Hour)
	gate := auth.NewGate(jwtm, auth.NewMemoryRevocationList())
	authH := NewAuthHandler(f.users, gate, jwtm, 4, nil)
	roomH := NewRoomHandler(f.rooms, nil)

	f.app = fiber.New()
	f.app.Post("/register", authH.Register)
	f.app.Post("/login", authH.Login)
	requireAuth := auth.AuthMiddleware(gate)
	f.app.Post("/logout", requireAuth, authH.Logout)
	f.app.Post("/create-room", requireAuth, roomH.CreateRoom)
	f.app.Post("/join-room", requireAuth, roomH.JoinRoom)
	return f
}

func (f *fixture) do(t *testing.T, path, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (f *fixture) login(t *testing.T, username string) string {
	t.Helper()
	creds := `{"username":"` + username + `","password":"pw"}`
	status, _ := f.do(t, "/register", "", creds)
	require.Equal(t, http.StatusCreated, status)
	status, body := f.do(t, "/login", "", creds)
	require.Equal(t, http.StatusOK, status)
	return body["token"].(string)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, "/register", "", `{"username":"alice","password":"pw"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.NotEqual(t, "pw", f.users.users["alice"].PasswordHash)

	status, _ = f.do(t, "/register", "", `{"username":"alice","password":"other"}`)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = f.do(t, "/register", "", `{"username":"  ","password":"pw"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, "/register", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	_, _ = f.do(t, "/register", "", `{"username":"alice","password":"pw"}`)

	status, body := f.do(t, "/login", "", `{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Login successful", body["message"])
	assert.Equal(t, "alice", body["username"])
	assert.NotEmpty(t, body["token"])

	status, body = f.do(t, "/login", "", `{"username":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials. Incorrect password.", body["message"])

	status, body = f.do(t, "/login", "", `{"username":"bob","password":"pw"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials. User not found.", body["message"])
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "alice")

	status, _ := f.do(t, "/create-room", token, `{"roomId":"r1"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := f.do(t, "/logout", token, ``)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Logged out successfully", body["message"])

	status, body = f.do(t, "/create-room", token, `{"roomId":"r2"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "TOKEN_REVOKED", body["code"])
}

func TestRooms(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "alice")

	status, _ := f.do(t, "/create-room", "", `{"roomId":"abc123"}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := f.do(t, "/create-room", token, `{"roomId":"abc123"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "abc123", body["roomId"])
	assert.Equal(t, int64(1), f.rooms.rooms["abc123"])

	status, _ = f.do(t, "/create-room", token, `{"roomId":"abc123"}`)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = f.do(t, "/create-room", token, `{"roomId":""}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, "/join-room", token, `{"roomId":"abc123"}`)
	assert.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, "/join-room", token, `{"roomId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStoreFailuresAre500(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "alice")
	f.rooms.err = errors.New("db down")
	f.users.err = errors.New("db down")

	status, body := f.do(t, "/join-room", token, `{"roomId":"abc123"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotEmpty(t, body["message"])

	status, _ = f.do(t, "/create-room", token, `{"roomId":"abc123"}`)
	assert.Equal(t, http.StatusInternalServerError, status)

	status, _ = f.do(t, "/login", "", `{"username":"alice","password":"pw"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestHealth(t *testing.T) {
	ok := Check{Name: "database", Ping: func(context.Context) error { return nil }}
	down := Check{Name: "redis", Ping: func(context.Context) error { return errors.New("refused") }}

	tests := []struct {
		name       string
		checks     []Check
		path       string
		wantStatus int
		wantBody   string
	}{
		{"healthy", []Check{ok}, "/health", http.StatusOK, `"status":"healthy"`},
		{"unhealthy", []Check{ok, down}, "/health", http.StatusServiceUnavailable, `"redis ping failed"`},
		{"live", []Check{down}, "/health/live", http.StatusOK, "OK"},
		{"ready", []Check{ok}, "/health/ready", http.StatusOK, "READY"},
		{"not ready", []Check{down}, "/health/ready", http.StatusServiceUnavailable, "NOT READY"},
		{"status", nil, "/", http.StatusOK, StatusText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks...)
			app := fiber.New()
			app.Get("/", h.Status)
			app.Get("/health", h.Check)
			app.Get("/health/live", h.Liveness)
			app.Get("/health/ready", h.Readiness)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, string(body), tt.wantBody)
		})
	}
}
