package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type brokenList struct{}

func (brokenList) Revoke(context.Context, string, time.Time) error { return errors.New("down") }
func (brokenList) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("down")
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager(secret, time.Hour)
	token, err := m.GenerateAccessToken(7, "alice")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "7", claims.Subject)
	assert.NotEmpty(t, claims.ID)

	other, _ := m.GenerateAccessToken(7, "alice")
	otherClaims, _ := m.ValidateAccessToken(other)
	assert.NotEqual(t, claims.ID, otherClaims.ID, "token ids are unique")
}

func TestJWTRejects(t *testing.T) {
	m := NewJWTManager(secret, time.Hour)
	token, _ := m.GenerateAccessToken(1, "bob")

	_, err := NewJWTManager("other", time.Hour).ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateAccessToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewJWTManager(secret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.GenerateAccessToken(1, "bob")
	_, err = m.ValidateAccessToken(old)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestGateVerify(t *testing.T) {
	ctx := context.Background()
	m := NewJWTManager(secret, time.Hour)
	list := NewMemoryRevocationList()
	g := NewGate(m, list)

	token, _ := m.GenerateAccessToken(3, "carol")
	id, err := g.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "carol", id.Username)
	assert.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, time.Minute)

	_, err = g.Verify(ctx, "")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Equal(t, "missing", Reason(err))

	require.NoError(t, g.Revoke(ctx, id))
	_, err = g.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.ErrorIs(t, err, ErrRevokedToken)
	assert.Equal(t, "revoked", Reason(err))

	fresh, _ := m.GenerateAccessToken(3, "carol")
	_, err = g.Verify(ctx, fresh)
	assert.NoError(t, err, "revoking one token leaves others valid")
}

func TestGateFailsClosedOnLookupError(t *testing.T) {
	m := NewJWTManager(secret, time.Hour)
	token, _ := m.GenerateAccessToken(1, "dave")

	_, err := NewGate(m, brokenList{}).Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestMemoryRevocationListExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l := NewMemoryRevocationList()
	l.now = func() time.Time { return now }

	require.NoError(t, l.Revoke(ctx, "a", now.Add(time.Minute)))
	require.NoError(t, l.Revoke(ctx, "past", now.Add(-time.Minute)))
	revoked, _ := l.IsRevoked(ctx, "a")
	assert.True(t, revoked)
	assert.Equal(t, 1, l.Len())

	now = now.Add(2 * time.Minute)
	revoked, _ = l.IsRevoked(ctx, "a")
	assert.False(t, revoked)

	require.NoError(t, l.Revoke(ctx, "b", now.Add(time.Minute)))
	assert.Equal(t, 1, l.Len(), "expired entries are pruned")
}

func newGateApp(g *Gate) *fiber.App {
	app := fiber.New()
	app.Get("/ws", g.Handshake(nil), func(c *fiber.Ctx) error {
		id, ok := IdentityFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(id.Username)
	})
	app.Post("/private", AuthMiddleware(g), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("username").(string))
	})
	return app
}

func TestHandshake(t *testing.T) {
	m := NewJWTManager(secret, time.Hour)
	g := NewGate(m, NewMemoryRevocationList())
	app := newGateApp(g)
	token, _ := m.GenerateAccessToken(5, "erin")

	tests := []struct {
		name  string
		setup func(r *http.Request)
		code  int
	}{
		{"no token", func(*http.Request) {}, fiber.StatusUnauthorized},
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, fiber.StatusOK},
		{"bad header", func(r *http.Request) { r.Header.Set("Authorization", "Token "+token) }, fiber.StatusUnauthorized},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: token}) }, fiber.StatusOK},
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=" + token }, fiber.StatusOK},
		{"forged", func(r *http.Request) { r.URL.RawQuery = "token=abc.def.ghi" }, fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			tt.setup(req)
			req.RequestURI = req.URL.RequestURI()
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)
			if tt.code == fiber.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, "erin", string(body))
			}
		})
	}
}

func TestAuthMiddlewareRejectsRevoked(t *testing.T) {
	m := NewJWTManager(secret, time.Hour)
	g := NewGate(m, NewMemoryRevocationList())
	app := newGateApp(g)
	token, _ := m.GenerateAccessToken(5, "erin")

	req := httptest.NewRequest(http.MethodPost, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	id, _ := g.Verify(context.Background(), token)
	require.NoError(t, g.Revoke(context.Background(), id))

	req = httptest.NewRequest(http.MethodPost, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "TOKEN_REVOKED")
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))

	_, err = HashPassword(string(make([]byte, 73)), 4)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
