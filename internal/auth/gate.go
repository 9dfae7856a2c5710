package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrMissingToken         = errors.New("missing authorization token")
	ErrRevokedToken         = errors.New("token has been revoked")
)

// LocalsIdentity is the fiber.Ctx Locals key holding the resolved *Identity.
const LocalsIdentity = "identity"

// Identity 인증된 사용자 정보
type Identity struct {
	UserID    int64
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

// Gate verifies credentials at connection time. It fails closed: any problem
// with the token or with the revocation lookup rejects the connection.
type Gate struct {
	jwt     *JWTManager
	revoked RevocationList
}

// NewGate Gate 생성
func NewGate(jwt *JWTManager, revoked RevocationList) *Gate {
	return &Gate{jwt: jwt, revoked: revoked}
}

// Verify resolves token to an identity. Every error wraps
// ErrAuthenticationFailed together with the specific reason.
func (g *Gate) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, fail(ErrMissingToken)
	}

	claims, err := g.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, fail(err)
	}

	if g.revoked != nil {
		revoked, err := g.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: revocation lookup: %v", ErrAuthenticationFailed, ErrInvalidToken, err)
		}
		if revoked {
			return nil, fail(ErrRevokedToken)
		}
	}

	return &Identity{
		UserID:    claims.UserID,
		Username:  claims.Username,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke invalidates the token described by id until it would have expired.
func (g *Gate) Revoke(ctx context.Context, id *Identity) error {
	if g.revoked == nil {
		return nil
	}
	return g.revoked.Revoke(ctx, id.TokenID, id.ExpiresAt)
}

func fail(reason error) error {
	return fmt.Errorf("%w: %w", ErrAuthenticationFailed, reason)
}

// Reason returns a short machine-readable reason for a Verify error.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "missing"
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	case errors.Is(err, ErrRevokedToken):
		return "revoked"
	default:
		return "invalid"
	}
}

// TokenFromRequest extracts the bearer token from the Authorization header,
// the access_token cookie or, for WebSocket upgrades, the token query parameter.
func TokenFromRequest(c *fiber.Ctx) (string, error) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			return "", ErrInvalidToken
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if cookie := c.Cookies("access_token"); cookie != "" {
		return cookie, nil
	}
	if q := c.Query("token"); q != "" {
		return q, nil
	}
	return "", ErrMissingToken
}

// Handshake 연결 전 인증 미들웨어. Rejected requests get 401 and never reach
// the next handler.
func (g *Gate) Handshake(onReject func(c *fiber.Ctx, err error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := TokenFromRequest(c)
		var id *Identity
		if err == nil {
			id, err = g.Verify(c.UserContext(), token)
		} else {
			err = fail(err)
		}
		if err != nil {
			if onReject != nil {
				onReject(c, err)
			}
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		c.Locals(LocalsIdentity, id)
		return c.Next()
	}
}

// IdentityFrom returns the identity stored by Handshake or AuthMiddleware.
func IdentityFrom(c *fiber.Ctx) (*Identity, bool) {
	id, ok := c.Locals(LocalsIdentity).(*Identity)
	return id, ok && id != nil
}
