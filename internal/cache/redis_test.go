package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a live server: REDIS_ADDR=localhost:6379 go test ./internal/cache
func TestRevocationAgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c, err := NewRedisClient(addr, os.Getenv("REDIS_PASSWORD"), 0, nil)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Health(ctx))

	id := uuid.NewString()
	revoked, err := c.IsRevoked(ctx, id)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, c.Revoke(ctx, id, time.Now().Add(time.Minute)))
	revoked, err = c.IsRevoked(ctx, id)
	require.NoError(t, err)
	assert.True(t, revoked)

	past := uuid.NewString()
	require.NoError(t, c.Revoke(ctx, past, time.Now().Add(-time.Minute)))
	revoked, _ = c.IsRevoked(ctx, past)
	assert.False(t, revoked)
}
