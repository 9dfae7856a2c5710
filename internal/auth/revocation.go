package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationList remembers tokens that were logged out before they expired.
// Entries only need to live until the token's own expiry.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevocationList is a process-local RevocationList used when Redis is
// not configured. Revocations are lost on restart.
type MemoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationList 메모리 기반 폐기 목록 생성
func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke marks tokenID revoked until the given time. Expired entries are
// pruned on each call.
func (l *MemoryRevocationList) Revoke(_ context.Context, tokenID string, until time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, exp := range l.entries {
		if !exp.After(now) {
			delete(l.entries, id)
		}
	}
	if until.After(now) {
		l.entries[tokenID] = until
	}
	return nil
}

// IsRevoked reports whether tokenID is currently revoked.
func (l *MemoryRevocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.entries[tokenID]
	return ok && exp.After(l.now()), nil
}

// Len returns the number of live entries.
func (l *MemoryRevocationList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}
