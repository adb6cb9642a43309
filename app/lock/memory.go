package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is the single-node backend used by tests and local
// deployments without Redis. Semantics match RedisLocker, including TTL
// expiry and token-checked release.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, held := l.entries[key]; held && entry.expiresAt.After(now) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.entries[key] = memoryEntry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, held := l.entries[key]; held && entry.token == token {
		delete(l.entries, key)
	}
	return nil
}
