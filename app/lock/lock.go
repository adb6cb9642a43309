package lock

import (
	"context"
	"time"
)

// Locker grants short-lived exclusive ownership of a logical key.
//
// TryAcquire never blocks or queues: it returns ok=false immediately when the
// key is held elsewhere. The TTL bounds how long a crashed holder can keep a
// key; it must exceed the worst-case critical-section duration so an expired
// lock always means the holder is gone.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}
