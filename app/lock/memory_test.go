package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTryAcquireSecondCallerFailsFast(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	token, ok, err := locker.TryAcquire(ctx, "sub-1:creator-1:month", 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("first acquire failed: ok=%v err=%v", ok, err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	start := time.Now()
	_, ok, err = locker.TryAcquire(ctx, "sub-1:creator-1:month", 30*time.Second)
	if err != nil {
		t.Fatalf("second acquire errored: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire before TTL expiry to fail")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("second acquire must not block")
	}
}

func TestTryAcquireDifferentKeysIndependent(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	if _, ok, _ := locker.TryAcquire(ctx, "sub-1:creator-1:month", time.Minute); !ok {
		t.Fatal("expected acquire on first key")
	}
	if _, ok, _ := locker.TryAcquire(ctx, "sub-1:creator-2:month", time.Minute); !ok {
		t.Fatal("expected acquire on unrelated key")
	}
}

func TestExpiredLockCanBeReacquired(t *testing.T) {
	locker := NewMemoryLocker()
	current := time.Now()
	locker.now = func() time.Time { return current }
	ctx := context.Background()

	if _, ok, _ := locker.TryAcquire(ctx, "key", 30*time.Second); !ok {
		t.Fatal("expected initial acquire")
	}

	current = current.Add(31 * time.Second)
	if _, ok, _ := locker.TryAcquire(ctx, "key", 30*time.Second); !ok {
		t.Fatal("expected acquire after TTL expiry")
	}
}

func TestReleaseRequiresMatchingToken(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	token, ok, _ := locker.TryAcquire(ctx, "key", time.Minute)
	if !ok {
		t.Fatal("expected acquire")
	}

	if err := locker.Release(ctx, "key", "stale-token"); err != nil {
		t.Fatalf("release with stale token errored: %v", err)
	}
	if _, ok, _ := locker.TryAcquire(ctx, "key", time.Minute); ok {
		t.Fatal("stale-token release must not free the lock")
	}

	if err := locker.Release(ctx, "key", token); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, ok, _ := locker.TryAcquire(ctx, "key", time.Minute); !ok {
		t.Fatal("expected acquire after owner release")
	}
}

func TestConcurrentAcquireGrantsExactlyOne(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	granted := make(chan string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if token, ok, _ := locker.TryAcquire(ctx, "contended", time.Minute); ok {
				granted <- token
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one grant, got %d", count)
	}
}
