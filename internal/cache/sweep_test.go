package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryLockMutualExclusion(t *testing.T) {
	lock := NewMemoryLock()
	ctx := context.Background()

	ok1, err := lock.Acquire(ctx, "k", time.Minute)
	if err != nil || !ok1 {
		t.Fatalf("first Acquire = %v, %v", ok1, err)
	}

	ok2, err := lock.Acquire(ctx, "k", time.Minute)
	if err != nil || ok2 {
		t.Fatalf("second Acquire = %v, %v, want false", ok2, err)
	}

	if err := lock.Release(ctx, "k"); err != nil {
		t.Fatalf("Release: %v", err)
	}

	ok3, err := lock.Acquire(ctx, "k", time.Minute)
	if err != nil || !ok3 {
		t.Fatalf("Acquire after Release = %v, %v", ok3, err)
	}
}

func TestMemoryLockExpiresOnTTL(t *testing.T) {
	lock := NewMemoryLock()
	ctx := context.Background()

	if ok, _ := lock.Acquire(ctx, "k", 10*time.Millisecond); !ok {
		t.Fatal("first Acquire should succeed")
	}

	time.Sleep(20 * time.Millisecond)

	if ok, _ := lock.Acquire(ctx, "k", time.Minute); !ok {
		t.Error("Acquire after TTL expiry should succeed")
	}
}

func TestWithLockSkipsWhenAlreadyHeld(t *testing.T) {
	lock := NewMemoryLock()
	ctx := context.Background()
	lock.Acquire(ctx, "k", time.Minute)

	var ran int32
	err := WithLock(ctx, lock, "k", time.Minute, func() error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if atomic.LoadInt32(&ran) != 0 {
		t.Error("fn should not have run while lock was held elsewhere")
	}
}

func TestWithLockRunsAndReleases(t *testing.T) {
	lock := NewMemoryLock()
	ctx := context.Background()

	var ran int32
	err := WithLock(ctx, lock, "k", time.Minute, func() error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Error("fn should have run")
	}

	ok, _ := lock.Acquire(ctx, "k", time.Minute)
	if !ok {
		t.Error("lock should be released after WithLock returns")
	}
}

func TestSweeperRefillsStaleKeysOnly(t *testing.T) {
	c := NewLocal(50 * time.Millisecond)
	defer c.Close()
	c.Set("fresh", []byte("v"), 200)

	var refilled int32
	refill := func(_ context.Context, key string) error {
		atomic.AddInt32(&refilled, 1)
		return nil
	}

	s := NewSweeper(c, NewMemoryLock(), refill)
	s.sweepOnce()
	if atomic.LoadInt32(&refilled) != 0 {
		t.Error("fresh key should not be refilled")
	}

	time.Sleep(45 * time.Millisecond) // past 0.8*50ms freshness boundary
	s.sweepOnce()
	time.Sleep(10 * time.Millisecond) // let the sweep's goroutine run
	if atomic.LoadInt32(&refilled) != 1 {
		t.Errorf("refilled = %d, want 1 once stale", refilled)
	}
}
