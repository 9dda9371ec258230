package cache

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// nodeID identifies this process for refill-lock ownership, so a
// multi-instance deployment never runs the same background refill twice.
var nodeID = os.Getenv("HOSTNAME")

func init() {
	if nodeID == "" {
		nodeID = "single-node"
	}
}

// RefillLock is a distributed mutual-exclusion contract so only one
// instance refills a given fingerprint's stale snapshot at a time.
type RefillLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type lockEntry struct {
	owner   string
	expires time.Time
}

// MemoryLock is an in-process RefillLock. It is sufficient for a
// single-instance deployment; a multi-instance deployment should back
// RefillLock with a shared store instead (redis SETNX, etc.).
type MemoryLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewMemoryLock constructs an empty lock table.
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{locks: make(map[string]*lockEntry)}
}

func (l *MemoryLock) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if existing, ok := l.locks[key]; ok && now.Before(existing.expires) {
		return false, nil
	}
	l.locks[key] = &lockEntry{owner: nodeID, expires: now.Add(ttl)}
	return true, nil
}

func (l *MemoryLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.locks[key]; ok && existing.owner == nodeID {
		delete(l.locks, key)
	}
	return nil
}

// WithLock runs fn while holding key. If another node already holds
// the lock, WithLock is a no-op (that node is handling the refill).
func WithLock(ctx context.Context, lock RefillLock, key string, ttl time.Duration, fn func() error) error {
	acquired, err := lock.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer lock.Release(ctx, key)
	return fn()
}

var _ RefillLock = (*MemoryLock)(nil)

// RefillFunc re-renders and re-stores the snapshot for a cache key. It
// is supplied by the scheduler so this package stays free of a direct
// dependency on the renderer.
type RefillFunc func(ctx context.Context, key string) error

// Sweeper periodically scans a Cache for stale entries and triggers a
// background RefillFunc for each, single-flighted by a RefillLock so
// concurrent sweep ticks (or instances sharing a remote backend) never
// double-refill the same key.
type Sweeper struct {
	cache   Cache
	lock    RefillLock
	refill  RefillFunc
	lockTTL time.Duration

	cron *cron.Cron
}

// NewSweeper wires a cache, a refill lock, and a refill callback. The
// sweep interval itself is supplied to Start.
func NewSweeper(c Cache, lock RefillLock, refill RefillFunc) *Sweeper {
	return &Sweeper{
		cache:   c,
		lock:    lock,
		refill:  refill,
		lockTTL: 30 * time.Second,
		cron:    cron.New(),
	}
}

// Start schedules the sweep on a standard cron spec (e.g. "@every 30s")
// and begins running it. It returns an error only if spec fails to parse.
func (s *Sweeper) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, s.sweepOnce)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron scheduler, waiting for any in-flight sweep tick
// to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// sweepOnce walks every live key and kicks off a refill for each one
// the cache currently reports as stale.
func (s *Sweeper) sweepOnce() {
	for _, key := range s.cache.Keys() {
		_, isStale, ok := s.cache.GetWithFreshness(key)
		if !ok || !isStale {
			continue
		}

		key := key
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			_ = WithLock(ctx, s.lock, key, s.lockTTL, func() error {
				return s.refill(ctx, key)
			})
		}()
	}
}
