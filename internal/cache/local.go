package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// maxLocalEntries is the Local backend's cap; overflow evicts the
// oldest-inserted entry first.
const maxLocalEntries = 1000

// retentionFactor extends physical retention beyond TTL so a snapshot
// remains visible via GetWithFreshness (as stale) long enough for one
// background refill to land. The expiry sweep only deletes an entry
// once its age exceeds TTL*retentionFactor; overflow eviction, Delete
// and Flush remove entries regardless of age.
const retentionFactor = 2.0

type localEntry struct {
	snap     Snapshot
	inserted time.Time // insertion order, for oldest-first eviction
}

// Local is a single-process, map-backed Cache implementation.
type Local struct {
	mu      sync.RWMutex
	entries map[string]*localEntry
	order   []string // insertion order for eviction
	ttl     time.Duration

	hits   int64
	misses int64

	stopSweep chan struct{}
}

// NewLocal constructs an empty Local cache using ttl for every Set call
// and starts its background expiry sweep.
func NewLocal(ttl time.Duration) *Local {
	l := &Local{
		entries:   make(map[string]*localEntry),
		ttl:       ttl,
		stopSweep: make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

func (l *Local) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopSweep:
			return
		case <-ticker.C:
			l.evictFullyExpired(time.Now())
		}
	}
}

func (l *Local) evictFullyExpired(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if now.Sub(e.snap.RenderedAt) > time.Duration(float64(e.snap.TTL)*retentionFactor) {
			delete(l.entries, k)
			l.removeFromOrder(k)
		}
	}
}

// removeFromOrder must be called with l.mu held.
func (l *Local) removeFromOrder(key string) {
	for i, k := range l.order {
		if k == key {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}

func (l *Local) Get(key string) (Snapshot, bool) {
	snap, _, ok := l.GetWithFreshness(key)
	return snap, ok
}

func (l *Local) GetWithFreshness(key string) (Snapshot, bool, bool) {
	l.mu.RLock()
	e, ok := l.entries[key]
	l.mu.RUnlock()

	if !ok {
		atomic.AddInt64(&l.misses, 1)
		return Snapshot{}, false, false
	}

	now := time.Now()
	if now.Sub(e.snap.RenderedAt) > time.Duration(float64(e.snap.TTL)*retentionFactor) {
		atomic.AddInt64(&l.misses, 1)
		return Snapshot{}, false, false
	}

	atomic.AddInt64(&l.hits, 1)
	isStale := e.snap.freshness(now) != Fresh
	return e.snap, isStale, true
}

func (l *Local) Set(key string, body []byte, status int) bool {
	if !validBody(body) {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{Body: body, Status: status, RenderedAt: time.Now(), TTL: l.ttl}
	if _, exists := l.entries[key]; !exists {
		if len(l.entries) >= maxLocalEntries {
			l.evictOldestLocked()
		}
		l.order = append(l.order, key)
	}
	l.entries[key] = &localEntry{snap: snap, inserted: time.Now()}
	return true
}

// evictOldestLocked removes the single oldest-inserted entry. Caller
// must hold l.mu.
func (l *Local) evictOldestLocked() {
	if len(l.order) == 0 {
		return
	}
	oldest := l.order[0]
	l.order = l.order[1:]
	delete(l.entries, oldest)
}

func (l *Local) Delete(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[key]; !ok {
		return 0
	}
	delete(l.entries, key)
	l.removeFromOrder(key)
	return 1
}

func (l *Local) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*localEntry)
	l.order = nil
}

func (l *Local) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	return keys
}

func (l *Local) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := time.Now()
	out := make([]Entry, 0, len(l.entries))
	for k, e := range l.entries {
		remaining := e.snap.TTL - now.Sub(e.snap.RenderedAt)
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, Entry{Key: k, Size: len(e.snap.Body), TTLRemaining: remaining})
	}
	return out
}

func (l *Local) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var bytes int64
	for _, e := range l.entries {
		bytes += int64(len(e.snap.Body))
	}
	return Stats{
		Hits:   atomic.LoadInt64(&l.hits),
		Misses: atomic.LoadInt64(&l.misses),
		Keys:   len(l.entries),
		Bytes:  bytes,
	}
}

func (l *Local) Close() error {
	close(l.stopSweep)
	return nil
}

var _ Cache = (*Local)(nil)
