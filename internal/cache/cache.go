// Package cache is a uniform snapshot store with TTL,
// stale-while-revalidate metadata, and stats, behind one contract with
// interchangeable local and remote backends.
package cache

import "time"

// MaxBodySize caps stored bodies; anything over 10 MiB is rejected.
const MaxBodySize = 10 * 1024 * 1024

// freshRatio is the freshness boundary: a snapshot is fresh while
// now < renderTimestamp + freshRatio*TTL, stale until TTL elapses.
const freshRatio = 0.8

// Snapshot is one cached render: body, observed status, and the
// timestamps freshness is computed from.
type Snapshot struct {
	Body       []byte
	Status     int
	RenderedAt time.Time
	TTL        time.Duration
}

// Freshness classifies a Snapshot against the wall clock.
type Freshness int

const (
	Fresh Freshness = iota
	Stale
	Expired
)

// freshness computes the Freshness of a snapshot at time now.
func (s Snapshot) freshness(now time.Time) Freshness {
	age := now.Sub(s.RenderedAt)
	switch {
	case age < time.Duration(float64(s.TTL)*freshRatio):
		return Fresh
	case age < s.TTL:
		return Stale
	default:
		return Expired
	}
}

// Entry is one row of Entries(), for diagnostics/admin listing.
type Entry struct {
	Key          string
	Size         int
	TTLRemaining time.Duration
}

// Stats are adapter-wide counters, readable without blocking writers.
type Stats struct {
	Hits   int64
	Misses int64
	Keys   int
	Bytes  int64
}

// Cache is the uniform contract both backends satisfy.
type Cache interface {
	// Get returns the snapshot for key if it exists and has not fully
	// expired past the SWR grace window.
	Get(key string) (Snapshot, bool)
	// GetWithFreshness additionally reports whether the snapshot is
	// stale (past 0.8*TTL). Snapshots past TTL that are still within the
	// retention grace window are also returned, with isStale true.
	GetWithFreshness(key string) (snap Snapshot, isStale bool, ok bool)
	// Set stores body/status under key. Returns false (and leaves any
	// existing entry untouched) when body is empty or exceeds
	// MaxBodySize.
	Set(key string, body []byte, status int) bool
	// Delete removes key, returning the number of entries removed (0 or 1).
	Delete(key string) int
	// Flush empties the cache.
	Flush()
	// Keys lists all live keys.
	Keys() []string
	// Entries lists size/TTL diagnostics for all live keys.
	Entries() []Entry
	// Stats returns a snapshot of hit/miss/key/byte counters.
	Stats() Stats
	// Close releases backend resources (connections, goroutines).
	Close() error
}

// validBody reports whether body may be stored: non-empty and within
// the size cap.
func validBody(body []byte) bool {
	return len(body) > 0 && len(body) <= MaxBodySize
}
