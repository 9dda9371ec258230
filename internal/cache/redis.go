package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotReady is returned by Remote operations attempted before the
// initial connection handshake completes; reads and writes during that
// window fail closed rather than blocking.
var ErrNotReady = errors.New("cache: remote backend not ready")

// remoteRecord is the wire shape stored for every key. Status and TTL
// travel alongside the body so a foreign process (or a restarted
// instance) can recompute freshness without renegotiating schema.
type remoteRecord struct {
	Body       []byte    `json:"body"`
	Status     int       `json:"status"`
	RenderedAt time.Time `json:"rendered_at"`
	TTLNanos   int64     `json:"ttl_nanos"`
}

func (r remoteRecord) toSnapshot() Snapshot {
	return Snapshot{
		Body:       r.Body,
		Status:     r.Status,
		RenderedAt: r.RenderedAt,
		TTL:        time.Duration(r.TTLNanos),
	}
}

// Remote is a redis-backed Cache implementation.
type Remote struct {
	client    *redis.Client
	keyPrefix string
	retention time.Duration

	ready int32 // atomic bool, set once the startup ping succeeds

	hits   int64
	misses int64
}

// RemoteConfig mirrors the remote-cache environment knobs.
type RemoteConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// Retention is the logical TTL that Set records in each snapshot
	// (one hour when zero or negative). Physical expiry in redis is
	// Retention*retentionFactor, as with Local, so a stale snapshot
	// survives long enough for one background refill.
	Retention time.Duration
}

// NewRemote dials redis in the background and becomes ready once the
// first PING succeeds; construction itself never blocks on the network.
func NewRemote(cfg RemoteConfig) *Remote {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "seoshield:"
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = time.Hour
	}

	r := &Remote{client: client, keyPrefix: prefix, retention: retention}
	go r.connectLoop()
	return r
}

// connectLoop pings with bounded exponential backoff until the backend
// is reachable, then marks Remote ready and returns. It does not ping
// again afterwards, and ready is never cleared once set.
func (r *Remote) connectLoop() {
	backoff := 500 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := r.client.Ping(ctx).Err()
		cancel()
		if err == nil {
			atomic.StoreInt32(&r.ready, 1)
			return
		}

		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (r *Remote) isReady() bool {
	return atomic.LoadInt32(&r.ready) == 1
}

func (r *Remote) fullKey(key string) string {
	return r.keyPrefix + key
}

func (r *Remote) Get(key string) (Snapshot, bool) {
	snap, _, ok := r.GetWithFreshness(key)
	return snap, ok
}

// GetCtx is the error-reporting surface for callers that hold a *Remote
// directly: unlike the Cache contract's Get, it distinguishes a miss
// from a backend that is still connecting (ErrNotReady) or unreachable.
func (r *Remote) GetCtx(ctx context.Context, key string) (Snapshot, error) {
	if !r.isReady() {
		return Snapshot{}, ErrNotReady
	}

	raw, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		return Snapshot{}, fmt.Errorf("cache: remote get %q: %w", key, err)
	}

	var rec remoteRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Snapshot{}, fmt.Errorf("cache: remote get %q: decode: %w", key, err)
	}
	return rec.toSnapshot(), nil
}

// SetCtx stores body/status under key with an explicit logical TTL,
// reporting backend errors instead of swallowing them.
func (r *Remote) SetCtx(ctx context.Context, key string, body []byte, status int, ttl time.Duration) error {
	if !validBody(body) {
		return fmt.Errorf("cache: remote set %q: body rejected", key)
	}
	if !r.isReady() {
		return ErrNotReady
	}

	rec := remoteRecord{Body: body, Status: status, RenderedAt: time.Now(), TTLNanos: int64(ttl)}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache: remote set %q: encode: %w", key, err)
	}

	physical := time.Duration(float64(ttl) * retentionFactor)
	if physical <= 0 {
		physical = r.retention
	}
	if err := r.client.Set(ctx, r.fullKey(key), raw, physical).Err(); err != nil {
		return fmt.Errorf("cache: remote set %q: %w", key, err)
	}
	return nil
}

func (r *Remote) GetWithFreshness(key string) (Snapshot, bool, bool) {
	if !r.isReady() {
		atomic.AddInt64(&r.misses, 1)
		return Snapshot{}, false, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		atomic.AddInt64(&r.misses, 1)
		return Snapshot{}, false, false
	}

	var rec remoteRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		atomic.AddInt64(&r.misses, 1)
		return Snapshot{}, false, false
	}

	atomic.AddInt64(&r.hits, 1)
	snap := rec.toSnapshot()
	isStale := snap.freshness(time.Now()) != Fresh
	return snap, isStale, true
}

func (r *Remote) Set(key string, body []byte, status int) bool {
	if !validBody(body) {
		return false
	}
	if !r.isReady() {
		return false
	}

	ttl := r.retention // logical TTL is carried inside the record; physical
	// expiry in redis is ttl*retentionFactor so stale reads remain possible.
	return r.set(key, body, status, time.Now(), ttl)
}

// SetWithTTL is for callers that know the configured logical TTL and
// want it recorded in the snapshot rather than defaulting to Remote's
// retention window.
func (r *Remote) SetWithTTL(key string, body []byte, status int, ttl time.Duration) bool {
	if !validBody(body) {
		return false
	}
	if !r.isReady() {
		return false
	}
	return r.set(key, body, status, time.Now(), ttl)
}

func (r *Remote) set(key string, body []byte, status int, renderedAt time.Time, ttl time.Duration) bool {
	rec := remoteRecord{Body: body, Status: status, RenderedAt: renderedAt, TTLNanos: int64(ttl)}
	raw, err := json.Marshal(rec)
	if err != nil {
		return false
	}

	physical := time.Duration(float64(ttl) * retentionFactor)
	if physical <= 0 {
		physical = r.retention
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.client.Set(ctx, r.fullKey(key), raw, physical).Err() == nil
}

func (r *Remote) Delete(key string) int {
	if !r.isReady() {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := r.client.Del(ctx, r.fullKey(key)).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

func (r *Remote) Flush() {
	if !r.isReady() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		r.client.Del(ctx, keys...)
	}
}

func (r *Remote) Keys() []string {
	if !r.isReady() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(r.keyPrefix):])
	}
	return keys
}

func (r *Remote) Entries() []Entry {
	if !r.isReady() {
		return nil
	}
	keys := r.Keys()
	out := make([]Entry, 0, len(keys))
	now := time.Now()
	for _, k := range keys {
		snap, _, ok := r.GetWithFreshness(k)
		if !ok {
			continue
		}
		remaining := snap.TTL - now.Sub(snap.RenderedAt)
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, Entry{Key: k, Size: len(snap.Body), TTLRemaining: remaining})
	}
	return out
}

func (r *Remote) Stats() Stats {
	keys := r.Keys()
	var bytes int64
	for _, k := range keys {
		if snap, ok := r.Get(k); ok {
			bytes += int64(len(snap.Body))
		}
	}
	return Stats{
		Hits:   atomic.LoadInt64(&r.hits),
		Misses: atomic.LoadInt64(&r.misses),
		Keys:   len(keys),
		Bytes:  bytes,
	}
}

func (r *Remote) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("cache: closing remote backend: %w", err)
	}
	return nil
}

var _ Cache = (*Remote)(nil)
