// Package observability provides non-blocking traffic/render event
// emission to pluggable sinks, plus the Prometheus metrics the rest of
// the pipeline updates inline.
package observability

import "time"

// Event is a tagged variant rather than an untyped map: every
// concrete event type below is a distinct Go type
// implementing this marker interface, so a Sink can type-switch on the
// real payload instead of probing map keys.
type Event interface {
	Kind() string
	At() time.Time
}

type base struct {
	Timestamp time.Time
}

func (b base) At() time.Time { return b.Timestamp }

// RequestEvent records one inbound HTTP request's disposition.
type RequestEvent struct {
	base
	Method      string
	Path        string
	RemoteAddr  string
	Status      int
	Duration    time.Duration
	CacheStatus string // HIT | MISS | STALE | ""
	BotType     string
	IsBot       bool
}

func (RequestEvent) Kind() string { return "request" }

// NewRequestEvent builds a RequestEvent stamped at construction time.
func NewRequestEvent(method, path, remoteAddr string, status int, d time.Duration, cacheStatus, botType string, isBot bool) RequestEvent {
	return RequestEvent{
		base:        base{Timestamp: time.Now()},
		Method:      method,
		Path:        path,
		RemoteAddr:  remoteAddr,
		Status:      status,
		Duration:    d,
		CacheStatus: cacheStatus,
		BotType:     botType,
		IsBot:       isBot,
	}
}

// RenderEvent records one render job's outcome.
type RenderEvent struct {
	base
	URL        string
	DurationMS int64
	Status     int
	Blocked    int
	Allowed    int
	Err        string // empty on success
}

func (RenderEvent) Kind() string { return "render" }

// NewRenderEvent builds a RenderEvent. err is rendered to its message,
// or empty on success, so the event stays plain-data and
// JSON-serializable.
func NewRenderEvent(url string, durationMS int64, status, blocked, allowed int, err error) RenderEvent {
	e := RenderEvent{
		base:       base{Timestamp: time.Now()},
		URL:        url,
		DurationMS: durationMS,
		Status:     status,
		Blocked:    blocked,
		Allowed:    allowed,
	}
	if err != nil {
		e.Err = err.Error()
	}
	return e
}

// SecurityEvent records a blocked, rate-limited, or flagged request.
type SecurityEvent struct {
	base
	RemoteAddr string
	Reason     string
	Action     string
}

func (SecurityEvent) Kind() string { return "security" }

// NewSecurityEvent builds a SecurityEvent.
func NewSecurityEvent(remoteAddr, reason, action string) SecurityEvent {
	return SecurityEvent{base: base{Timestamp: time.Now()}, RemoteAddr: remoteAddr, Reason: reason, Action: action}
}

// CacheEvent records one cache lookup's outcome.
type CacheEvent struct {
	base
	Key   string
	Hit   bool
	Stale bool
}

func (CacheEvent) Kind() string { return "cache" }

// NewCacheEvent builds a CacheEvent.
func NewCacheEvent(key string, hit, stale bool) CacheEvent {
	return CacheEvent{base: base{Timestamp: time.Now()}, Key: key, Hit: hit, Stale: stale}
}
