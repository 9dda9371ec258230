package router

import (
	"encoding/json"
	"net/http"
	"time"
)

// healthResponse is /shieldhealth's JSON body: status, service, target,
// and timestamp, plus a point-in-time snapshot of the queue and cache
// stats so an operator or uptime check can see pipeline health without
// scraping Prometheus.
type healthResponse struct {
	Status       string    `json:"status"`
	Service      string    `json:"service"`
	Target       string    `json:"target"`
	Timestamp    time.Time `json:"timestamp"`
	UptimeS      int64     `json:"uptime_seconds"`
	BreakerState string    `json:"breaker_state,omitempty"`

	Queue struct {
		Queued         int64 `json:"queued"`
		Processing     int64 `json:"processing"`
		Completed      int64 `json:"completed"`
		Errors         int64 `json:"errors"`
		MaxConcurrency int   `json:"max_concurrency"`
	} `json:"queue"`

	Cache struct {
		Hits   int64 `json:"hits"`
		Misses int64 `json:"misses"`
		Keys   int   `json:"keys"`
		Bytes  int64 `json:"bytes"`
	} `json:"cache"`

	EventsDropped int64 `json:"events_dropped"`
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Service:   "seo-shield-proxy",
		Target:    r.deps.Config.Target.String(),
		Timestamp: time.Now(),
		UptimeS:   int64(time.Since(r.startedAt).Seconds()),
	}
	if r.deps.BreakerState != nil {
		resp.BreakerState = r.deps.BreakerState()
	}

	qm := r.deps.Scheduler.Metrics()
	resp.Queue.Queued = qm.Queued
	resp.Queue.Processing = qm.Processing
	resp.Queue.Completed = qm.Completed
	resp.Queue.Errors = qm.Errors
	resp.Queue.MaxConcurrency = qm.MaxConcurrency

	cs := r.deps.Cache.Stats()
	resp.Cache.Hits = cs.Hits
	resp.Cache.Misses = cs.Misses
	resp.Cache.Keys = cs.Keys
	resp.Cache.Bytes = cs.Bytes

	resp.EventsDropped = r.deps.Hooks.Dropped()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
