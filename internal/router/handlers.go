package router

import (
	"net/http"
	"time"

	"github.com/seoshield/seo-shield-proxy/internal/botclassifier"
	"github.com/seoshield/seo-shield-proxy/internal/cache"
	"github.com/seoshield/seo-shield-proxy/internal/fingerprint"
	"github.com/seoshield/seo-shield-proxy/internal/observability"
	"github.com/seoshield/seo-shield-proxy/internal/scheduler"
)

// statusWriter wraps an http.ResponseWriter to capture the status code
// written by a downstream handler (the proxy, mainly) for access
// logging, without buffering the body.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// handleRenderPath serves bots and forced (preview/debug) requests.
// The cache-rule engine's URL decision is consulted first so a
// NO_CACHE pattern match bypasses rendering entirely, even for a
// crawler.
func (r *Router) handleRenderPath(w http.ResponseWriter, req *http.Request, fp, targetURL, path string, bc botclassifier.Classification, rc fingerprint.RenderControl, start time.Time) {
	urlDecision := r.deps.CacheRule.DecideByURL(path)
	if !urlDecision.ShouldRender {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		r.deps.Proxy.ServeHTTP(sw, req)
		r.finish(req, start, sw.status, "", bc)
		return
	}

	// A repeat crawl is served from cache without a new navigation; only
	// a forced (preview/true/debug) request always re-renders. A stale
	// hit still returns immediately and refills in the background, same
	// as the human path.
	if !rc.Force {
		if snap, stale, ok := r.deps.Cache.GetWithFreshness(fp); ok {
			r.serveSnapshot(w, req, fp, path, bc, snap, stale, start)
			return
		}
		observability.CacheMissesTotal.Inc()
		r.deps.Hooks.Emit(observability.NewCacheEvent(fp, false, false))
	}

	result, err := r.deps.Scheduler.Render(fp, targetURL, priorityFor(bc))
	if err != nil {
		r.deps.Logger.RenderEvent(targetURL, 0, 0, 0, 0, err)
		r.deps.Hooks.Emit(observability.NewRenderEvent(targetURL, 0, 0, 0, 0, err))
		observability.RenderTotal.WithLabelValues("error").Inc()

		// A failed render never surfaces as a 5xx to the client; fall
		// back to transparent proxying.
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		r.deps.Proxy.ServeHTTP(sw, req)
		r.finish(req, start, sw.status, "", bc)
		return
	}

	observability.RenderTotal.WithLabelValues("success").Inc()
	observability.RenderDuration.Observe(float64(result.DurationMS) / 1000)
	r.deps.Logger.RenderEvent(targetURL, result.DurationMS, result.Status, result.BlockedCount, result.AllowedCount, nil)
	r.deps.Hooks.Emit(observability.NewRenderEvent(targetURL, result.DurationMS, result.Status, result.BlockedCount, result.AllowedCount, nil))

	finalDecision := r.deps.CacheRule.Decide(path, string(result.Body))
	cacheStatus := "MISS"
	if finalDecision.ShouldCache {
		r.deps.Cache.Set(fp, result.Body, result.Status)
	}

	if rc.Debug {
		r.writeDebugEnvelope(w, targetURL, result, finalDecision, bc, cacheStatus)
		r.finish(req, start, http.StatusOK, cacheStatus, bc)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Rendered-By", "seo-shield-proxy")
	w.Header().Set("X-Cache-Status", cacheStatus)
	w.Header().Set("X-Cache-Rule", finalDecision.Reason)
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Body)
	r.finish(req, start, result.Status, cacheStatus, bc)
}

// handleHumanPath serves humans: a fresh or stale snapshot from cache,
// kicking off a background refill for a stale hit, or falling through
// to the live origin on a miss. Humans never wait on a render.
func (r *Router) handleHumanPath(w http.ResponseWriter, req *http.Request, fp, path string, bc botclassifier.Classification, start time.Time) {
	snap, stale, ok := r.deps.Cache.GetWithFreshness(fp)
	if !ok {
		observability.CacheMissesTotal.Inc()
		r.deps.Hooks.Emit(observability.NewCacheEvent(fp, false, false))
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		r.deps.Proxy.ServeHTTP(sw, req)
		r.finish(req, start, sw.status, "MISS", bc)
		return
	}

	r.serveSnapshot(w, req, fp, path, bc, snap, stale, start)
}

// serveSnapshot writes a cached snapshot back to the client, kicking
// off a background refill when it is stale. Shared by the human path
// (cache hit) and the bot path (repeat crawl).
func (r *Router) serveSnapshot(w http.ResponseWriter, req *http.Request, fp, path string, bc botclassifier.Classification, snap cache.Snapshot, stale bool, start time.Time) {
	observability.CacheHitsTotal.Inc()
	cacheStatus := "HIT"
	if stale {
		cacheStatus = "STALE"
		observability.CacheStaleServed.Inc()
		r.triggerRefill(fp, path, req)
	}
	r.deps.Hooks.Emit(observability.NewCacheEvent(fp, true, stale))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Rendered-By", "seo-shield-proxy")
	w.Header().Set("X-Cache-Status", cacheStatus)
	w.WriteHeader(snap.Status)
	_, _ = w.Write(snap.Body)
	r.finish(req, start, snap.Status, cacheStatus, bc)
}

// triggerRefill issues a low-priority background render for a stale
// snapshot without making the requesting client wait on it
// (stale-while-revalidate). It shares the same fingerprint as
// the foreground path, so it collapses with any other subscriber
// already refilling that URL via the scheduler's single-flight.
func (r *Router) triggerRefill(fp, path string, req *http.Request) {
	targetURL := fingerprint.TargetURL(req.URL, r.deps.Config.Target).String()
	go func() {
		result, err := r.deps.Scheduler.Render(fp, targetURL, scheduler.PriorityLow)
		if err != nil {
			r.deps.Logger.RenderEvent(targetURL, 0, 0, 0, 0, err)
			return
		}
		decision := r.deps.CacheRule.Decide(path, string(result.Body))
		if decision.ShouldCache {
			r.deps.Cache.Set(fp, result.Body, result.Status)
		}
	}()
}

// finish records the access log line, metrics, and observability event
// common to every dispatch branch.
func (r *Router) finish(req *http.Request, start time.Time, status int, cacheStatus string, bc botclassifier.Classification) {
	duration := time.Since(start)
	class := "human"
	if bc.IsBot {
		class = string(bc.BotType)
	}

	observability.RequestsTotal.WithLabelValues(class, cacheStatus).Inc()
	observability.RequestDuration.WithLabelValues(class).Observe(duration.Seconds())
	r.deps.Logger.AccessEvent(req.Method, req.URL.Path, req.RemoteAddr, status, duration, cacheStatus)
	r.deps.Hooks.Emit(observability.NewRequestEvent(
		req.Method, req.URL.Path, req.RemoteAddr, status, duration, cacheStatus, string(bc.BotType), bc.IsBot,
	))
}
