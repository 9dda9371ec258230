// Package router classifies every inbound request (path class, bot
// classification, render-control parameters, cache-rule decision) and
// dispatches it to either the render pipeline or the transparent
// proxy.
package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seoshield/seo-shield-proxy/internal/botclassifier"
	"github.com/seoshield/seo-shield-proxy/internal/cache"
	"github.com/seoshield/seo-shield-proxy/internal/cacherule"
	"github.com/seoshield/seo-shield-proxy/internal/config"
	"github.com/seoshield/seo-shield-proxy/internal/fingerprint"
	"github.com/seoshield/seo-shield-proxy/internal/logging"
	"github.com/seoshield/seo-shield-proxy/internal/observability"
	"github.com/seoshield/seo-shield-proxy/internal/proxy"
	"github.com/seoshield/seo-shield-proxy/internal/ratelimit"
	"github.com/seoshield/seo-shield-proxy/internal/scheduler"
)

// class is the mutually-exclusive path classification.
type class int

const (
	classPage class = iota
	classAsset
	classReserved
)

// assetSuffixes is the fixed suffix set that bypasses the render
// pipeline.
var assetSuffixes = []string{
	".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico",
	".woff", ".woff2", ".ttf", ".eot", ".mp4", ".webm", ".mp3", ".wav",
	".pdf", ".json", ".xml", ".txt", ".rss", ".atom",
}

// defaultReservedPrefixes are this proxy's own endpoints, answered
// locally and never entering the render pipeline. An origin path like
// /admin/* is not reserved here; it is an ordinary page path, governed
// by the cache-rule engine (e.g. NO_CACHE_PATTERNS) like any other.
var defaultReservedPrefixes = []string{"/shieldhealth"}

func classify(path string, reservedPrefixes []string) class {
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(path, p) {
			return classReserved
		}
	}
	if path == "/" || strings.HasSuffix(path, "/") {
		return classPage
	}
	lower := strings.ToLower(path)
	for _, suf := range assetSuffixes {
		if strings.HasSuffix(lower, suf) {
			return classAsset
		}
	}
	return classPage
}

// Deps wires every collaborator the Router dispatches to. All fields
// except RateLimiter, BreakerState and ReservedPrefixes are required.
type Deps struct {
	Config      *config.Config
	Classifier  *botclassifier.Classifier
	CacheRule   *cacherule.Engine
	Cache       cache.Cache
	Scheduler   *scheduler.Scheduler
	Proxy       *proxy.Proxy
	Hooks       *observability.Hooks
	Logger      *logging.Logger
	RateLimiter ratelimit.Limiter

	// BreakerState reports the render circuit breaker's state for
	// /shieldhealth and the debug envelope. When nil, both omit the
	// breaker_state field.
	BreakerState func() string

	ReservedPrefixes []string
}

// Router is the Request Router. It is an http.Handler, typically
// mounted directly as the http.Server's handler.
type Router struct {
	deps      Deps
	mux       *chi.Mux
	startedAt time.Time
}

// New builds a Router and its chi mux.
func New(deps Deps) *Router {
	if deps.RateLimiter == nil {
		deps.RateLimiter = ratelimit.AllowAll{}
	}
	if len(deps.ReservedPrefixes) == 0 {
		deps.ReservedPrefixes = defaultReservedPrefixes
	}

	r := &Router{deps: deps, startedAt: time.Now()}

	mux := chi.NewRouter()
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	}))

	mux.Get("/shieldhealth", r.handleHealth)
	mux.Handle("/*", http.HandlerFunc(r.handlePage))

	r.mux = mux
	return r
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// handlePage handles every path that isn't /shieldhealth: classify,
// rate-limit, classify bot, inspect render-control parameters, consult
// the cache-rule engine, dispatch.
func (r *Router) handlePage(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	path := req.URL.Path

	switch classify(path, r.deps.ReservedPrefixes) {
	case classReserved:
		http.NotFound(w, req)
		return
	case classAsset:
		r.deps.Proxy.ServeHTTP(w, req)
		return
	}

	if allowed, reason := r.deps.RateLimiter.Allow(req); !allowed {
		r.emitSecurity(req, reason, "block")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	rc := fingerprint.Parse(req.URL)
	bc := r.deps.Classifier.Classify(req)

	if bc.Action == botclassifier.ActionBlock {
		r.emitSecurity(req, "bot rule match: "+strings.Join(bc.RulesMatched, ","), "block")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	fp := fingerprint.Of(req.URL)
	targetURL := fingerprint.TargetURL(req.URL, r.deps.Config.Target)

	if bc.IsBot || rc.Force {
		r.handleRenderPath(w, req, fp, targetURL.String(), path, bc, rc, start)
		return
	}

	r.handleHumanPath(w, req, fp, path, bc, start)
}

// priorityFor maps a Bot Classification's action to a Render Job
// priority: crawlers the classifier flagged for priority treatment
// jump the FIFO queue ahead of ordinary renders.
func priorityFor(bc botclassifier.Classification) scheduler.Priority {
	if bc.Action == botclassifier.ActionPriority {
		return scheduler.PriorityHigh
	}
	return scheduler.PriorityNormal
}

func (r *Router) emitSecurity(req *http.Request, reason, action string) {
	r.deps.Logger.SecurityEvent(action, req.RemoteAddr, reason)
	r.deps.Hooks.Emit(observability.NewSecurityEvent(req.RemoteAddr, reason, action))
}
