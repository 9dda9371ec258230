package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/seoshield/seo-shield-proxy/internal/botclassifier"
	"github.com/seoshield/seo-shield-proxy/internal/cache"
	"github.com/seoshield/seo-shield-proxy/internal/cacherule"
	"github.com/seoshield/seo-shield-proxy/internal/config"
	"github.com/seoshield/seo-shield-proxy/internal/logging"
	"github.com/seoshield/seo-shield-proxy/internal/observability"
	"github.com/seoshield/seo-shield-proxy/internal/proxy"
	"github.com/seoshield/seo-shield-proxy/internal/renderer"
	"github.com/seoshield/seo-shield-proxy/internal/scheduler"
)

// newTestRouter wires a Router against a real origin test server, a
// real Local cache/CacheRule engine/Classifier, and a stub render
// function standing in for the headless browser.
func newTestRouter(t *testing.T, origin *httptest.Server, renderFn scheduler.RenderFunc, ruleCfg cacherule.Config) *Router {
	t.Helper()

	target, err := url.Parse(origin.URL)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Port: 8080, Target: target, CacheTTL: time.Hour, CacheByDefault: true}

	sched := scheduler.New(scheduler.Config{MaxConcurrency: 2, Timeout: time.Second}, renderFn)
	t.Cleanup(sched.Close)

	c := cache.NewLocal(time.Hour)
	t.Cleanup(func() { _ = c.Close() })

	return New(Deps{
		Config:     cfg,
		Classifier: botclassifier.New(botclassifier.DefaultRules(), nil),
		CacheRule:  cacherule.New(ruleCfg),
		Cache:      c,
		Scheduler:  sched,
		Proxy:      proxy.New(target, nil),
		Hooks:      observability.New(16),
		Logger:     logging.New(false),
	})
}

func stubRender(body string, status int) scheduler.RenderFunc {
	return func(ctx context.Context, targetURL string) (renderer.Result, error) {
		return renderer.Result{Body: []byte(body), Status: status}, nil
	}
}

func TestBotColdPathRendersAndCaches(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("bot request should never reach the origin directly")
	}))
	defer origin.Close()

	r := newTestRouter(t, origin, stubRender("<html>rendered</html>", 200), cacherule.Config{CacheByDefault: true})

	req := httptest.NewRequest(http.MethodGet, "http://proxy.example/product/42", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Googlebot/2.1)")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Cache-Status"); got != "MISS" {
		t.Errorf("X-Cache-Status = %q, want MISS", got)
	}
	if rec.Body.String() != "<html>rendered</html>" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHumanWithWarmCacheGetsHit(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("human request with a warm cache should never reach the origin")
	}))
	defer origin.Close()

	r := newTestRouter(t, origin, stubRender("<html>cached</html>", 200), cacherule.Config{CacheByDefault: true})

	// Warm the cache via a bot render first.
	botReq := httptest.NewRequest(http.MethodGet, "http://proxy.example/about", nil)
	botReq.Header.Set("User-Agent", "Googlebot/2.1")
	r.ServeHTTP(httptest.NewRecorder(), botReq)

	humanReq := httptest.NewRequest(http.MethodGet, "http://proxy.example/about", nil)
	humanReq.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, humanReq)

	if got := rec.Header().Get("X-Cache-Status"); got != "HIT" {
		t.Errorf("X-Cache-Status = %q, want HIT", got)
	}
	if rec.Body.String() != "<html>cached</html>" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestNoCachePatternBypassesRenderEvenForBot(t *testing.T) {
	var originHit bool
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		originHit = true
		w.WriteHeader(200)
		_, _ = w.Write([]byte("origin passthrough"))
	}))
	defer origin.Close()

	renderCalled := false
	renderFn := func(ctx context.Context, targetURL string) (renderer.Result, error) {
		renderCalled = true
		return renderer.Result{Body: []byte("should not render"), Status: 200}, nil
	}

	r := newTestRouter(t, origin, renderFn, cacherule.Config{NoCachePatterns: []string{"/admin/*"}})

	req := httptest.NewRequest(http.MethodGet, "http://proxy.example/admin/dashboard", nil)
	req.Header.Set("User-Agent", "Googlebot/2.1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if renderCalled {
		t.Error("NO_CACHE pattern match should never trigger a render")
	}
	if !originHit {
		t.Error("expected the request to reach the origin via the transparent proxy")
	}
	if rec.Body.String() != "origin passthrough" {
		t.Errorf("body = %q, want origin passthrough", rec.Body.String())
	}
}

func TestAssetPathAlwaysBypassesRenderPipeline(t *testing.T) {
	var originHit bool
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		originHit = true
		w.WriteHeader(200)
	}))
	defer origin.Close()

	renderCalled := false
	renderFn := func(ctx context.Context, targetURL string) (renderer.Result, error) {
		renderCalled = true
		return renderer.Result{}, nil
	}

	r := newTestRouter(t, origin, renderFn, cacherule.Config{CacheByDefault: true})

	req := httptest.NewRequest(http.MethodGet, "http://proxy.example/static/app.js", nil)
	req.Header.Set("User-Agent", "Googlebot/2.1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if renderCalled {
		t.Error("asset path should never enter the render pipeline")
	}
	if !originHit {
		t.Error("expected asset request forwarded to origin")
	}
}

func TestHealthEndpointReportsStatus(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer origin.Close()

	r := newTestRouter(t, origin, stubRender("ok", 200), cacherule.Config{CacheByDefault: true})

	req := httptest.NewRequest(http.MethodGet, "http://proxy.example/shieldhealth", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content-type = %q", ct)
	}
}

func TestBotWarmPathServedFromCacheWithoutNavigation(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("warm bot request should never reach the origin")
	}))
	defer origin.Close()

	var navigations int
	renderFn := func(ctx context.Context, targetURL string) (renderer.Result, error) {
		navigations++
		return renderer.Result{Body: []byte("<html>rendered</html>"), Status: 200}, nil
	}

	r := newTestRouter(t, origin, renderFn, cacherule.Config{CacheByDefault: true})

	cold := httptest.NewRequest(http.MethodGet, "http://proxy.example/product/42", nil)
	cold.Header.Set("User-Agent", "Googlebot/2.1")
	coldRec := httptest.NewRecorder()
	r.ServeHTTP(coldRec, cold)
	if got := coldRec.Header().Get("X-Cache-Status"); got != "MISS" {
		t.Fatalf("cold X-Cache-Status = %q, want MISS", got)
	}

	warm := httptest.NewRequest(http.MethodGet, "http://proxy.example/product/42", nil)
	warm.Header.Set("User-Agent", "Googlebot/2.1")
	warmRec := httptest.NewRecorder()
	r.ServeHTTP(warmRec, warm)

	if navigations != 1 {
		t.Errorf("navigations = %d, want exactly 1 across cold+warm crawls", navigations)
	}
	if got := warmRec.Header().Get("X-Cache-Status"); got != "HIT" {
		t.Errorf("warm X-Cache-Status = %q, want HIT", got)
	}
	if warmRec.Body.String() != coldRec.Body.String() {
		t.Errorf("warm body %q differs from cold body %q", warmRec.Body.String(), coldRec.Body.String())
	}
}

func TestForcedRenderBypassesWarmCache(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer origin.Close()

	var navigations int
	renderFn := func(ctx context.Context, targetURL string) (renderer.Result, error) {
		navigations++
		return renderer.Result{Body: []byte("<html>fresh</html>"), Status: 200}, nil
	}

	r := newTestRouter(t, origin, renderFn, cacherule.Config{CacheByDefault: true})

	bot := httptest.NewRequest(http.MethodGet, "http://proxy.example/landing", nil)
	bot.Header.Set("User-Agent", "Googlebot/2.1")
	r.ServeHTTP(httptest.NewRecorder(), bot)

	forced := httptest.NewRequest(http.MethodGet, "http://proxy.example/landing?render=true", nil)
	forced.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, forced)

	if navigations != 2 {
		t.Errorf("navigations = %d, want 2: a forced render must not be served from cache", navigations)
	}
	if got := rec.Header().Get("X-Cache-Status"); got != "MISS" {
		t.Errorf("forced X-Cache-Status = %q, want MISS", got)
	}
}

func TestDebugControlReturnsJSONEnvelope(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer origin.Close()

	r := newTestRouter(t, origin, stubRender("<html>diag</html>", 200), cacherule.Config{CacheByDefault: true})

	req := httptest.NewRequest(http.MethodGet, "http://proxy.example/page?_render=debug", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("content-type = %q, want JSON envelope", ct)
	}
	var env struct {
		Status    int    `json:"status"`
		BodyBytes int    `json:"body_bytes"`
		TargetURL string `json:"target_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("envelope did not decode: %v", err)
	}
	if env.Status != 200 || env.BodyBytes != len("<html>diag</html>") {
		t.Errorf("envelope = %+v", env)
	}
}
