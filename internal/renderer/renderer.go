// Package renderer drives one browser context per render job through a
// three-tier navigation fallback, blocks tracking/asset sub-requests,
// extracts or infers an HTTP status code, and never lets a browser
// fault escape as anything other than a typed, recoverable error.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Every render job gets the same desktop viewport.
const (
	viewportWidth  = 1920
	viewportHeight = 1080
)

// Sentinel errors for the renderer's failure modes. The scheduler
// and router branch on these with errors.Is; they are never surfaced
// to clients directly.
var (
	ErrNavigationTimeout = errors.New("renderer: navigation timeout")
	ErrProtocolError     = errors.New("renderer: protocol error")
	ErrContextCrash      = errors.New("renderer: browser context crash")
	ErrCircuitOpen       = errors.New("renderer: circuit open, browser pool unavailable")
)

// Config configures a Renderer's browser pool and per-job behavior.
type Config struct {
	Headless   bool
	NoSandbox  bool
	BrowserBin string

	MaxPages  int
	UserAgent string
	Timeout   time.Duration

	BlockedResourceTypes []string
	BlockedDomains       []string
	BlockedPathSubstrs   []string

	// StatusMetaTag is the <meta name="..."> the page may declare to
	// communicate its real HTTP status code.
	StatusMetaTag string

	Breaker BreakerConfig
}

// Result is one completed render.
type Result struct {
	Body           []byte
	Status         int
	BlockedCount   int
	AllowedCount   int
	DurationMS     int64
	Soft404Reasons []string
}

// Renderer owns the process-wide browser and its page pool: injectable
// so tests can swap in a stub, init-on-first-use via New,
// close-on-shutdown via Close.
type Renderer struct {
	browser  *rod.Browser
	pagePool rod.Pool[rod.Page]
	cfg      Config

	blocklist *Blocklist
	breaker   *CircuitBreaker

	activePages atomic.Int32
}

// New launches a headless browser with the stealth flags set and
// initializes the page pool, which bounds how many pages exist at once;
// each render job gets a new page that is closed when the job ends.
func New(cfg Config) (*Renderer, error) {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.StatusMetaTag == "" {
		cfg.StatusMetaTag = "prerender-status-code"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; seo-shield-proxy/1.0; +render)"
	}

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("renderer: launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("renderer: connect to browser: %w", err)
	}

	return &Renderer{
		browser:   browser,
		pagePool:  rod.NewPagePool(cfg.MaxPages),
		cfg:       cfg,
		blocklist: NewBlocklist(cfg.BlockedDomains, cfg.BlockedPathSubstrs),
		breaker:   NewCircuitBreaker(cfg.Breaker),
	}, nil
}

// Render drives one fresh browser context through navigation,
// interception, and extraction for targetURL. Every failure mode is
// returned as one of the package's sentinel errors so callers never
// need to inspect rod-specific error types.
func (r *Renderer) Render(ctx context.Context, targetURL string) (Result, error) {
	if !r.breaker.AllowRequest() {
		return Result{}, ErrCircuitOpen
	}

	start := time.Now()
	res, err := r.render(ctx, targetURL)
	res.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		r.breaker.RecordFailure()
		return Result{}, err
	}
	r.breaker.RecordSuccess()
	return res, nil
}

func (r *Renderer) render(ctx context.Context, targetURL string) (Result, error) {
	r.activePages.Add(1)
	defer r.activePages.Add(-1)

	page, err := r.pagePool.Get(func() (*rod.Page, error) {
		return r.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: acquire page: %v", ErrContextCrash, err)
	}
	defer func() {
		_ = page.Close()
		r.pagePool.Put(nil)
	}()

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		return Result{}, fmt.Errorf("%w: stealth injection: %v", ErrContextCrash, err)
	}

	_ = proto.NetworkSetUserAgentOverride{UserAgent: r.cfg.UserAgent}.Call(page)
	_ = proto.EmulationSetDeviceMetricsOverride{
		Width: viewportWidth, Height: viewportHeight, DeviceScaleFactor: 1, Mobile: false,
	}.Call(page)

	counters := &blockCounters{}
	router := setupHijack(page, r.cfg.BlockedResourceTypes, r.blocklist, counters)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	bound := page.Context(ctx)
	if err := navigateWithFallback(bound, targetURL); err != nil {
		return Result{}, err
	}

	html, err := bound.HTML()
	if err != nil {
		return Result{}, fmt.Errorf("%w: extract HTML: %v", ErrContextCrash, err)
	}

	status, declared := extractStatusCode(bound, r.cfg.StatusMetaTag)
	var reasons []string
	if !declared {
		if soft404, detectedReasons := detectSoft404(html); soft404 {
			status = 404
			reasons = detectedReasons
		} else {
			status = 200
		}
	}

	return Result{
		Body:           []byte(html),
		Status:         status,
		BlockedCount:   counters.blocked(),
		AllowedCount:   counters.allowed(),
		Soft404Reasons: reasons,
	}, nil
}

// Stats reports the number of browser contexts currently in use.
func (r *Renderer) Stats() (active int32, max int) {
	return r.activePages.Load(), r.cfg.MaxPages
}

// BreakerState exposes the circuit breaker's current state for
// diagnostics (the debug envelope, /shieldhealth).
func (r *Renderer) BreakerState() State {
	return r.breaker.State()
}

// Close drains the page pool and kills the browser process.
func (r *Renderer) Close() error {
	r.pagePool.Cleanup(func(p *rod.Page) { _ = p.Close() })
	return r.browser.Close()
}
