// Package main is seo-shield-proxy's composition root: it loads
// configuration, wires cache, rule engine, classifier, renderer,
// scheduler, proxy, and router together, and serves until a shutdown
// signal arrives.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/seoshield/seo-shield-proxy/internal/botclassifier"
	"github.com/seoshield/seo-shield-proxy/internal/cache"
	"github.com/seoshield/seo-shield-proxy/internal/cacherule"
	"github.com/seoshield/seo-shield-proxy/internal/config"
	"github.com/seoshield/seo-shield-proxy/internal/fingerprint"
	"github.com/seoshield/seo-shield-proxy/internal/logging"
	"github.com/seoshield/seo-shield-proxy/internal/observability"
	"github.com/seoshield/seo-shield-proxy/internal/proxy"
	"github.com/seoshield/seo-shield-proxy/internal/renderer"
	"github.com/seoshield/seo-shield-proxy/internal/router"
	"github.com/seoshield/seo-shield-proxy/internal/scheduler"
)

// Version is set via -ldflags at release build time.
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(config.ParseBoolEnv("LOG_PRETTY", false))
	logger.Base.Info().Str("version", Version).Str("target", cfg.Target.String()).Msg("starting seo-shield-proxy")

	cacheBackend, err := buildCache(cfg)
	if err != nil {
		logger.Base.Fatal().Err(err).Msg("cache backend init failed")
	}
	defer cacheBackend.Close()

	cacheRule := cacherule.New(cacherule.Config{
		NoCachePatterns: cfg.NoCachePatterns,
		CachePatterns:   cfg.CachePatterns,
		CacheByDefault:  cfg.CacheByDefault,
		MetaTagName:     cfg.CacheMetaTag,
	})

	var reputation botclassifier.ReputationSource
	if dbPath := os.Getenv("MAXMIND_DB_PATH"); dbPath != "" {
		mm := botclassifier.NewMaxmindReputation(dbPath, datacenterOrgsFromEnv())
		reputation = mm
		defer mm.Close()
	}
	classifier := botclassifier.New(botclassifier.DefaultRules(), reputation)

	rend, err := renderer.New(renderer.Config{
		Headless:           config.ParseBoolEnv("HEADLESS", true),
		NoSandbox:          config.ParseBoolEnv("RENDER_NO_SANDBOX", false),
		BrowserBin:         os.Getenv("BROWSER_BIN"),
		MaxPages:           cfg.MaxConcurrentRenders,
		UserAgent:          os.Getenv("RENDER_USER_AGENT"),
		Timeout:            cfg.PuppeteerTimeout,
		BlockedDomains:     renderer.DefaultBlockedDomains(),
		BlockedPathSubstrs: renderer.DefaultBlockedPathSubstrings(),
		StatusMetaTag:      "prerender-status-code",
	})
	if err != nil {
		logger.Base.Fatal().Err(err).Msg("renderer init failed")
	}
	defer rend.Close()

	hooks := observability.New(1024, observability.SinkFunc(func(e observability.Event) {
		logger.Base.Debug().Str("event_kind", e.Kind()).Time("at", e.At()).Msg("event")
	}))
	defer hooks.Close()

	sched := scheduler.New(scheduler.Config{
		MaxConcurrency: cfg.MaxConcurrentRenders,
		Timeout:        cfg.PuppeteerTimeout,
	}, rend.Render)
	defer sched.Close()

	rp := proxy.New(cfg.Target, func(r *http.Request, err error) {
		logger.Base.Warn().Err(err).Str("path", r.URL.Path).Msg("proxy error")
		hooks.Emit(observability.NewSecurityEvent(r.RemoteAddr, err.Error(), "proxy_error"))
	})

	lock := cache.NewMemoryLock()
	sweeper := cache.NewSweeper(cacheBackend, lock, func(ctx context.Context, key string) error {
		return refillOne(ctx, cacheBackend, sched, cacheRule, cfg, key)
	})
	if err := sweeper.Start(fmt.Sprintf("@every %s", sweepIntervalEnv())); err != nil {
		logger.Base.Warn().Err(err).Msg("sweeper start failed, stale entries will only refill on read")
	} else {
		defer sweeper.Stop()
	}

	r := router.New(router.Deps{
		Config:       cfg,
		Classifier:   classifier,
		CacheRule:    cacheRule,
		Cache:        cacheBackend,
		Scheduler:    sched,
		Proxy:        rp,
		Hooks:        hooks,
		Logger:       logger,
		BreakerState: func() string { return rend.BreakerState().String() },
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Base.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Base.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Base.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Base.Warn().Err(err).Msg("http shutdown error")
	}

	sched.Close()
	logger.Base.Info().Msg("stopped")
}

// buildCache constructs the configured Cache Adapter backend. Remote's
// Retention is pinned to cfg.CacheTTL so its logical TTL behaves
// identically to Local's, with physical expiry still extended by the
// backend's own retention factor.
func buildCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.CacheType {
	case config.CacheTypeRemote:
		host, port, err := net.SplitHostPort(cfg.CacheEndpoint)
		if err != nil {
			host, port = cfg.CacheEndpoint, "6379"
		}
		remote := cache.NewRemote(cache.RemoteConfig{
			Addr:      net.JoinHostPort(host, port),
			Password:  os.Getenv("CACHE_PASSWORD"),
			KeyPrefix: "seoshield:",
			Retention: cfg.CacheTTL,
		})
		return remote, nil
	default:
		return cache.NewLocal(cfg.CacheTTL), nil
	}
}

// refillOne re-renders and re-stores the snapshot for a stale cache
// key, driving the Sweeper's background revalidation the same way a
// human's stale-hit request does in the router.
func refillOne(ctx context.Context, c cache.Cache, sched *scheduler.Scheduler, rules *cacherule.Engine, cfg *config.Config, key string) error {
	u, err := fingerprintToURL(key, cfg)
	if err != nil {
		return err
	}
	targetURL := fingerprint.TargetURL(u, cfg.Target)

	result, err := sched.Render(key, targetURL.String(), scheduler.PriorityLow)
	if err != nil {
		return err
	}
	decision := rules.Decide(u.Path, string(result.Body))
	if decision.ShouldCache {
		c.Set(key, result.Body, result.Status)
	}
	return nil
}

func fingerprintToURL(key string, cfg *config.Config) (*url.URL, error) {
	u, err := url.Parse(key)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		u.Scheme = cfg.Target.Scheme
	}
	if u.Host == "" {
		u.Host = cfg.Target.Host
	}
	return u, nil
}

func sweepIntervalEnv() string {
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		return v
	}
	return "30s"
}

func datacenterOrgsFromEnv() []string {
	v := os.Getenv("DATACENTER_ASN_ORGS")
	if v == "" {
		return []string{"Amazon.com", "Google LLC", "Microsoft Corporation", "DigitalOcean, LLC", "OVH SAS", "Hetzner Online GmbH"}
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
