// Package config loads seo-shield-proxy's runtime configuration from
// the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CacheType selects the Cache Adapter backend.
type CacheType string

const (
	CacheTypeLocal  CacheType = "local"
	CacheTypeRemote CacheType = "remote"
)

// Config holds every environment-driven knob the proxy reads at startup.
type Config struct {
	Port    int
	Target  *url.URL
	BaseURL string

	CacheTTL      time.Duration
	CacheType     CacheType
	CacheEndpoint string

	PuppeteerTimeout     time.Duration
	MaxConcurrentRenders int

	NoCachePatterns []string
	CachePatterns   []string
	CacheByDefault  bool
	CacheMetaTag    string
}

// Load reads configuration from the process environment, first merging in
// a local .env file if one is present (mirrors the load-then-override
// ordering used by the gateway service this repo's ambient stack is
// patterned on).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		CacheTTL:             durationEnv("CACHE_TTL", 3600*time.Second, time.Second),
		CacheType:            CacheType(stringEnv("CACHE_TYPE", string(CacheTypeLocal))),
		CacheEndpoint:        os.Getenv("CACHE_ENDPOINT"),
		PuppeteerTimeout:     durationEnv("PUPPETEER_TIMEOUT", 30*time.Second, time.Millisecond),
		MaxConcurrentRenders: intEnv("MAX_CONCURRENT_RENDERS", 5),
		CacheByDefault:       ParseBoolEnv("CACHE_BY_DEFAULT", true),
		CacheMetaTag:         stringEnv("CACHE_META_TAG", "x-seo-shield-cache"),
	}

	port, err := strconv.Atoi(stringEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	cfg.Port = port

	targetRaw := os.Getenv("TARGET_URL")
	if targetRaw == "" {
		return nil, fmt.Errorf("TARGET_URL is required")
	}
	target, err := url.Parse(targetRaw)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid TARGET_URL %q: %w", targetRaw, err)
	}
	cfg.Target = target

	cfg.NoCachePatterns = csvEnv("NO_CACHE_PATTERNS")
	cfg.CachePatterns = csvEnv("CACHE_PATTERNS")

	if cfg.CacheType != CacheTypeLocal && cfg.CacheType != CacheTypeRemote {
		return nil, fmt.Errorf("invalid CACHE_TYPE %q: must be local or remote", cfg.CacheType)
	}
	if cfg.CacheType == CacheTypeRemote && cfg.CacheEndpoint == "" {
		return nil, fmt.Errorf("CACHE_ENDPOINT is required when CACHE_TYPE=remote")
	}
	if !isValidMetaTagName(cfg.CacheMetaTag) {
		cfg.CacheMetaTag = "x-seo-shield-cache"
	}

	return cfg, nil
}

// isValidMetaTagName enforces the [A-Za-z0-9_-]+ constraint on the
// cache meta tag name.
func isValidMetaTagName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// ParseBool treats 1/yes/true/enable/enabled/on as truthy and
// everything else (including empty) as falsy.
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "yes", "true", "enable", "enabled", "on":
		return true
	default:
		return false
	}
}

// ParseBoolEnv reads an environment variable through ParseBool, falling
// back to defaultVal when unset or empty.
func ParseBoolEnv(key string, defaultVal bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return defaultVal
	}
	return ParseBool(val)
}

func stringEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func intEnv(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func durationEnv(key string, defaultVal time.Duration, unit time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(n) * unit
}

func csvEnv(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
