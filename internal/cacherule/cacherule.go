// Package cacherule decides whether a URL is renderable and cacheable:
// two ordered pattern lists drive the URL decision, and an optional
// HTML meta tag can veto caching after the fact.
package cacherule

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Decision is the combined output of the engine.
type Decision struct {
	ShouldRender bool
	ShouldCache  bool
	Reason       string
}

// pattern is a compiled no-cache/cache rule: either a `*`-wildcard
// literal (anchored) or a `/.../ ` regex literal.
type pattern struct {
	re  *regexp.Regexp
	raw string
}

func compile(raw string) *pattern {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, "/") && strings.HasSuffix(raw, "/") && len(raw) > 1 {
		body := raw[1 : len(raw)-1]
		if re, err := regexp.Compile(body); err == nil {
			return &pattern{re: re, raw: raw}
		}
		return nil
	}

	escaped := regexp.QuoteMeta(raw)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	re, err := regexp.Compile("^" + escaped + "$")
	if err != nil {
		return nil
	}
	return &pattern{re: re, raw: raw}
}

// Engine holds the compiled rule set. It is immutable once built, so it
// can be held behind an atomic pointer and swapped wholesale on reload.
type Engine struct {
	noCache      []*pattern
	cache        []*pattern
	defaultCache bool
	metaTagName  string
}

// Config mirrors the environment knobs this engine consumes.
type Config struct {
	NoCachePatterns []string
	CachePatterns   []string
	CacheByDefault  bool
	MetaTagName     string
}

// New compiles a Config into an Engine. Uncompilable entries are skipped,
// matching the blocklist loader's tolerant line-parsing style.
func New(cfg Config) *Engine {
	e := &Engine{
		defaultCache: cfg.CacheByDefault,
		metaTagName:  cfg.MetaTagName,
	}
	if e.metaTagName == "" {
		e.metaTagName = "x-seo-shield-cache"
	}
	for _, raw := range cfg.NoCachePatterns {
		if p := compile(raw); p != nil {
			e.noCache = append(e.noCache, p)
		}
	}
	for _, raw := range cfg.CachePatterns {
		if p := compile(raw); p != nil {
			e.cache = append(e.cache, p)
		}
	}
	return e
}

// DecideByURL applies the URL-pattern precedence:
//  1. a no-cache match forces {false, false}
//  2. a cache match forces {true, true}
//  3. a non-empty cache list with no match falls back to {true, defaultCache}
//  4. both lists empty also falls back to {true, defaultCache}
func (e *Engine) DecideByURL(path string) Decision {
	for _, p := range e.noCache {
		if p.re.MatchString(path) {
			return Decision{ShouldRender: false, ShouldCache: false, Reason: "NO_CACHE pattern match - proxy only"}
		}
	}
	for _, p := range e.cache {
		if p.re.MatchString(path) {
			return Decision{ShouldRender: true, ShouldCache: true, Reason: "CACHE pattern match"}
		}
	}
	if len(e.cache) > 0 {
		return Decision{ShouldRender: true, ShouldCache: e.defaultCache, Reason: "no CACHE pattern match - default applied"}
	}
	return Decision{ShouldRender: true, ShouldCache: e.defaultCache, Reason: "no patterns configured - default applied"}
}

// DecideByHTML scans rendered HTML for a single
// `<meta name="<tag>" content="true|false">` element. "false" vetoes
// caching; "true" or absence leaves the URL decision intact.
func (e *Engine) DecideByHTML(html string) (overrideCacheable bool, found bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return true, false
	}

	override := true
	sawTag := false
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(name, e.metaTagName) {
			return true
		}
		content, _ := s.Attr("content")
		sawTag = true
		override = !strings.EqualFold(strings.TrimSpace(content), "false")
		return false
	})
	return override, sawTag
}

// Decide composes DecideByURL and, when rendered HTML is available,
// DecideByHTML. html may be empty when no render has happened yet.
func (e *Engine) Decide(path string, html string) Decision {
	d := e.DecideByURL(path)
	if !d.ShouldCache || html == "" {
		return d
	}
	if override, found := e.DecideByHTML(html); found && !override {
		d.ShouldCache = false
		d.Reason = "HTML meta override - cache disabled"
	}
	return d
}
