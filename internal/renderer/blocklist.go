package renderer

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Blocklist is the resource-blocking policy's hostname/path half: a
// compiled lookup set with an RLock'd membership test, reloadable
// wholesale.
type Blocklist struct {
	mu       sync.RWMutex
	domains  map[string]struct{}
	pathSubs []string
}

// NewBlocklist compiles the configured domain and path-substring lists.
func NewBlocklist(domains, pathSubstrings []string) *Blocklist {
	b := &Blocklist{domains: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		b.domains[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	b.pathSubs = make([]string, len(pathSubstrings))
	copy(b.pathSubs, pathSubstrings)
	return b
}

// IsBlocked reports whether host or a parent domain of it is
// blacklisted, or path contains a blacklisted substring.
func (b *Blocklist) IsBlocked(host, path string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	host = strings.ToLower(host)
	if _, ok := b.domains[host]; ok {
		return true
	}
	parts := strings.Split(host, ".")
	for i := 1; i < len(parts); i++ {
		if _, ok := b.domains[strings.Join(parts[i:], ".")]; ok {
			return true
		}
	}

	lowerPath := strings.ToLower(path)
	for _, sub := range b.pathSubs {
		if sub != "" && strings.Contains(lowerPath, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// Reload swaps in a new domain/path set without a partial-update
// window.
func (b *Blocklist) Reload(domains, pathSubstrings []string) {
	newDomains := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		newDomains[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	newPaths := make([]string, len(pathSubstrings))
	copy(newPaths, pathSubstrings)

	b.mu.Lock()
	b.domains = newDomains
	b.pathSubs = newPaths
	b.mu.Unlock()
}

// blockedResourceTypes are dropped unconditionally, independent of the
// Blocklist.
var blockedResourceTypes = map[proto.NetworkResourceType]struct{}{
	proto.NetworkResourceTypeImage:       {},
	proto.NetworkResourceTypeStylesheet:  {},
	proto.NetworkResourceTypeFont:        {},
	proto.NetworkResourceTypeMedia:       {},
	proto.NetworkResourceTypeWebSocket:   {},
	proto.NetworkResourceTypeEventSource: {},
}

type blockCounters struct {
	blockedN int64
	allowedN int64
}

func (c *blockCounters) blocked() int { return int(atomic.LoadInt64(&c.blockedN)) }
func (c *blockCounters) allowed() int { return int(atomic.LoadInt64(&c.allowedN)) }

// setupHijack installs the resource-blocking request interceptor: drop
// by resource type, by blacklisted hostname, or by blacklisted path
// substring; otherwise continue. A "*" catch-all route decides
// per-request, with the hijack router running in its own goroutine.
func setupHijack(page *rod.Page, extraBlockedTypes []string, bl *Blocklist, counters *blockCounters) *rod.HijackRouter {
	extra := make(map[proto.NetworkResourceType]struct{}, len(extraBlockedTypes))
	for _, name := range extraBlockedTypes {
		extra[proto.NetworkResourceType(name)] = struct{}{}
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		rtype := ctx.Request.Type()
		_, byType := blockedResourceTypes[rtype]
		_, byExtra := extra[rtype]

		u := ctx.Request.URL()
		byBlocklist := bl.IsBlocked(u.Hostname(), u.Path)

		if byType || byExtra || byBlocklist {
			atomic.AddInt64(&counters.blockedN, 1)
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}

		atomic.AddInt64(&counters.allowedN, 1)
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	go router.Run()
	return router
}

// DefaultBlockedDomains is a starter list of analytics, ad-network,
// social-widget, tag-manager, and telemetry hosts.
func DefaultBlockedDomains() []string {
	return []string{
		"google-analytics.com", "googletagmanager.com", "doubleclick.net",
		"facebook.net", "connect.facebook.net", "hotjar.com", "segment.com",
		"mixpanel.com", "fullstory.com", "intercom.io", "amplitude.com",
	}
}

// DefaultBlockedPathSubstrings is the path-substring starter list.
func DefaultBlockedPathSubstrings() []string {
	return []string{
		"/analytics", "/gtm", "/fbevents", "/pixel", "/tracking",
		"/collect", "/ads/", "/doubleclick", "/widgets", "/embed",
		"/favicon.ico",
	}
}
