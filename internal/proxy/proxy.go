// Package proxy forwards requests verbatim to the configured origin,
// streaming the response without buffering it, with a terse 502 when
// the origin can't be reached.
package proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
)

// Proxy forwards requests to a single origin using the standard
// library's reverse proxy, the idiomatic tool for this exact job (no
// pack repo wraps or replaces it with a third-party alternative).
type Proxy struct {
	target  *url.URL
	rp      *httputil.ReverseProxy
	onError func(*http.Request, error)
}

// New builds a Proxy targeting origin. onError, if non-nil, is invoked
// (in addition to the 502 response) so the router can bump its error
// counters and emit an observability event.
func New(origin *url.URL, onError func(*http.Request, error)) *Proxy {
	p := &Proxy{target: origin, onError: onError}

	rp := httputil.NewSingleHostReverseProxy(origin)
	baseDirector := rp.Director
	rp.Director = func(r *http.Request) {
		baseDirector(r)
		r.Header.Set("X-Forwarded-Host", r.Host)
		if r.TLS != nil {
			r.Header.Set("X-Forwarded-Proto", "https")
		} else {
			r.Header.Set("X-Forwarded-Proto", "http")
		}
	}
	rp.ErrorHandler = p.handleError
	p.rp = rp
	return p
}

// ServeHTTP streams the proxied response directly to w without
// buffering the body in memory.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.rp.ServeHTTP(w, r)
}

// handleError is httputil.ReverseProxy's ErrorHandler: any dial/read
// failure against the origin becomes a terse 502, never a panic or a
// hung connection.
func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if p.onError != nil {
		p.onError(r, err)
	}
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte("bad gateway: origin unreachable"))
}
