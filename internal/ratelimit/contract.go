// Package ratelimit defines the rate-limit middleware contract: this
// package owns only the interface and a permissive default, so a real
// policy can be plugged in from outside without touching the router.
package ratelimit

import "net/http"

// Limiter decides whether a request may proceed. A real policy
// (IP/token-bucket, sliding window, CAPTCHA challenge) is an external
// collaborator; this package only needs the shape so the Router can
// accept one.
type Limiter interface {
	// Allow reports whether r may proceed, and if not, a reason suitable
	// for a security log entry.
	Allow(r *http.Request) (allowed bool, reason string)
}

// AllowAll is the default no-op Limiter: every request passes. The
// Router is wired against this until an external policy is supplied.
type AllowAll struct{}

func (AllowAll) Allow(*http.Request) (bool, string) { return true, "" }

var _ Limiter = AllowAll{}
