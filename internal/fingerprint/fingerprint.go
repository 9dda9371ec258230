// Package fingerprint canonicalizes an inbound request's target URL into
// the single cache and single-flight key: scheme + host +
// path + query, excluding the reserved render-control parameters.
package fingerprint

import (
	"net/url"
	"sort"
	"strings"
)

// RenderParamLong and RenderParamShort are the two reserved query keys.
const (
	RenderParamLong  = "render"
	RenderParamShort = "_render"
)

// RenderControlValues are the accepted values for the reserved params.
const (
	ControlPreview = "preview"
	ControlTrue    = "true"
	ControlDebug   = "debug"
)

var reservedParams = map[string]struct{}{
	RenderParamLong:  {},
	RenderParamShort: {},
}

// RenderControl describes what a request's reserved query parameters
// asked for.
type RenderControl struct {
	Force bool // preview or true: force a render even for humans
	Debug bool // debug: return the JSON diagnostics envelope
}

// Parse extracts the render-control directive from a URL's query string.
func Parse(u *url.URL) RenderControl {
	q := u.Query()
	var rc RenderControl
	for key := range reservedParams {
		val := strings.ToLower(q.Get(key))
		switch val {
		case ControlPreview, ControlTrue:
			rc.Force = true
		case ControlDebug:
			rc.Force = true
			rc.Debug = true
		}
	}
	return rc
}

// Of returns the canonical fingerprint for an absolute URL: the
// render-control parameters are stripped, the remaining query keys are
// sorted for stability, and the result is scheme://host/path?query.
func Of(u *url.URL) string {
	stripped := strip(u)
	return stripped.String()
}

// TargetURL rewrites u so its scheme/host point at target while keeping
// path and (stripped) query, for issuing the actual render/proxy request.
func TargetURL(u *url.URL, target *url.URL) *url.URL {
	out := strip(u)
	out.Scheme = target.Scheme
	out.Host = target.Host
	return out
}

func strip(u *url.URL) *url.URL {
	out := *u
	out.Fragment = ""
	out.RawFragment = ""

	q := out.Query()
	for key := range reservedParams {
		q.Del(key)
	}

	if len(q) == 0 {
		out.RawQuery = ""
		return &out
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		vals := q[k]
		sort.Strings(vals)
		for j, v := range vals {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	out.RawQuery = b.String()
	return &out
}
