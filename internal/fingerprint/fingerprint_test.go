package fingerprint

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

func TestOfStripsRenderControlParams(t *testing.T) {
	a := mustParse(t, "https://example.com/product/42?render=preview&color=red")
	b := mustParse(t, "https://example.com/product/42?color=red")

	if Of(a) != Of(b) {
		t.Errorf("fingerprints differ: %q vs %q", Of(a), Of(b))
	}
}

func TestOfStripsUnderscoreRenderParam(t *testing.T) {
	a := mustParse(t, "https://example.com/p?_render=debug&q=1")
	b := mustParse(t, "https://example.com/p?q=1")

	if Of(a) != Of(b) {
		t.Errorf("fingerprints differ: %q vs %q", Of(a), Of(b))
	}
}

func TestOfIsStableUnderQueryOrdering(t *testing.T) {
	a := mustParse(t, "https://example.com/p?b=2&a=1")
	b := mustParse(t, "https://example.com/p?a=1&b=2")

	if Of(a) != Of(b) {
		t.Errorf("fingerprints differ: %q vs %q", Of(a), Of(b))
	}
}

func TestParseRenderControl(t *testing.T) {
	cases := []struct {
		raw       string
		wantForce bool
		wantDebug bool
	}{
		{"https://example.com/p", false, false},
		{"https://example.com/p?render=true", true, false},
		{"https://example.com/p?render=preview", true, false},
		{"https://example.com/p?_render=debug", true, true},
	}

	for _, tc := range cases {
		rc := Parse(mustParse(t, tc.raw))
		if rc.Force != tc.wantForce || rc.Debug != tc.wantDebug {
			t.Errorf("Parse(%q) = %+v, want force=%v debug=%v", tc.raw, rc, tc.wantForce, tc.wantDebug)
		}
	}
}

func TestTargetURLRewritesHost(t *testing.T) {
	u := mustParse(t, "https://proxy.example.com/product/42?render=true&x=1")
	target := mustParse(t, "https://origin.internal")

	out := TargetURL(u, target)
	if out.Scheme != "https" || out.Host != "origin.internal" {
		t.Errorf("TargetURL scheme/host = %s/%s, want https/origin.internal", out.Scheme, out.Host)
	}
	if out.Query().Get("render") != "" {
		t.Error("TargetURL should strip render-control params")
	}
	if out.Query().Get("x") != "1" {
		t.Error("TargetURL should keep non-reserved params")
	}
}
