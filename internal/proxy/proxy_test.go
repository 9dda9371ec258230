package proxy

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestProxyForwardsVerbatim(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Forwarded-Host"); got == "" {
			t.Error("expected X-Forwarded-Host to be set by the proxy")
		}
		if got := r.Header.Get("X-Forwarded-Proto"); got != "http" {
			t.Errorf("X-Forwarded-Proto = %q, want http", got)
		}
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("origin body"))
	}))
	defer origin.Close()

	target, _ := url.Parse(origin.URL)
	p := New(target, nil)

	req := httptest.NewRequest(http.MethodGet, "http://proxy.example/anything?x=1", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Body.String() != "origin body" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "origin body")
	}
}

func TestProxyReturns502OnDialFailure(t *testing.T) {
	target, _ := url.Parse("http://127.0.0.1:1")
	var gotErr bool
	p := New(target, func(r *http.Request, err error) { gotErr = true })

	req := httptest.NewRequest(http.MethodGet, "http://proxy.example/x", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if !gotErr {
		t.Error("expected onError callback to fire")
	}
}
