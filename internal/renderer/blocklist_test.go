package renderer

import "testing"

func TestBlocklistDomainExactAndParentMatch(t *testing.T) {
	bl := NewBlocklist([]string{"google-analytics.com"}, nil)

	if !bl.IsBlocked("google-analytics.com", "/collect") {
		t.Error("expected exact domain match to block")
	}
	if !bl.IsBlocked("www.google-analytics.com", "/r/collect") {
		t.Error("expected subdomain to inherit parent block")
	}
	if bl.IsBlocked("example.com", "/") {
		t.Error("expected unrelated domain to pass")
	}
}

func TestBlocklistPathSubstring(t *testing.T) {
	bl := NewBlocklist(nil, []string{"/gtm", "/pixel"})

	if !bl.IsBlocked("cdn.example.com", "/gtm.js") {
		t.Error("expected /gtm path substring to block")
	}
	if bl.IsBlocked("cdn.example.com", "/app.js") {
		t.Error("expected unrelated path to pass")
	}
}

func TestBlocklistReload(t *testing.T) {
	bl := NewBlocklist([]string{"old.example.com"}, nil)
	bl.Reload([]string{"new.example.com"}, []string{"/tracking"})

	if bl.IsBlocked("old.example.com", "/") {
		t.Error("expected old domain to be gone after reload")
	}
	if !bl.IsBlocked("new.example.com", "/") {
		t.Error("expected new domain to be blocked after reload")
	}
}
