package renderer

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// networkIdleWindow is the "no in-flight requests for 500ms" window
// tier 1 (networkidle0) waits for.
const networkIdleWindow = 500 * time.Millisecond

// relaxedIdleWindow approximates tier 2 (networkidle2, "≤2 in-flight
// requests"): rod has no direct in-flight-count wait primitive, so a
// shorter idle settle window stands in for the looser criterion.
const relaxedIdleWindow = 200 * time.Millisecond

// domSettleWait is tier 3's fixed settle time after domcontentloaded.
const domSettleWait = 2 * time.Second

// navigateWithFallback is the three-tier navigation strategy. Each
// tier re-navigates and applies a progressively looser
// wait condition; the first tier to succeed wins.
func navigateWithFallback(page *rod.Page, targetURL string) error {
	tiers := []func(*rod.Page) error{
		func(p *rod.Page) error {
			if err := p.Navigate(targetURL); err != nil {
				return err
			}
			p.WaitRequestIdle(networkIdleWindow, nil, nil, nil)()
			return p.GetContext().Err()
		},
		func(p *rod.Page) error {
			if err := p.Navigate(targetURL); err != nil {
				return err
			}
			p.WaitRequestIdle(relaxedIdleWindow, nil, nil, nil)()
			return p.GetContext().Err()
		},
		func(p *rod.Page) error {
			wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
			if err := p.Navigate(targetURL); err != nil {
				return err
			}
			wait()
			if err := p.GetContext().Err(); err != nil {
				return err
			}
			time.Sleep(domSettleWait)
			return nil
		},
	}

	var lastErr error
	for _, tier := range tiers {
		if err := tier(page); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return categorize(lastErr)
}

// categorize maps a rod/context error into one of the package's
// sentinel errors.
func categorize(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrNavigationTimeout
	case errors.Is(err, context.Canceled):
		return ErrNavigationTimeout
	default:
		return ErrProtocolError
	}
}

// extractStatusCode looks for the prerender-status-code meta tag
// in-page and parses it if present and in [100, 600).
func extractStatusCode(page *rod.Page, metaTag string) (status int, declared bool) {
	js := `(name) => {
		const el = document.querySelector('meta[name="' + name + '"]');
		return el ? el.getAttribute('content') : null;
	}`
	res, err := page.Eval(js, metaTag)
	if err != nil {
		return 0, false
	}
	return parseDeclaredStatus(res.Value)
}

// parseDeclaredStatus interprets the eval result: null means the page
// declared no status tag at all.
func parseDeclaredStatus(v gson.JSON) (int, bool) {
	if v.Nil() {
		return 0, false
	}
	content := strings.TrimSpace(v.Str())
	if content == "" {
		return 0, false
	}
	code, err := strconv.Atoi(content)
	if err != nil || code < 100 || code >= 600 {
		return 0, false
	}
	return code, true
}
