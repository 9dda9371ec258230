package router

import (
	"encoding/json"
	"net/http"

	"github.com/seoshield/seo-shield-proxy/internal/botclassifier"
	"github.com/seoshield/seo-shield-proxy/internal/cacherule"
	"github.com/seoshield/seo-shield-proxy/internal/renderer"
)

// debugEnvelope is the `?render=debug`/`?_render=debug` JSON diagnostic
// payload: the raw render result plus the decisions and classification
// that produced it, instead of the rendered HTML body.
type debugEnvelope struct {
	TargetURL      string   `json:"target_url"`
	Status         int      `json:"status"`
	DurationMS     int64    `json:"duration_ms"`
	BlockedCount   int      `json:"blocked_requests"`
	AllowedCount   int      `json:"allowed_requests"`
	BodyBytes      int      `json:"body_bytes"`
	Soft404Reasons []string `json:"soft_404_reasons,omitempty"`

	CacheStatus string `json:"cache_status"`
	ShouldCache bool   `json:"should_cache"`
	CacheReason string `json:"cache_reason"`

	IsBot        bool     `json:"is_bot"`
	BotType      string   `json:"bot_type"`
	Confidence   float64  `json:"confidence"`
	RulesMatched []string `json:"rules_matched,omitempty"`
	Action       string   `json:"action"`

	BreakerState string `json:"breaker_state,omitempty"`
}

func (r *Router) writeDebugEnvelope(w http.ResponseWriter, targetURL string, result renderer.Result, decision cacherule.Decision, bc botclassifier.Classification, cacheStatus string) {
	env := debugEnvelope{
		TargetURL:      targetURL,
		Status:         result.Status,
		DurationMS:     result.DurationMS,
		BlockedCount:   result.BlockedCount,
		AllowedCount:   result.AllowedCount,
		BodyBytes:      len(result.Body),
		Soft404Reasons: result.Soft404Reasons,
		CacheStatus:    cacheStatus,
		ShouldCache:    decision.ShouldCache,
		CacheReason:    decision.Reason,
		IsBot:          bc.IsBot,
		BotType:        string(bc.BotType),
		Confidence:     bc.Confidence,
		RulesMatched:   bc.RulesMatched,
		Action:         string(bc.Action),
	}
	if r.deps.BreakerState != nil {
		env.BreakerState = r.deps.BreakerState()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(env)
}
