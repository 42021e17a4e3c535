package attribution

import (
	"context"
	"fmt"
	"time"

	"github.com/osteele/liquid"
)

// defaultScriptTemplate is the tracker snippet served to campaign landing
// pages. Rendered output is cached under {prefix}:script:template:* so the
// template engine only runs on cache misses.
const defaultScriptTemplate = `(function () {
  var cfg = {
    endpoint: "{{ base_url }}",
    userCode: "{{ user_code }}",
    campaignCode: "{{ campaign_code }}"
  };
  window.__attrq = window.__attrq || [];
  window.__attr = cfg;
  var s = document.createElement("script");
  s.async = true;
  s.src = cfg.endpoint + "/static/tracker.js";
  document.head.appendChild(s);
})();`

// ScriptRenderer renders the campaign tracking snippet through a liquid
// template, caching rendered output in the context store.
type ScriptRenderer struct {
	engine   *liquid.Engine
	template string
	store    ContextStore
	baseURL  string
	cacheTTL time.Duration
}

// NewScriptRenderer creates a renderer. template may be empty to use the
// built-in snippet.
func NewScriptRenderer(store ContextStore, baseURL, template string, cacheTTL time.Duration) *ScriptRenderer {
	if template == "" {
		template = defaultScriptTemplate
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &ScriptRenderer{
		engine:   liquid.NewEngine(),
		template: template,
		store:    store,
		baseURL:  baseURL,
		cacheTTL: cacheTTL,
	}
}

// Render returns the snippet for one (user, campaign) pair.
func (r *ScriptRenderer) Render(ctx context.Context, userCode, campaignCode string) (string, error) {
	if cached, err := r.store.CachedScript(ctx, userCode, campaignCode); err == nil && cached != "" {
		return cached, nil
	}

	bindings := map[string]interface{}{
		"base_url":      r.baseURL,
		"user_code":     userCode,
		"campaign_code": campaignCode,
	}
	out, err := r.engine.ParseAndRenderString(r.template, bindings)
	if err != nil {
		return "", fmt.Errorf("render tracking script: %w", err)
	}

	if err := r.store.PutCachedScript(ctx, userCode, campaignCode, out, r.cacheTTL); err != nil {
		// Serving uncached output is fine; the next request re-renders.
		return out, nil
	}
	return out, nil
}
