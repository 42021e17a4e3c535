package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/attribution/internal/pkg/logger"
)

// HandleScript serves the embeddable tracking snippet for one
// (user, campaign) pair.
func (h *Handlers) HandleScript(w http.ResponseWriter, r *http.Request) {
	userCode := chi.URLParam(r, "userCode")
	campaignCode := chi.URLParam(r, "campaignCode")

	out, err := h.scripts.Render(r.Context(), userCode, campaignCode)
	if err != nil {
		logger.Error("script render failed", "error", err, "campaign_code", campaignCode)
		http.Error(w, "// script unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write([]byte(out))
}
