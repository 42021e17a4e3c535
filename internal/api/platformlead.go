package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/attribution/internal/attribution"
	"github.com/ignite/attribution/internal/codes"
	"github.com/ignite/attribution/internal/leads"
	"github.com/ignite/attribution/internal/pkg/logger"
)

type platformLeadResponse struct {
	OK       bool                 `json:"ok"`
	Resolved platformLeadResolved `json:"resolved"`
}

type platformLeadResolved struct {
	Platform       string  `json:"platform"`
	CampaignCode   string  `json:"campaign_code"`
	LeadID         int64   `json:"lead_id"`
	PageviewID     *int64  `json:"pageview_id,omitempty"`
	PlatformLeadID string  `json:"platform_lead_id,omitempty"`
	Status         string  `json:"lead_status"`
	Operation      string  `json:"operation"`
	Payout         float64 `json:"payout"`
	CurrencyCode   string  `json:"currency_code"`

	ConversionCreated bool   `json:"conversion_created"`
	ConversionID      int64  `json:"conversion_id,omitempty"`
	ConversionReason  string `json:"conversion_reason,omitempty"`
}

// HandlePlatformLead ingests one affiliate callback: resolve the platform's
// field mapping, split the composed code back into its tokens, upsert the
// lead, then run the conversion gate.
func (h *Handlers) HandlePlatformLead(w http.ResponseWriter, r *http.Request) {
	platformSlug := chi.URLParam(r, "platformSlug")
	userCode := chi.URLParam(r, "userCode")

	platform, err := h.platforms.GetBySlug(r.Context(), platformSlug)
	if err != nil {
		if errors.Is(err, leads.ErrPlatformNotFound) {
			writeJSONError(w, "unknown platform", http.StatusNotFound)
			return
		}
		logger.Error("platform-lead platform lookup failed", "error", err, "platform", platformSlug)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	resolved := leads.ResolveParams(r.URL.Query(), platform)
	userToken, campaignCode, pageviewToken, ok := codes.SplitComposedCode(resolved.ComposedCode)
	if !ok || userToken != userCode {
		writeJSONError(w, "invalid composed code", http.StatusBadRequest)
		return
	}

	userID, ok := h.codec.Decode(userCode)
	if !ok {
		writeJSONError(w, "invalid user", http.StatusBadRequest)
		return
	}

	campaign, err := h.campaigns.GetByCode(r.Context(), campaignCode)
	if err != nil {
		if errors.Is(err, attribution.ErrCampaignNotFound) {
			writeJSONError(w, "invalid campaign", http.StatusBadRequest)
			return
		}
		logger.Error("platform-lead campaign lookup failed", "error", err, "platform", platformSlug)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if campaign.UserID != userID {
		writeJSONError(w, "invalid campaign", http.StatusBadRequest)
		return
	}

	// The pageview token is best-effort linkage; a garbled token degrades
	// to an unlinked lead rather than failing the callback.
	var pageviewID *int64
	if id, ok := h.codec.Decode(pageviewToken); ok {
		pageviewID = &id
	}

	result, err := h.ingestor.Upsert(r.Context(), leads.UpsertInput{
		UserID:         userID,
		CampaignID:     campaign.ID,
		PageviewID:     pageviewID,
		Platform:       platform,
		PlatformLeadID: resolved.PlatformLeadID,
		StatusRaw:      resolved.StatusRaw,
		Payout:         resolved.Payout,
		CurrencyCode:   resolved.CurrencyCode,
		OfferID:        resolved.OfferID,
		OccurredAt:     resolved.OccurredAt,
	})
	if err != nil {
		logger.Error("platform-lead upsert failed", "error", err, "platform", platformSlug)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	conv, err := h.converter.CreateIfEligible(r.Context(), result.Lead, result.PreviousStatus)
	if err != nil {
		logger.Error("platform-lead conversion gate failed", "error", err, "platform", platformSlug)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := platformLeadResponse{
		OK: true,
		Resolved: platformLeadResolved{
			Platform:       platform.Slug,
			CampaignCode:   campaign.Code,
			LeadID:         result.Lead.ID,
			PageviewID:     result.Lead.PageviewID,
			PlatformLeadID: result.Lead.PlatformLeadID,
			Status:         string(result.Lead.Status),
			Operation:      result.Operation,

			Payout:       result.Lead.Payout,
			CurrencyCode: result.Lead.CurrencyCode,

			ConversionCreated: conv.Created,
			ConversionReason:  conv.Reason,
		},
	}
	if conv.Conversion != nil {
		resp.Resolved.ConversionID = conv.Conversion.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
