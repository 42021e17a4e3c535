package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ignite/attribution/internal/attribution"
	"github.com/ignite/attribution/internal/pkg/logger"
)

type collectBody struct {
	UserCode     string `json:"user_code" validate:"required"`
	CampaignCode string `json:"campaign_code" validate:"required"`
	VisitorCode  string `json:"visitor_code"`
	AuthTS       int64  `json:"auth_ts" validate:"required"`
	AuthNonce    string `json:"auth_nonce" validate:"required"`
	AuthSig      string `json:"auth_sig" validate:"required"`

	URL        string `json:"url" validate:"required"`
	LandingURL string `json:"landing_url"`
	Referrer   string `json:"referrer"`
	UserAgent  string `json:"user_agent"`

	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	UTMTerm     string `json:"utm_term"`
	UTMContent  string `json:"utm_content"`

	GCLID         string `json:"gclid"`
	FBCLID        string `json:"fbclid"`
	TTCLID        string `json:"ttclid"`
	MSCLKID       string `json:"msclkid"`
	WBRAID        string `json:"wbraid"`
	GBRAID        string `json:"gbraid"`
	GAdCampaignID string `json:"gad_campaignid"`
}

// HandleCollect records one pageview. Validation failures are 4xx with a
// reason; infrastructure failures are 500.
func (h *Handlers) HandleCollect(w http.ResponseWriter, r *http.Request) {
	var body collectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		writeJSONError(w, "missing required field", http.StatusBadRequest)
		return
	}

	userAgent := body.UserAgent
	if userAgent == "" {
		userAgent = r.UserAgent()
	}

	result, err := h.collector.Collect(r.Context(), attribution.CollectRequest{
		UserCode:     body.UserCode,
		CampaignCode: body.CampaignCode,
		VisitorCode:  body.VisitorCode,
		AuthTS:       body.AuthTS,
		AuthNonce:    body.AuthNonce,
		AuthSig:      body.AuthSig,

		URL:        body.URL,
		LandingURL: body.LandingURL,
		Referrer:   body.Referrer,
		UserAgent:  userAgent,
		IPAddress:  realIP(r),

		UTMSource:   body.UTMSource,
		UTMMedium:   body.UTMMedium,
		UTMCampaign: body.UTMCampaign,
		UTMTerm:     body.UTMTerm,
		UTMContent:  body.UTMContent,

		GCLID:         body.GCLID,
		FBCLID:        body.FBCLID,
		TTCLID:        body.TTCLID,
		MSCLKID:       body.MSCLKID,
		WBRAID:        body.WBRAID,
		GBRAID:        body.GBRAID,
		GAdCampaignID: body.GAdCampaignID,
	})
	if err != nil {
		var verr *attribution.ValidationError
		if errors.As(err, &verr) {
			writeJSONError(w, verr.Message, http.StatusBadRequest)
			return
		}
		logger.Error("collect failed", "error", err, "ip_address", realIP(r))
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
