package api

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/attribution/internal/attribution"
	"github.com/ignite/attribution/internal/domain"
	"github.com/ignite/attribution/internal/pkg/logger"
)

type eventBody struct {
	UserCode     string `json:"user_code" validate:"required"`
	CampaignCode string `json:"campaign_code" validate:"required"`
	PageviewCode string `json:"pageview_code" validate:"required"`
	EventSig     string `json:"event_sig" validate:"required"`
	EventType    string `json:"event_type" validate:"required"`

	TargetURL      string `json:"target_url"`
	ElementID      string `json:"element_id"`
	ElementName    string `json:"element_name"`
	ElementClasses string `json:"element_classes"`

	FormFieldsChecked int  `json:"form_fields_checked"`
	FormFieldsFilled  int  `json:"form_fields_filled"`
	FormHasUserData   bool `json:"form_has_user_data"`

	EventTS int64 `json:"event_ts"`
}

type eventResponse struct {
	OK      bool   `json:"ok"`
	EventID int64  `json:"event_id,omitempty"`
	Ignored bool   `json:"ignored,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// HandleEvent records a behavioral event. Business outcomes, recorded or
// ignored, are both HTTP 200: the calling script runs on third-party pages
// and must never branch on attribution internals. Only malformed transport
// gets a 4xx.
func (h *Handlers) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var body eventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		writeJSONError(w, "missing required field", http.StatusBadRequest)
		return
	}

	outcome, err := h.recorder.Record(r.Context(), attribution.RecordRequest{
		UserCode:     body.UserCode,
		CampaignCode: body.CampaignCode,
		PageviewCode: body.PageviewCode,
		EventSig:     body.EventSig,

		EventType:      domain.EventType(body.EventType),
		TargetURL:      body.TargetURL,
		ElementID:      body.ElementID,
		ElementName:    body.ElementName,
		ElementClasses: body.ElementClasses,

		FormFieldsChecked: body.FormFieldsChecked,
		FormFieldsFilled:  body.FormFieldsFilled,
		FormHasUserData:   body.FormHasUserData,

		EventTS: body.EventTS,
	})
	if err != nil {
		// Infrastructure failure. Still answer ok; the client can do nothing
		// useful with the distinction.
		logger.Error("event write failed", "error", err, "pageview_code", body.PageviewCode)
		writeJSON(w, http.StatusOK, eventResponse{OK: true, Ignored: true, Reason: "internal"})
		return
	}

	if outcome.Ignored {
		writeJSON(w, http.StatusOK, eventResponse{OK: true, Ignored: true, Reason: outcome.Reason})
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{OK: true, EventID: outcome.EventID})
}
