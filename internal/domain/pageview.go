package domain

import "time"

// Pageview is one visit-collection event. Created once by the collector,
// later mutated in place by classification jobs and conversion marking.
// The pipeline never deletes pageviews.
type Pageview struct {
	ID          int64  `json:"id" db:"id"`
	CampaignID  int64  `json:"campaign_id" db:"campaign_id"`
	UserID      int64  `json:"user_id" db:"user_id"`
	VisitorCode string `json:"visitor_code" db:"visitor_code"`

	URL        string `json:"url" db:"url"`
	LandingURL string `json:"landing_url" db:"landing_url"`
	Referrer   string `json:"referrer" db:"referrer"`
	UserAgent  string `json:"user_agent" db:"user_agent"`
	IPAddress  string `json:"ip_address" db:"ip_address"`
	Unique     bool   `json:"unique" db:"is_unique"`

	UTMSource   string `json:"utm_source" db:"utm_source"`
	UTMMedium   string `json:"utm_medium" db:"utm_medium"`
	UTMCampaign string `json:"utm_campaign" db:"utm_campaign"`
	UTMTerm     string `json:"utm_term" db:"utm_term"`
	UTMContent  string `json:"utm_content" db:"utm_content"`

	GCLID         string `json:"gclid" db:"gclid"`
	FBCLID        string `json:"fbclid" db:"fbclid"`
	TTCLID        string `json:"ttclid" db:"ttclid"`
	MSCLKID       string `json:"msclkid" db:"msclkid"`
	WBRAID        string `json:"wbraid" db:"wbraid"`
	GBRAID        string `json:"gbraid" db:"gbraid"`
	GAdCampaignID string `json:"gad_campaignid" db:"gad_campaignid"`

	// Classification fields, NULL until the device/IP classifiers run.
	DeviceCategory *string `json:"device_category" db:"device_category"`
	Browser        *string `json:"browser" db:"browser"`
	OS             *string `json:"os" db:"os"`
	IPCategory     *string `json:"ip_category" db:"ip_category"`
	Country        *string `json:"country" db:"country"`
	Region         *string `json:"region" db:"region"`
	City           *string `json:"city" db:"city"`

	Conversion bool      `json:"conversion" db:"conversion"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// EventType enumerates the closed set of behavioral event types.
type EventType string

const (
	EventPageEngaged EventType = "page_engaged"
	EventLinkClick   EventType = "link_click"
	EventFormSubmit  EventType = "form_submit"
	EventPageEnter   EventType = "page_enter"
	EventPageLeave   EventType = "page_leave"
)

// ValidEventType reports whether t is one of the known event types.
func ValidEventType(t EventType) bool {
	switch t {
	case EventPageEngaged, EventLinkClick, EventFormSubmit, EventPageEnter, EventPageLeave:
		return true
	}
	return false
}

// PageviewEvent is an append-only behavioral event row. No idempotency key
// exists; duplicate submissions produce duplicate rows and readers dedup.
type PageviewEvent struct {
	ID         int64     `json:"id" db:"id"`
	PageviewID int64     `json:"pageview_id" db:"pageview_id"`
	EventType  EventType `json:"event_type" db:"event_type"`

	TargetURL      string `json:"target_url" db:"target_url"`
	ElementID      string `json:"element_id" db:"element_id"`
	ElementName    string `json:"element_name" db:"element_name"`
	ElementClasses string `json:"element_classes" db:"element_classes"`

	FormFieldsChecked int  `json:"form_fields_checked" db:"form_fields_checked"`
	FormFieldsFilled  int  `json:"form_fields_filled" db:"form_fields_filled"`
	FormHasUserData   bool `json:"form_has_user_data" db:"form_has_user_data"`

	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
