package domain

import (
	"strings"
	"time"
)

// LeadStatus is the canonical lead state. Platforms report arbitrary raw
// strings; they are mapped through the alias table below and the raw value
// is preserved on the row for audit.
type LeadStatus string

const (
	LeadProcessing LeadStatus = "processing"
	LeadRejected   LeadStatus = "rejected"
	LeadTrash      LeadStatus = "trash"
	LeadApproved   LeadStatus = "approved"
	LeadCancelled  LeadStatus = "cancelled"
	LeadRefunded   LeadStatus = "refunded"
	LeadChargeback LeadStatus = "chargeback"
)

// statusAliases is the shared fallback table mapping raw platform values to
// canonical statuses. Per-platform overrides are consulted first; anything
// that resolves through neither falls back to LeadProcessing. Reporting
// surfaces must use this same table to avoid drift.
var statusAliases = map[string]LeadStatus{
	"processing": LeadProcessing,
	"pending":    LeadProcessing,
	"hold":       LeadProcessing,
	"new":        LeadProcessing,

	"rejected": LeadRejected,
	"reject":   LeadRejected,
	"declined": LeadRejected,

	"trash":     LeadTrash,
	"trashed":   LeadTrash,
	"duplicate": LeadTrash,

	"approved":  LeadApproved,
	"approve":   LeadApproved,
	"confirmed": LeadApproved,
	"sale":      LeadApproved,
	"paid":      LeadApproved,

	"cancelled": LeadCancelled,
	"canceled":  LeadCancelled,
	"cancel":    LeadCancelled,

	"refunded": LeadRefunded,
	"refund":   LeadRefunded,

	"chargeback":  LeadChargeback,
	"charge_back": LeadChargeback,
	"cb":          LeadChargeback,
}

// CanonicalLeadStatus resolves a raw platform status through the given
// per-platform alias map first, then the shared fallback table, then
// defaults to LeadProcessing.
func CanonicalLeadStatus(raw string, platformAliases map[string]LeadStatus) LeadStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := platformAliases[key]; ok {
		return s
	}
	if s, ok := statusAliases[key]; ok {
		return s
	}
	return LeadProcessing
}

// AffiliatePlatform describes an external platform that reports leads via
// callback. FieldMapping maps the canonical callback fields to that
// platform's query-parameter names.
type AffiliatePlatform struct {
	ID            int64                 `json:"id" db:"id"`
	Slug          string                `json:"slug" db:"slug"`
	Name          string                `json:"name" db:"name"`
	FieldMapping  map[string]string     `json:"field_mapping" db:"field_mapping"`
	StatusAliases map[string]LeadStatus `json:"status_aliases" db:"status_aliases"`
	CreatedAt     time.Time             `json:"created_at" db:"created_at"`
}

// Lead is externally reported lead state. When PlatformLeadID is non-empty,
// (platform_id, platform_lead_id) is unique and repeated callbacks update the
// row in place. Without an external id every callback creates a new row;
// deduplication is impossible in that case by design.
type Lead struct {
	ID             int64      `json:"id" db:"id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	CampaignID     int64      `json:"campaign_id" db:"campaign_id"`
	PageviewID     *int64     `json:"pageview_id" db:"pageview_id"`
	PlatformID     int64      `json:"platform_id" db:"platform_id"`
	PlatformLeadID string     `json:"platform_lead_id" db:"platform_lead_id"`
	Status         LeadStatus `json:"lead_status" db:"lead_status"`
	StatusRaw      string     `json:"status_raw" db:"status_raw"`
	Payout         float64    `json:"payout" db:"payout"`
	CurrencyCode   string     `json:"currency_code" db:"currency_code"`
	OfferID        string     `json:"offer_id" db:"offer_id"`
	OccurredAt     *time.Time `json:"occurred_at" db:"occurred_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
