package domain

import "time"

// UploadStatus tracks the outbound ad-network upload state of a conversion.
// This pipeline only ever creates rows as pending; the uploader owns the rest.
type UploadStatus string

const (
	UploadPending  UploadStatus = "pending"
	UploadUploaded UploadStatus = "uploaded"
	UploadFailed   UploadStatus = "failed"
)

// AdsConversion is the monetary conversion record created once per eligible
// lead transition. LeadID is the primary dedup key when present; the
// (campaign_id, pageview_id) pair is the secondary one, covering conversions
// that arrived before their lead existed and are retro-linked later.
type AdsConversion struct {
	ID           int64        `json:"id" db:"id"`
	UserID       int64        `json:"user_id" db:"user_id"`
	CampaignID   int64        `json:"campaign_id" db:"campaign_id"`
	PageviewID   *int64       `json:"pageview_id" db:"pageview_id"`
	LeadID       *int64       `json:"lead_id" db:"lead_id"`
	Value        float64      `json:"conversion_value" db:"conversion_value"`
	CurrencyCode string       `json:"currency_code" db:"currency_code"`
	EventTime    time.Time    `json:"event_time" db:"event_time"`
	UploadStatus UploadStatus `json:"upload_status" db:"upload_status"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}
