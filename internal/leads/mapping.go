// Package leads handles affiliate platform callbacks: resolving
// platform-specific query parameters, idempotent lead upserts and the
// status-gated creation of conversion records.
package leads

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/attribution/internal/domain"
)

// Canonical callback fields. Platform field mappings are keyed by this
// closed set; anything else in a mapping is ignored.
const (
	FieldLeadStatus     = "lead_status"
	FieldPayoutAmount   = "payout_amount"
	FieldCurrencyCode   = "currency_code"
	FieldPlatformLeadID = "platform_lead_id"
	FieldOccurredAt     = "occurred_at"
	FieldOfferID        = "offer_id"
	FieldComposedCode   = "composed_code"
)

// Generic parameter fallbacks, consulted when the platform mapping does not
// name a parameter or the named one is empty. Resolution order is always:
// platform mapping, then fallbacks, then default.
var genericFallbacks = map[string][]string{
	FieldComposedCode:   {"subid1", "subid2", "subid3", "subid4", "subid5", "sub1", "sub2", "sub3", "sub4", "sub5"},
	FieldLeadStatus:     {"status", "lead_status"},
	FieldPayoutAmount:   {"amount", "payment", "payout"},
	FieldCurrencyCode:   {"cy", "currency"},
	FieldPlatformLeadID: {"lead_id", "transaction_id", "txid"},
	FieldOccurredAt:     {"occurred_at", "time", "ts"},
	FieldOfferID:        {"offer_id", "offer"},
}

// ResolvedCallback is the typed view of one callback's query parameters.
type ResolvedCallback struct {
	ComposedCode   string
	StatusRaw      string
	PlatformLeadID string
	Payout         float64
	CurrencyCode   string
	OfferID        string
	OccurredAt     *time.Time
}

// ResolveParams extracts the canonical fields from a callback's query
// parameters using the platform's field mapping with generic fallbacks.
func ResolveParams(values url.Values, platform *domain.AffiliatePlatform) ResolvedCallback {
	pick := func(field string) string {
		if platform != nil {
			if param, ok := platform.FieldMapping[field]; ok && param != "" {
				if v := strings.TrimSpace(values.Get(param)); v != "" {
					return v
				}
			}
		}
		for _, param := range genericFallbacks[field] {
			if v := strings.TrimSpace(values.Get(param)); v != "" {
				return v
			}
		}
		return ""
	}

	out := ResolvedCallback{
		ComposedCode:   pick(FieldComposedCode),
		StatusRaw:      pick(FieldLeadStatus),
		PlatformLeadID: pick(FieldPlatformLeadID),
		CurrencyCode:   pick(FieldCurrencyCode),
		OfferID:        pick(FieldOfferID),
	}
	if raw := pick(FieldPayoutAmount); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			out.Payout = v
		}
	}
	if raw := pick(FieldOccurredAt); raw != "" {
		if ts := parseOccurredAt(raw); ts != nil {
			out.OccurredAt = ts
		}
	}
	return out
}

// parseOccurredAt accepts unix seconds, RFC 3339 or "2006-01-02 15:04:05".
func parseOccurredAt(raw string) *time.Time {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		t := time.Unix(secs, 0).UTC()
		return &t
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
