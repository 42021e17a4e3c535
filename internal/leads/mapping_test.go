package leads

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/attribution/internal/domain"
)

func TestResolveParams_PlatformMappingWins(t *testing.T) {
	platform := &domain.AffiliatePlatform{
		ID:   1,
		Slug: "trackpost",
		FieldMapping: map[string]string{
			FieldComposedCode:   "aff_sub",
			FieldLeadStatus:     "goal_status",
			FieldPayoutAmount:   "revenue",
			FieldCurrencyCode:   "revenue_currency",
			FieldPlatformLeadID: "conversion_id",
			FieldOfferID:        "oid",
		},
	}
	values := url.Values{
		"aff_sub":          {"u7xk-CMP-GO-ABCDEFGH12-xk2q"},
		"goal_status":      {"approved"},
		"revenue":          {"9.50"},
		"revenue_currency": {"USD"},
		"conversion_id":    {"evt-123"},
		"oid":              {"777"},
		// Generic params present too; the platform mapping must win.
		"subid1": {"other-code"},
		"amount": {"1.00"},
	}

	r := ResolveParams(values, platform)
	assert.Equal(t, "u7xk-CMP-GO-ABCDEFGH12-xk2q", r.ComposedCode)
	assert.Equal(t, "approved", r.StatusRaw)
	assert.Equal(t, 9.50, r.Payout)
	assert.Equal(t, "USD", r.CurrencyCode)
	assert.Equal(t, "evt-123", r.PlatformLeadID)
	assert.Equal(t, "777", r.OfferID)
}

func TestResolveParams_GenericFallbacks(t *testing.T) {
	values := url.Values{
		"sub3":    {"u7xk-CMP-GO-ABCDEFGH12-xk2q"},
		"status":  {"cancel"},
		"payment": {"4.20"},
		"cy":      {"eur"},
	}

	r := ResolveParams(values, nil)
	assert.Equal(t, "u7xk-CMP-GO-ABCDEFGH12-xk2q", r.ComposedCode)
	assert.Equal(t, "cancel", r.StatusRaw)
	assert.Equal(t, 4.20, r.Payout)
	assert.Equal(t, "eur", r.CurrencyCode)
	assert.Empty(t, r.PlatformLeadID)
}

func TestResolveParams_MappedParamEmptyFallsBack(t *testing.T) {
	platform := &domain.AffiliatePlatform{
		FieldMapping: map[string]string{FieldPayoutAmount: "revenue"},
	}
	values := url.Values{
		"revenue": {""},
		"amount":  {"2.50"},
	}
	r := ResolveParams(values, platform)
	assert.Equal(t, 2.50, r.Payout)
}

func TestResolveParams_OccurredAtFormats(t *testing.T) {
	for raw, want := range map[string]time.Time{
		"1700000000":           time.Unix(1700000000, 0).UTC(),
		"2026-08-01T12:00:00Z": time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		"2026-08-01 12:00:00":  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		"2026-08-01":           time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	} {
		r := ResolveParams(url.Values{"occurred_at": {raw}}, nil)
		require.NotNil(t, r.OccurredAt, "raw %q", raw)
		assert.True(t, r.OccurredAt.Equal(want), "raw %q parsed to %v", raw, r.OccurredAt)
	}

	r := ResolveParams(url.Values{"occurred_at": {"not-a-time"}}, nil)
	assert.Nil(t, r.OccurredAt)
}

func TestResolveParams_BadPayoutIgnored(t *testing.T) {
	r := ResolveParams(url.Values{"amount": {"lots"}}, nil)
	assert.Zero(t, r.Payout)
}

func TestCanonicalLeadStatus_Aliases(t *testing.T) {
	for raw, want := range map[string]domain.LeadStatus{
		"approved":    domain.LeadApproved,
		"APPROVED":    domain.LeadApproved,
		" confirmed ": domain.LeadApproved,
		"cancelled":   domain.LeadCancelled,
		"canceled":    domain.LeadCancelled,
		"cancel":      domain.LeadCancelled,
		"chargeback":  domain.LeadChargeback,
		"charge_back": domain.LeadChargeback,
		"cb":          domain.LeadChargeback,
		"declined":    domain.LeadRejected,
		"trash":       domain.LeadTrash,
		"refund":      domain.LeadRefunded,
		"hold":        domain.LeadProcessing,
		"whatever":    domain.LeadProcessing,
		"":            domain.LeadProcessing,
	} {
		assert.Equal(t, want, domain.CanonicalLeadStatus(raw, nil), "raw %q", raw)
	}
}

func TestCanonicalLeadStatus_PlatformAliasesFirst(t *testing.T) {
	aliases := map[string]domain.LeadStatus{
		"2": domain.LeadApproved,
		"3": domain.LeadRejected,
		// A platform can override a shared alias.
		"trash": domain.LeadRejected,
	}
	assert.Equal(t, domain.LeadApproved, domain.CanonicalLeadStatus("2", aliases))
	assert.Equal(t, domain.LeadRejected, domain.CanonicalLeadStatus("trash", aliases))
	assert.Equal(t, domain.LeadCancelled, domain.CanonicalLeadStatus("cancel", aliases))
}
