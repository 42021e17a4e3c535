package leads

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"

	"github.com/ignite/attribution/internal/domain"
	"github.com/ignite/attribution/internal/metrics"
	"github.com/ignite/attribution/internal/notify"
)

// ErrDuplicateConversion signals a unique-constraint conflict on a
// conversion insert: a concurrent callback created the record first.
var ErrDuplicateConversion = errors.New("duplicate conversion")

// Conversion gate outcomes, in evaluation order.
const (
	ReasonLeadNotApproved         = "lead_not_approved"
	ReasonAlreadyApprovedBefore   = "already_approved_before"
	ReasonConversionExistsForLead = "conversion_exists_for_lead"
	ReasonConversionExistsForPV   = "conversion_exists_for_pageview"
	ReasonCreated                 = "created"
)

// minConversionValue is the sentinel applied when a platform reports a
// non-positive payout; every approved lead must yield a billable-looking
// conversion even with bad upstream data.
const minConversionValue = 1.00

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ConversionRepository is the durable store surface for conversions.
type ConversionRepository interface {
	GetByLeadID(ctx context.Context, leadID int64) (*domain.AdsConversion, error)
	// GetUnlinkedByPageview returns a conversion for (campaign, pageview)
	// that has no lead attached yet, or (nil, nil).
	GetUnlinkedByPageview(ctx context.Context, campaignID, pageviewID int64) (*domain.AdsConversion, error)
	LinkLead(ctx context.Context, conversionID, leadID int64) error
	Insert(ctx context.Context, conv *domain.AdsConversion) error
}

// PageviewMarker flips the conversion flag on a pageview. The operation is
// idempotent: marking twice is a no-op.
type PageviewMarker interface {
	MarkConversion(ctx context.Context, pageviewID int64) error
}

// ConversionResult reports the gate outcome. Conversion is set whenever a
// record exists after the call, created or pre-existing.
type ConversionResult struct {
	Created    bool
	Reason     string
	Conversion *domain.AdsConversion
}

// Converter creates at most one monetary conversion record per eligible
// lead transition.
type Converter struct {
	repo      ConversionRepository
	pageviews PageviewMarker
	ids       *snowflake.Node
	notifier  notify.Notifier
	clock     Clock
}

// NewConverter wires a Converter. pageviews and notifier may be nil.
func NewConverter(repo ConversionRepository, pageviews PageviewMarker, ids *snowflake.Node, notifier notify.Notifier, clock Clock) *Converter {
	if clock == nil {
		clock = systemClock{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Converter{repo: repo, pageviews: pageviews, ids: ids, notifier: notifier, clock: clock}
}

// CreateIfEligible runs the eligibility gate, first failing check wins:
//  1. lead not approved
//  2. lead was already approved before this callback
//  3. a conversion already exists for this lead
//  4. a lead-less conversion exists for this (campaign, pageview): retro-link
//  5. otherwise create, clamping value and sanitizing currency
func (c *Converter) CreateIfEligible(ctx context.Context, lead *domain.Lead, previousStatus domain.LeadStatus) (*ConversionResult, error) {
	if lead.Status != domain.LeadApproved {
		metrics.ConversionsTotal.WithLabelValues(ReasonLeadNotApproved).Inc()
		return &ConversionResult{Reason: ReasonLeadNotApproved}, nil
	}
	if previousStatus == domain.LeadApproved {
		metrics.ConversionsTotal.WithLabelValues(ReasonAlreadyApprovedBefore).Inc()
		return &ConversionResult{Reason: ReasonAlreadyApprovedBefore}, nil
	}

	existing, err := c.repo.GetByLeadID(ctx, lead.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup conversion by lead: %w", err)
	}
	if existing != nil {
		metrics.ConversionsTotal.WithLabelValues(ReasonConversionExistsForLead).Inc()
		return &ConversionResult{Reason: ReasonConversionExistsForLead, Conversion: existing}, nil
	}

	if lead.PageviewID != nil {
		orphan, err := c.repo.GetUnlinkedByPageview(ctx, lead.CampaignID, *lead.PageviewID)
		if err != nil {
			return nil, fmt.Errorf("lookup conversion by pageview: %w", err)
		}
		if orphan != nil {
			// The conversion arrived through another channel before this
			// lead existed; adopt it instead of creating a second one.
			if err := c.repo.LinkLead(ctx, orphan.ID, lead.ID); err != nil {
				return nil, fmt.Errorf("retro-link conversion: %w", err)
			}
			orphan.LeadID = &lead.ID
			metrics.ConversionsTotal.WithLabelValues(ReasonConversionExistsForPV).Inc()
			return &ConversionResult{Reason: ReasonConversionExistsForPV, Conversion: orphan}, nil
		}
	}

	conv := c.build(lead)
	if err := c.repo.Insert(ctx, conv); err != nil {
		if errors.Is(err, ErrDuplicateConversion) {
			// Concurrent callback won the insert race; its row is the record.
			winner, rerr := c.repo.GetByLeadID(ctx, lead.ID)
			if rerr != nil {
				return nil, fmt.Errorf("re-read conversion after conflict: %w", rerr)
			}
			if winner != nil {
				metrics.ConversionsTotal.WithLabelValues(ReasonConversionExistsForLead).Inc()
				return &ConversionResult{Reason: ReasonConversionExistsForLead, Conversion: winner}, nil
			}
		}
		return nil, fmt.Errorf("insert conversion: %w", err)
	}

	c.markPageview(ctx, lead)
	c.notifier.Publish(ctx, notify.Notification{
		UserID: lead.UserID,
		Type:   "conversion_created",
		Payload: map[string]interface{}{
			"conversion_id":    conv.ID,
			"lead_id":          lead.ID,
			"campaign_id":      lead.CampaignID,
			"conversion_value": conv.Value,
			"currency_code":    conv.CurrencyCode,
		},
	})
	metrics.ConversionsTotal.WithLabelValues(ReasonCreated).Inc()
	return &ConversionResult{Created: true, Reason: ReasonCreated, Conversion: conv}, nil
}

func (c *Converter) build(lead *domain.Lead) *domain.AdsConversion {
	value := lead.Payout
	if value <= 0 {
		value = minConversionValue
	}

	currency := strings.ToUpper(strings.TrimSpace(lead.CurrencyCode))
	if !currencyPattern.MatchString(currency) {
		currency = "USD"
	}

	eventTime := c.clock.Now().UTC()
	if lead.OccurredAt != nil {
		eventTime = lead.OccurredAt.UTC()
	}

	leadID := lead.ID
	return &domain.AdsConversion{
		ID:           c.ids.Generate().Int64(),
		UserID:       lead.UserID,
		CampaignID:   lead.CampaignID,
		PageviewID:   lead.PageviewID,
		LeadID:       &leadID,
		Value:        value,
		CurrencyCode: currency,
		EventTime:    eventTime,
		UploadStatus: domain.UploadPending,
		CreatedAt:    c.clock.Now().UTC(),
	}
}

func (c *Converter) markPageview(ctx context.Context, lead *domain.Lead) {
	if c.pageviews == nil || lead.PageviewID == nil {
		return
	}
	if err := c.pageviews.MarkConversion(ctx, *lead.PageviewID); err != nil {
		log.Printf("converter: mark pageview %d: %v", *lead.PageviewID, err)
	}
}
