package leads

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/ignite/attribution/internal/domain"
	"github.com/ignite/attribution/internal/metrics"
	"github.com/ignite/attribution/internal/notify"
)

// Sentinel errors shared by lead repositories.
var (
	ErrLeadNotFound     = errors.New("lead not found")
	ErrPlatformNotFound = errors.New("platform not found")
	// ErrDuplicateLead signals a unique-constraint conflict on
	// (platform_id, platform_lead_id): another writer inserted first.
	ErrDuplicateLead = errors.New("duplicate lead")
)

// Upsert operations.
const (
	OpCreated                  = "created"
	OpUpdated                  = "updated"
	OpCreatedWithoutExternalID = "created_without_external_id"
)

// Repository is the durable store surface for leads.
type Repository interface {
	GetByPlatformLeadID(ctx context.Context, platformID int64, platformLeadID string) (*domain.Lead, error)
	Insert(ctx context.Context, lead *domain.Lead) error
	Update(ctx context.Context, lead *domain.Lead) error
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// UpsertInput carries the resolved identity and attributes of one callback.
type UpsertInput struct {
	UserID         int64
	CampaignID     int64
	PageviewID     *int64
	Platform       *domain.AffiliatePlatform
	PlatformLeadID string
	StatusRaw      string
	Payout         float64
	CurrencyCode   string
	OfferID        string
	OccurredAt     *time.Time
}

// UpsertResult reports the lead after the operation and, for updates, its
// pre-update status. PreviousStatus drives the conversion eligibility gate.
type UpsertResult struct {
	Lead           *domain.Lead
	Operation      string
	PreviousStatus domain.LeadStatus
}

// Ingestor performs idempotent lead upserts keyed by
// (platform, platform_lead_id).
type Ingestor struct {
	repo     Repository
	ids      *snowflake.Node
	notifier notify.Notifier
	clock    Clock
}

// NewIngestor wires an Ingestor. notifier may be nil.
func NewIngestor(repo Repository, ids *snowflake.Node, notifier notify.Notifier, clock Clock) *Ingestor {
	if clock == nil {
		clock = systemClock{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Ingestor{repo: repo, ids: ids, notifier: notifier, clock: clock}
}

// Upsert applies one callback. With an external id present it updates the
// existing row in place or inserts a new one; a unique-constraint conflict
// on insert means a concurrent callback won, and the operation re-reads the
// winning row and proceeds as an update. Without an external id every
// callback inserts; duplicates are unavoidable in that case.
func (s *Ingestor) Upsert(ctx context.Context, in UpsertInput) (*UpsertResult, error) {
	var platformAliases map[string]domain.LeadStatus
	if in.Platform != nil {
		platformAliases = in.Platform.StatusAliases
	}
	status := domain.CanonicalLeadStatus(in.StatusRaw, platformAliases)

	if in.PlatformLeadID == "" {
		lead, err := s.insert(ctx, in, status)
		if err != nil {
			return nil, err
		}
		metrics.LeadCallbacksTotal.WithLabelValues(OpCreatedWithoutExternalID).Inc()
		s.notifyTransition(ctx, lead, "", true)
		return &UpsertResult{Lead: lead, Operation: OpCreatedWithoutExternalID}, nil
	}

	existing, err := s.repo.GetByPlatformLeadID(ctx, in.platformID(), in.PlatformLeadID)
	if err != nil && !errors.Is(err, ErrLeadNotFound) {
		return nil, fmt.Errorf("lookup lead: %w", err)
	}

	if existing == nil {
		lead, err := s.insert(ctx, in, status)
		if errors.Is(err, ErrDuplicateLead) {
			// The other writer already handled creation; fall through to the
			// update path against its row.
			existing, err = s.repo.GetByPlatformLeadID(ctx, in.platformID(), in.PlatformLeadID)
			if err != nil {
				return nil, fmt.Errorf("re-read lead after conflict: %w", err)
			}
		} else if err != nil {
			return nil, err
		} else {
			metrics.LeadCallbacksTotal.WithLabelValues(OpCreated).Inc()
			s.notifyTransition(ctx, lead, "", true)
			return &UpsertResult{Lead: lead, Operation: OpCreated}, nil
		}
	}

	previous := existing.Status
	s.applyAttributes(existing, in, status)
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}
	metrics.LeadCallbacksTotal.WithLabelValues(OpUpdated).Inc()
	if previous != existing.Status {
		s.notifyTransition(ctx, existing, previous, false)
	}
	return &UpsertResult{Lead: existing, Operation: OpUpdated, PreviousStatus: previous}, nil
}

func (in UpsertInput) platformID() int64 {
	if in.Platform == nil {
		return 0
	}
	return in.Platform.ID
}

func (s *Ingestor) insert(ctx context.Context, in UpsertInput, status domain.LeadStatus) (*domain.Lead, error) {
	now := s.clock.Now().UTC()
	lead := &domain.Lead{
		ID:             s.ids.Generate().Int64(),
		UserID:         in.UserID,
		CampaignID:     in.CampaignID,
		PageviewID:     in.PageviewID,
		PlatformID:     in.platformID(),
		PlatformLeadID: in.PlatformLeadID,
		Status:         status,
		StatusRaw:      in.StatusRaw,
		Payout:         in.Payout,
		CurrencyCode:   in.CurrencyCode,
		OfferID:        in.OfferID,
		OccurredAt:     in.OccurredAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, lead); err != nil {
		if errors.Is(err, ErrDuplicateLead) {
			return nil, err
		}
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	return lead, nil
}

func (s *Ingestor) applyAttributes(lead *domain.Lead, in UpsertInput, status domain.LeadStatus) {
	lead.Status = status
	lead.StatusRaw = in.StatusRaw
	lead.Payout = in.Payout
	lead.CurrencyCode = in.CurrencyCode
	lead.OfferID = in.OfferID
	if in.OccurredAt != nil {
		lead.OccurredAt = in.OccurredAt
	}
	if lead.PageviewID == nil && in.PageviewID != nil {
		lead.PageviewID = in.PageviewID
	}
	lead.UpdatedAt = s.clock.Now().UTC()
}

func (s *Ingestor) notifyTransition(ctx context.Context, lead *domain.Lead, previous domain.LeadStatus, created bool) {
	kind := "lead_status_changed"
	if created {
		kind = "lead_created"
	}
	payload := map[string]interface{}{
		"lead_id":     lead.ID,
		"campaign_id": lead.CampaignID,
		"lead_status": string(lead.Status),
	}
	if previous != "" {
		payload["previous_status"] = string(previous)
	}
	s.notifier.Publish(ctx, notify.Notification{
		UserID:  lead.UserID,
		Type:    kind,
		Payload: payload,
	})
	log.Printf("lead %s: id=%d campaign=%d status=%s", kind, lead.ID, lead.CampaignID, lead.Status)
}
