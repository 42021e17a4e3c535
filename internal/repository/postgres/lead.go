package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/attribution/internal/domain"
	"github.com/ignite/attribution/internal/leads"
)

// LeadRepo implements leads.Repository against PostgreSQL. The
// (platform_id, platform_lead_id) unique index is the dedup authority;
// a violation surfaces as leads.ErrDuplicateLead so the ingestor can fall
// through to an update.
type LeadRepo struct{ db *sql.DB }

// NewLeadRepo creates a Postgres-backed lead repository.
func NewLeadRepo(db *sql.DB) *LeadRepo { return &LeadRepo{db: db} }

const leadColumns = `id, user_id, campaign_id, pageview_id, platform_id,
	       COALESCE(platform_lead_id,''), lead_status, status_raw, payout,
	       currency_code, COALESCE(offer_id,''), occurred_at, created_at, updated_at`

func (r *LeadRepo) GetByPlatformLeadID(ctx context.Context, platformID int64, platformLeadID string) (*domain.Lead, error) {
	l := &domain.Lead{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE platform_id = $1 AND platform_lead_id = $2
	`, platformID, platformLeadID).Scan(
		&l.ID, &l.UserID, &l.CampaignID, &l.PageviewID, &l.PlatformID,
		&l.PlatformLeadID, &l.Status, &l.StatusRaw, &l.Payout,
		&l.CurrencyCode, &l.OfferID, &l.OccurredAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, leads.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

func (r *LeadRepo) Insert(ctx context.Context, l *domain.Lead) error {
	// Empty external ids are stored as NULL so the unique index never
	// collides rows that cannot be deduplicated.
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO leads
			(id, user_id, campaign_id, pageview_id, platform_id, platform_lead_id,
			 lead_status, status_raw, payout, currency_code, offer_id, occurred_at,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), $7, $8, $9, $10, NULLIF($11,''), $12, NOW(), NOW())
		RETURNING created_at, updated_at
	`, l.ID, l.UserID, l.CampaignID, l.PageviewID, l.PlatformID, l.PlatformLeadID,
		l.Status, l.StatusRaw, l.Payout, l.CurrencyCode, l.OfferID, l.OccurredAt).
		Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return leads.ErrDuplicateLead
		}
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (r *LeadRepo) Update(ctx context.Context, l *domain.Lead) error {
	// pageview_id is write-once: a later callback may backfill the linkage,
	// but an established one is never overwritten or cleared.
	res, err := r.db.ExecContext(ctx, `
		UPDATE leads
		SET lead_status = $1, status_raw = $2, payout = $3, currency_code = $4,
		    offer_id = NULLIF($5,''), occurred_at = $6,
		    pageview_id = COALESCE(pageview_id, $7), updated_at = NOW()
		WHERE id = $8
	`, l.Status, l.StatusRaw, l.Payout, l.CurrencyCode, l.OfferID, l.OccurredAt, l.PageviewID, l.ID)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return leads.ErrLeadNotFound
	}
	return nil
}
