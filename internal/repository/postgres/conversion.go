package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/attribution/internal/domain"
	"github.com/ignite/attribution/internal/leads"
)

// ConversionRepo implements leads.ConversionRepository against PostgreSQL.
// Two partial unique indexes back the dedup gates: one on lead_id, one on
// (campaign_id, pageview_id) where lead_id is null. Either violation comes
// back as leads.ErrDuplicateConversion.
type ConversionRepo struct{ db *sql.DB }

// NewConversionRepo creates a Postgres-backed conversion repository.
func NewConversionRepo(db *sql.DB) *ConversionRepo { return &ConversionRepo{db: db} }

const conversionColumns = `id, user_id, campaign_id, pageview_id, lead_id,
	       conversion_value, currency_code, event_time, upload_status, created_at`

func scanConversion(row *sql.Row) (*domain.AdsConversion, error) {
	c := &domain.AdsConversion{}
	err := row.Scan(
		&c.ID, &c.UserID, &c.CampaignID, &c.PageviewID, &c.LeadID,
		&c.Value, &c.CurrencyCode, &c.EventTime, &c.UploadStatus, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConversionRepo) GetByLeadID(ctx context.Context, leadID int64) (*domain.AdsConversion, error) {
	c, err := scanConversion(r.db.QueryRowContext(ctx, `
		SELECT `+conversionColumns+`
		FROM ads_conversions
		WHERE lead_id = $1
	`, leadID))
	if err != nil {
		return nil, fmt.Errorf("get conversion by lead: %w", err)
	}
	return c, nil
}

func (r *ConversionRepo) GetUnlinkedByPageview(ctx context.Context, campaignID, pageviewID int64) (*domain.AdsConversion, error) {
	c, err := scanConversion(r.db.QueryRowContext(ctx, `
		SELECT `+conversionColumns+`
		FROM ads_conversions
		WHERE campaign_id = $1 AND pageview_id = $2 AND lead_id IS NULL
	`, campaignID, pageviewID))
	if err != nil {
		return nil, fmt.Errorf("get unlinked conversion: %w", err)
	}
	return c, nil
}

func (r *ConversionRepo) LinkLead(ctx context.Context, conversionID, leadID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ads_conversions SET lead_id = $1 WHERE id = $2 AND lead_id IS NULL
	`, leadID, conversionID)
	if err != nil {
		return fmt.Errorf("link conversion to lead: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConversionRepo) Insert(ctx context.Context, c *domain.AdsConversion) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ads_conversions
			(id, user_id, campaign_id, pageview_id, lead_id, conversion_value,
			 currency_code, event_time, upload_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.UserID, c.CampaignID, c.PageviewID, c.LeadID, c.Value,
		c.CurrencyCode, c.EventTime, c.UploadStatus, c.CreatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return leads.ErrDuplicateConversion
		}
		return fmt.Errorf("insert conversion: %w", err)
	}
	return nil
}

// ListPending returns conversions awaiting upload to the ad network,
// oldest first.
func (r *ConversionRepo) ListPending(ctx context.Context, limit int) ([]domain.AdsConversion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+conversionColumns+`
		FROM ads_conversions
		WHERE upload_status = 'pending'
		ORDER BY event_time ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending conversions: %w", err)
	}
	defer rows.Close()

	var out []domain.AdsConversion
	for rows.Next() {
		var c domain.AdsConversion
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.CampaignID, &c.PageviewID, &c.LeadID,
			&c.Value, &c.CurrencyCode, &c.EventTime, &c.UploadStatus, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pending conversion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ConversionRepo) MarkUploaded(ctx context.Context, id int64, status domain.UploadStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ads_conversions SET upload_status = $1 WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("mark conversion upload: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
