package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/attribution/internal/attribution"
	"github.com/ignite/attribution/internal/domain"
)

// CampaignRepo implements campaign lookups and creation against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, user_id, name, code, channel_code,
	       COALESCE(allowed_origin,''), active, created_at, updated_at`

func scanCampaign(row *sql.Row) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Code, &c.ChannelCode,
		&c.AllowedOrigin, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, attribution.ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepo) GetByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1
	`, id))
	if err == attribution.ErrCampaignNotFound {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) GetByCode(ctx context.Context, code string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE code = $1
	`, code))
	if err == attribution.ErrCampaignNotFound {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign by code: %w", err)
	}
	return c, nil
}

// CodeExists satisfies the code generator's uniqueness probe.
func (r *CampaignRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM campaigns WHERE code = $1)
	`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check campaign code: %w", err)
	}
	return exists, nil
}

// Create inserts the campaign with whatever code is already set on it
// (callers use a placeholder) and fills in the generated id.
func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO campaigns (user_id, name, code, channel_code, allowed_origin, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, c.UserID, c.Name, c.Code, c.ChannelCode, c.AllowedOrigin, c.Active).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

// AssignCode replaces the placeholder with the final code. The WHERE clause
// refuses to overwrite an already-assigned code; codes are immutable.
func (r *CampaignRepo) AssignCode(ctx context.Context, id int64, code string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET code = $1, updated_at = NOW()
		WHERE id = $2 AND code LIKE 'PENDING-%'
	`, code, id)
	if err != nil {
		return fmt.Errorf("assign campaign code: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.Name, &c.Code, &c.ChannelCode,
			&c.AllowedOrigin, &c.Active, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
