package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/attribution/internal/domain"
)

// PageviewRepo implements pageview persistence against PostgreSQL.
// Pageview ids are generated by the application, never by the database.
type PageviewRepo struct{ db *sql.DB }

// NewPageviewRepo creates a Postgres-backed pageview repository.
func NewPageviewRepo(db *sql.DB) *PageviewRepo { return &PageviewRepo{db: db} }

func (r *PageviewRepo) Insert(ctx context.Context, pv *domain.Pageview) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pageviews
			(id, campaign_id, user_id, visitor_code, url, landing_url, referrer,
			 user_agent, ip_address, is_unique,
			 utm_source, utm_medium, utm_campaign, utm_term, utm_content,
			 gclid, fbclid, ttclid, msclkid, wbraid, gbraid, gad_campaignid,
			 device_category, browser, os, conversion, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22,
			$23, $24, $25, $26, $27)
	`, pv.ID, pv.CampaignID, pv.UserID, pv.VisitorCode, pv.URL, pv.LandingURL, pv.Referrer,
		pv.UserAgent, pv.IPAddress, pv.Unique,
		pv.UTMSource, pv.UTMMedium, pv.UTMCampaign, pv.UTMTerm, pv.UTMContent,
		pv.GCLID, pv.FBCLID, pv.TTCLID, pv.MSCLKID, pv.WBRAID, pv.GBRAID, pv.GAdCampaignID,
		pv.DeviceCategory, pv.Browser, pv.OS, pv.Conversion, pv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pageview: %w", err)
	}
	return nil
}

func (r *PageviewRepo) GetByID(ctx context.Context, id int64) (*domain.Pageview, error) {
	pv := &domain.Pageview{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, user_id, visitor_code, url, landing_url, referrer,
		       user_agent, ip_address, is_unique,
		       utm_source, utm_medium, utm_campaign, utm_term, utm_content,
		       gclid, fbclid, ttclid, msclkid, wbraid, gbraid, gad_campaignid,
		       device_category, browser, os, ip_category, country, region, city,
		       conversion, created_at
		FROM pageviews
		WHERE id = $1
	`, id).Scan(
		&pv.ID, &pv.CampaignID, &pv.UserID, &pv.VisitorCode, &pv.URL, &pv.LandingURL, &pv.Referrer,
		&pv.UserAgent, &pv.IPAddress, &pv.Unique,
		&pv.UTMSource, &pv.UTMMedium, &pv.UTMCampaign, &pv.UTMTerm, &pv.UTMContent,
		&pv.GCLID, &pv.FBCLID, &pv.TTCLID, &pv.MSCLKID, &pv.WBRAID, &pv.GBRAID, &pv.GAdCampaignID,
		&pv.DeviceCategory, &pv.Browser, &pv.OS, &pv.IPCategory, &pv.Country, &pv.Region, &pv.City,
		&pv.Conversion, &pv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pageview: %w", err)
	}
	return pv, nil
}

// MarkConversion flips the conversion flag. Marking an already-marked row
// is a no-op, not an error.
func (r *PageviewRepo) MarkConversion(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pageviews SET conversion = true WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark pageview conversion: %w", err)
	}
	return nil
}

// ListUnclassified returns pageviews whose IP category has not been filled
// in yet, oldest first. The classifier worker re-selects on every pass, so
// rows classified by a concurrent run simply stop matching.
func (r *PageviewRepo) ListUnclassified(ctx context.Context, limit int) ([]domain.Pageview, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ip_address, user_agent
		FROM pageviews
		WHERE ip_category IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unclassified pageviews: %w", err)
	}
	defer rows.Close()

	var out []domain.Pageview
	for rows.Next() {
		var pv domain.Pageview
		if err := rows.Scan(&pv.ID, &pv.IPAddress, &pv.UserAgent); err != nil {
			return nil, fmt.Errorf("scan unclassified pageview: %w", err)
		}
		out = append(out, pv)
	}
	return out, rows.Err()
}

// UpdateClassification writes the IP-derived fields for one pageview.
func (r *PageviewRepo) UpdateClassification(ctx context.Context, id int64, cls *domain.IPClassification) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pageviews
		SET ip_category = $1, country = NULLIF($2,''), region = NULLIF($3,''), city = NULLIF($4,'')
		WHERE id = $5
	`, string(cls.Category), cls.Country, cls.Region, cls.City, id)
	if err != nil {
		return fmt.Errorf("update pageview classification: %w", err)
	}
	return nil
}
