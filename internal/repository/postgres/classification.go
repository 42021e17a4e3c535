package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/attribution/internal/domain"
)

// ClassificationRepo is the durable cache table behind the IP classifier.
// Rows are written once per IP; unknown outcomes are never stored, so a
// failed provider lookup retries on the next sighting of the same IP.
type ClassificationRepo struct{ db *sql.DB }

// NewClassificationRepo creates a Postgres-backed classification cache.
func NewClassificationRepo(db *sql.DB) *ClassificationRepo {
	return &ClassificationRepo{db: db}
}

func (r *ClassificationRepo) GetIPClassification(ctx context.Context, ip string) (*domain.IPClassification, error) {
	c := &domain.IPClassification{}
	err := r.db.QueryRowContext(ctx, `
		SELECT ip, category, COALESCE(country,''), COALESCE(region,''),
		       COALESCE(city,''), COALESCE(isp,''), created_at
		FROM ip_classifications
		WHERE ip = $1
	`, ip).Scan(&c.IP, &c.Category, &c.Country, &c.Region, &c.City, &c.ISP, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ip classification: %w", err)
	}
	return c, nil
}

func (r *ClassificationRepo) PutIPClassification(ctx context.Context, cls *domain.IPClassification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ip_classifications (ip, category, country, region, city, isp, created_at)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), NOW())
		ON CONFLICT (ip) DO NOTHING
	`, cls.IP, cls.Category, cls.Country, cls.Region, cls.City, cls.ISP)
	if err != nil {
		return fmt.Errorf("put ip classification: %w", err)
	}
	return nil
}
