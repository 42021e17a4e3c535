package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/attribution/internal/domain"
	"github.com/ignite/attribution/internal/leads"
)

// PlatformRepo reads affiliate platform definitions. field_mapping and
// status_aliases live in JSONB columns; rows change rarely and callers are
// expected to cache lookups per request at most.
type PlatformRepo struct{ db *sql.DB }

// NewPlatformRepo creates a Postgres-backed platform repository.
func NewPlatformRepo(db *sql.DB) *PlatformRepo { return &PlatformRepo{db: db} }

func (r *PlatformRepo) GetBySlug(ctx context.Context, slug string) (*domain.AffiliatePlatform, error) {
	p := &domain.AffiliatePlatform{}
	var mapping, aliases []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, COALESCE(field_mapping,'{}'), COALESCE(status_aliases,'{}'), created_at
		FROM affiliate_platforms
		WHERE slug = $1
	`, slug).Scan(&p.ID, &p.Slug, &p.Name, &mapping, &aliases, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, leads.ErrPlatformNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get platform: %w", err)
	}

	if err := json.Unmarshal(mapping, &p.FieldMapping); err != nil {
		return nil, fmt.Errorf("decode platform field mapping: %w", err)
	}
	if err := json.Unmarshal(aliases, &p.StatusAliases); err != nil {
		return nil, fmt.Errorf("decode platform status aliases: %w", err)
	}
	return p, nil
}
