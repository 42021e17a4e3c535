// Package campaigns manages campaign rows and their externally visible
// codes. Codes are generated lazily: the row is inserted with a placeholder
// and the final checksummed code is assigned right after, so the NOT-NULL
// and UNIQUE constraints hold at every step.
package campaigns

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/attribution/internal/codes"
	"github.com/ignite/attribution/internal/domain"
)

// Repository is the persistence surface the service needs.
type Repository interface {
	Create(ctx context.Context, c *domain.Campaign) error
	AssignCode(ctx context.Context, id int64, code string) error
	CodeExists(ctx context.Context, code string) (bool, error)
	GetByID(ctx context.Context, id int64) (*domain.Campaign, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Campaign, error)
}

// Service creates campaigns and assigns their codes.
type Service struct {
	repo Repository
	gen  *codes.Generator
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, gen: codes.NewGenerator(repo)}
}

// CreateInput describes a new campaign.
type CreateInput struct {
	UserID        int64
	Name          string
	ChannelCode   string
	AllowedOrigin string
}

// Create inserts the campaign and assigns its final code. The returned
// campaign carries the assigned code.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Campaign, error) {
	if in.UserID <= 0 {
		return nil, fmt.Errorf("campaign needs an owning user")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("campaign name is required")
	}

	c := &domain.Campaign{
		UserID:        in.UserID,
		Name:          strings.TrimSpace(in.Name),
		Code:          codes.PlaceholderCode(),
		ChannelCode:   strings.ToUpper(in.ChannelCode),
		AllowedOrigin: in.AllowedOrigin,
		Active:        true,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	code, err := s.gen.Generate(ctx, c.ChannelCode)
	if err != nil {
		return nil, fmt.Errorf("generate code for campaign %d: %w", c.ID, err)
	}
	if err := s.repo.AssignCode(ctx, c.ID, code); err != nil {
		return nil, err
	}
	c.Code = code
	return c, nil
}

// Get returns one campaign by id.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Campaign, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByUser returns a user's campaigns, newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]domain.Campaign, error) {
	return s.repo.ListByUser(ctx, userID)
}
