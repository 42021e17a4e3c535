package campaigns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/attribution/internal/domain"
)

type memRepo struct {
	nextID int64
	rows   map[int64]*domain.Campaign
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 100, rows: map[int64]*domain.Campaign{}}
}

func (m *memRepo) Create(ctx context.Context, c *domain.Campaign) error {
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memRepo) AssignCode(ctx context.Context, id int64, code string) error {
	m.rows[id].Code = code
	return nil
}

func (m *memRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	for _, c := range m.rows {
		if c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) GetByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	cp := *m.rows[id]
	return &cp, nil
}

func (m *memRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Campaign, error) {
	var out []domain.Campaign
	for _, c := range m.rows {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func TestServiceCreate_AssignsChecksummedCode(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	c, err := svc.Create(context.Background(), CreateInput{
		UserID: 3, Name: "Launch", ChannelCode: "go",
	})
	require.NoError(t, err)

	assert.Regexp(t, domain.CodePattern, c.Code)
	assert.Contains(t, c.Code, "CMP-GO-")
	assert.Equal(t, c.Code, repo.rows[c.ID].Code, "stored row carries the final code")
	assert.True(t, c.Active)
}

func TestServiceCreate_RejectsBadInput(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.Create(context.Background(), CreateInput{Name: "x", ChannelCode: "GO"})
	assert.Error(t, err)

	_, err = svc.Create(context.Background(), CreateInput{UserID: 3, Name: "  ", ChannelCode: "GO"})
	assert.Error(t, err)

	_, err = svc.Create(context.Background(), CreateInput{UserID: 3, Name: "x", ChannelCode: "GOGO"})
	assert.Error(t, err)
}

func TestServiceCreate_UniqueAcrossCampaigns(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		c, err := svc.Create(context.Background(), CreateInput{
			UserID: 3, Name: "Launch", ChannelCode: "GO",
		})
		require.NoError(t, err)
		assert.False(t, seen[c.Code])
		seen[c.Code] = true
	}
}
