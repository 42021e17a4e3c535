package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/attribution/internal/attribution"
	"github.com/ignite/attribution/internal/domain"
	"github.com/ignite/attribution/internal/leads"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var campaignCols = []string{
	"id", "user_id", "name", "code", "channel_code",
	"allowed_origin", "active", "created_at", "updated_at",
}

func TestCampaignRepo_GetByCode(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCampaignRepo(db)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs("CMP-GO-ABCDEFGH12").
		WillReturnRows(sqlmock.NewRows(campaignCols).
			AddRow(7, 3, "Launch", "CMP-GO-ABCDEFGH12", "GO", "https://example.com", true, now, now))

	c, err := repo.GetByCode(context.Background(), "CMP-GO-ABCDEFGH12")
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, int64(3), c.UserID)
	assert.True(t, c.Active)
	assert.True(t, c.HasAssignedCode())
}

func TestCampaignRepo_GetByCode_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCampaignRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs("CMP-GO-NOPE000000").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByCode(context.Background(), "CMP-GO-NOPE000000")
	assert.ErrorIs(t, err, attribution.ErrCampaignNotFound)
}

func TestCampaignRepo_CodeExists(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCampaignRepo(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("CMP-GO-ABCDEFGH12").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.CodeExists(context.Background(), "CMP-GO-ABCDEFGH12")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCampaignRepo_AssignCode_RefusesReassignment(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCampaignRepo(db)

	// A campaign that already carries a final code matches no row.
	mock.ExpectExec("UPDATE campaigns SET code").
		WithArgs("CMP-GO-ABCDEFGH12", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AssignCode(context.Background(), 7, "CMP-GO-ABCDEFGH12")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeadRepo_InsertUniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLeadRepo(db)

	mock.ExpectQuery("INSERT INTO leads").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Insert(context.Background(), &domain.Lead{
		ID: 100, UserID: 3, CampaignID: 7, PlatformID: 1,
		PlatformLeadID: "ext-1", Status: domain.LeadProcessing,
	})
	assert.ErrorIs(t, err, leads.ErrDuplicateLead)
}

func TestLeadRepo_GetByPlatformLeadID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLeadRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM leads").
		WithArgs(int64(1), "ext-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByPlatformLeadID(context.Background(), 1, "ext-1")
	assert.ErrorIs(t, err, leads.ErrLeadNotFound)
}

func TestLeadRepo_Update_NoRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLeadRepo(db)

	mock.ExpectExec("UPDATE leads").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &domain.Lead{ID: 100})
	assert.ErrorIs(t, err, leads.ErrLeadNotFound)
}

func TestLeadRepo_Update_PersistsPageviewBackfill(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLeadRepo(db)

	pvID := int64(555)
	mock.ExpectExec(`UPDATE leads(?s:.+)pageview_id = COALESCE\(pageview_id, \$7\)`).
		WithArgs(domain.LeadApproved, "approved", 9.5, "USD", "", nil, pvID, int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &domain.Lead{
		ID: 100, PageviewID: &pvID, Status: domain.LeadApproved,
		StatusRaw: "approved", Payout: 9.5, CurrencyCode: "USD",
	})
	assert.NoError(t, err)
}

func TestConversionRepo_InsertUniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	repo := NewConversionRepo(db)

	mock.ExpectExec("INSERT INTO ads_conversions").
		WillReturnError(&pq.Error{Code: "23505"})

	leadID := int64(1001)
	err := repo.Insert(context.Background(), &domain.AdsConversion{
		ID: 200, UserID: 3, CampaignID: 7, LeadID: &leadID,
		Value: 1.00, CurrencyCode: "USD",
		EventTime: time.Now(), UploadStatus: domain.UploadPending,
	})
	assert.ErrorIs(t, err, leads.ErrDuplicateConversion)
}

func TestConversionRepo_GetByLeadID_MissIsNil(t *testing.T) {
	db, mock := newMock(t)
	repo := NewConversionRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM ads_conversions").
		WithArgs(int64(1001)).
		WillReturnError(sql.ErrNoRows)

	c, err := repo.GetByLeadID(context.Background(), 1001)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestConversionRepo_LinkLead_AlreadyLinked(t *testing.T) {
	db, mock := newMock(t)
	repo := NewConversionRepo(db)

	// lead_id IS NULL predicate fails: the row is already linked.
	mock.ExpectExec("UPDATE ads_conversions SET lead_id").
		WithArgs(int64(1001), int64(200)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.LinkLead(context.Background(), 200, 1001)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPageviewRepo_MarkConversionIdempotent(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPageviewRepo(db)

	// Zero rows affected is still success.
	mock.ExpectExec("UPDATE pageviews SET conversion").
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.MarkConversion(context.Background(), 99))
}

func TestPageviewRepo_ListUnclassified(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPageviewRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM pageviews").
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ip_address", "user_agent"}).
			AddRow(1, "203.0.113.9", "Mozilla/5.0").
			AddRow(2, "203.0.113.10", "curl/8.0"))

	out, err := repo.ListUnclassified(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "203.0.113.9", out[0].IPAddress)
}

func TestPlatformRepo_GetBySlug(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPlatformRepo(db)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM affiliate_platforms").
		WithArgs("everad").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "name", "field_mapping", "status_aliases", "created_at"}).
			AddRow(1, "everad", "EverAd",
				[]byte(`{"lead_status":"status","payout_amount":"payment"}`),
				[]byte(`{"2":"approved"}`), now))

	p, err := repo.GetBySlug(context.Background(), "everad")
	require.NoError(t, err)
	assert.Equal(t, "status", p.FieldMapping["lead_status"])
	assert.Equal(t, domain.LeadApproved, p.StatusAliases["2"])
}

func TestPlatformRepo_GetBySlug_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPlatformRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM affiliate_platforms").
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetBySlug(context.Background(), "nobody")
	assert.ErrorIs(t, err, leads.ErrPlatformNotFound)
}

func TestClassificationRepo_MissIsNil(t *testing.T) {
	db, mock := newMock(t)
	repo := NewClassificationRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM ip_classifications").
		WithArgs("203.0.113.9").
		WillReturnError(sql.ErrNoRows)

	c, err := repo.GetIPClassification(context.Background(), "203.0.113.9")
	require.NoError(t, err)
	assert.Nil(t, c)
}
