// Package warehouse mirrors pageview traffic into the analytics warehouse.
// The mirror is best-effort: Postgres is the system of record and callers
// invoke the sink asynchronously, so a warehouse outage never blocks or
// fails collection.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/ignite/attribution/internal/domain"
)

// Config holds Snowflake connection settings.
type Config struct {
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
	Table     string `yaml:"table"`
}

// SnowflakeSink writes pageview rows to a Snowflake table.
type SnowflakeSink struct {
	db    *sql.DB
	table string
}

// NewSnowflakeSink opens the warehouse connection. The pool is kept small;
// mirror writes are low-volume single-row inserts.
func NewSnowflakeSink(cfg Config) (*SnowflakeSink, error) {
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s",
		cfg.User, cfg.Password, cfg.Account, cfg.Database, cfg.Schema)
	if cfg.Warehouse != "" {
		dsn += "?warehouse=" + cfg.Warehouse
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snowflake connection: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	table := cfg.Table
	if table == "" {
		table = "PAGEVIEWS"
	}
	return &SnowflakeSink{db: db, table: table}, nil
}

// Close closes the warehouse connection.
func (s *SnowflakeSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping tests the warehouse connection.
func (s *SnowflakeSink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertPageview mirrors one pageview row.
func (s *SnowflakeSink) InsertPageview(ctx context.Context, pv domain.Pageview) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
			(ID, CAMPAIGN_ID, USER_ID, VISITOR_CODE, URL, REFERRER, IP_ADDRESS,
			 IS_UNIQUE, UTM_SOURCE, UTM_MEDIUM, UTM_CAMPAIGN, DEVICE_CATEGORY,
			 CONVERSION, CREATED_AT)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.table)

	var device string
	if pv.DeviceCategory != nil {
		device = *pv.DeviceCategory
	}
	_, err := s.db.ExecContext(ctx, query,
		pv.ID, pv.CampaignID, pv.UserID, pv.VisitorCode, pv.URL, pv.Referrer, pv.IPAddress,
		pv.Unique, pv.UTMSource, pv.UTMMedium, pv.UTMCampaign, device,
		pv.Conversion, pv.CreatedAt)
	if err != nil {
		return fmt.Errorf("mirror pageview: %w", err)
	}
	return nil
}

// MarkConversion mirrors the conversion flag flip.
func (s *SnowflakeSink) MarkConversion(ctx context.Context, pageviewID int64) error {
	query := fmt.Sprintf(`UPDATE %s SET CONVERSION = true WHERE ID = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, query, pageviewID); err != nil {
		return fmt.Errorf("mirror conversion mark: %w", err)
	}
	return nil
}

// UpdateClassification mirrors IP-derived fields once the classifier runs.
func (s *SnowflakeSink) UpdateClassification(ctx context.Context, pageviewID int64, cls *domain.IPClassification) error {
	query := fmt.Sprintf(`
		UPDATE %s SET IP_CATEGORY = ?, COUNTRY = ?, REGION = ?, CITY = ?
		WHERE ID = ?
	`, s.table)
	if _, err := s.db.ExecContext(ctx, query,
		string(cls.Category), cls.Country, cls.Region, cls.City, pageviewID); err != nil {
		return fmt.Errorf("mirror classification: %w", err)
	}
	return nil
}

// Nop is the sink used when no warehouse is configured.
type Nop struct{}

func (Nop) InsertPageview(context.Context, domain.Pageview) error { return nil }

func (Nop) MarkConversion(context.Context, int64) error { return nil }

func (Nop) UpdateClassification(context.Context, int64, *domain.IPClassification) error {
	return nil
}
