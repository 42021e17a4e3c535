package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

database:
  url: "postgres://localhost/attribution_test"
  max_open_conns: 10

redis:
  addr: "localhost:6380"
  db: 2

signing:
  secret: "test-secret"
  max_skew_seconds: 120

codes:
  salt: "test-salt"
  min_length: 6

context:
  key_prefix: "trk"
  campaign_ttl_seconds: 3600
  pageview_ttl_seconds: 7200

reputation:
  base_url: "https://reputation.example.com"
  api_key: "rep-key"
  timeout_seconds: 3
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Test server config
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Test database config
	assert.Equal(t, "postgres://localhost/attribution_test", cfg.Database.URL)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)

	// Test redis config
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)

	// Test signing config
	assert.Equal(t, "test-secret", cfg.Signing.Secret)
	assert.Equal(t, 2*time.Minute, cfg.Signing.MaxSkew())

	// Test codes config
	assert.Equal(t, "test-salt", cfg.Codes.Salt)
	assert.Equal(t, 6, cfg.Codes.MinLength)

	// Test context config
	assert.Equal(t, "trk", cfg.Context.KeyPrefix)
	assert.Equal(t, time.Hour, cfg.Context.CampaignTTL())
	assert.Equal(t, 2*time.Hour, cfg.Context.PageviewTTL())

	// Test reputation config
	assert.Equal(t, "https://reputation.example.com", cfg.Reputation.BaseURL)
	assert.Equal(t, 3, cfg.Reputation.TimeoutSeconds)
}

func TestLoadDefaults(t *testing.T) {
	// Create a minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
signing:
  secret: "test-secret"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Verify defaults are applied
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Signing.MaxSkew())
	assert.Equal(t, 4, cfg.Codes.MinLength)
	assert.Equal(t, "attr", cfg.Context.KeyPrefix)
	assert.Equal(t, 7*24*time.Hour, cfg.Context.CampaignTTL())
	assert.Equal(t, 30*24*time.Hour, cfg.Context.PageviewTTL())
	assert.Equal(t, 5, cfg.Reputation.TimeoutSeconds)
	assert.Equal(t, 30, cfg.Classifier.PollIntervalSeconds)
}

func TestLoadFromEnv(t *testing.T) {
	// Create a minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
signing:
  secret: "file-secret"
database:
  url: "postgres://file/db"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	// Set environment variables
	os.Setenv("SIGNING_SECRET", "env-secret")
	os.Setenv("DATABASE_URL", "postgres://env/db")
	defer func() {
		os.Unsetenv("SIGNING_SECRET")
		os.Unsetenv("DATABASE_URL")
	}()

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "env-secret", cfg.Signing.Secret)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.Database.URL = "postgres://localhost/attribution"
	cfg.Signing.Secret = "s"
	cfg.Codes.Salt = "salt"
	assert.NoError(t, cfg.Validate())

	missingSecret := *cfg
	missingSecret.Signing.Secret = ""
	assert.Error(t, missingSecret.Validate())

	missingSalt := *cfg
	missingSalt.Codes.Salt = ""
	assert.Error(t, missingSalt.Validate())

	missingDB := *cfg
	missingDB.Database.URL = ""
	assert.Error(t, missingDB.Validate())
}
