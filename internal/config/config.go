package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/attribution/internal/warehouse"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Signing    SigningConfig    `yaml:"signing"`
	Codes      CodesConfig      `yaml:"codes"`
	Context    ContextConfig    `yaml:"context"`
	Reputation ReputationConfig `yaml:"reputation"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Snowflake  warehouse.Config `yaml:"snowflake"`
	SQS        SQSConfig        `yaml:"sqs"`
	Script     ScriptConfig     `yaml:"script"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the Redis connection settings for the context store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SigningConfig holds request-signing settings. Secret has no default;
// startup fails without it.
type SigningConfig struct {
	Secret         string `yaml:"secret"`
	MaxSkewSeconds int    `yaml:"max_skew_seconds"`
}

// MaxSkew returns the timestamp freshness window.
func (c SigningConfig) MaxSkew() time.Duration {
	return time.Duration(c.MaxSkewSeconds) * time.Second
}

// CodesConfig holds opaque-id codec settings. Salt is load-bearing: changing
// it invalidates every code already embedded in customer pages.
type CodesConfig struct {
	Salt      string `yaml:"salt"`
	MinLength int    `yaml:"min_length"`
}

// ContextConfig holds Redis context store settings.
type ContextConfig struct {
	KeyPrefix          string `yaml:"key_prefix"`
	CampaignTTLSeconds int    `yaml:"campaign_ttl_seconds"`
	PageviewTTLSeconds int    `yaml:"pageview_ttl_seconds"`
}

// CampaignTTL returns the campaign context lifetime.
func (c ContextConfig) CampaignTTL() time.Duration {
	return time.Duration(c.CampaignTTLSeconds) * time.Second
}

// PageviewTTL returns the pageview context lifetime.
func (c ContextConfig) PageviewTTL() time.Duration {
	return time.Duration(c.PageviewTTLSeconds) * time.Second
}

// ReputationConfig holds the external IP reputation provider settings.
type ReputationConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ClassifierConfig holds the classification worker settings.
type ClassifierConfig struct {
	Enabled             bool `yaml:"enabled"`
	PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
}

// SQSConfig holds notification queue settings. Empty QueueURL disables
// notifications.
type SQSConfig struct {
	QueueURL string `yaml:"queue_url"`
	Region   string `yaml:"region"`
}

// ScriptConfig holds tracking-script rendering settings.
type ScriptConfig struct {
	BaseURL         string `yaml:"base_url"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Signing.MaxSkewSeconds == 0 {
		cfg.Signing.MaxSkewSeconds = 300
	}
	if cfg.Codes.MinLength == 0 {
		cfg.Codes.MinLength = 4
	}
	if cfg.Context.KeyPrefix == "" {
		cfg.Context.KeyPrefix = "attr"
	}
	if cfg.Context.CampaignTTLSeconds == 0 {
		cfg.Context.CampaignTTLSeconds = 7 * 24 * 3600
	}
	if cfg.Context.PageviewTTLSeconds == 0 {
		cfg.Context.PageviewTTLSeconds = 30 * 24 * 3600
	}
	if cfg.Reputation.TimeoutSeconds == 0 {
		cfg.Reputation.TimeoutSeconds = 5
	}
	if cfg.Classifier.PollIntervalSeconds == 0 {
		cfg.Classifier.PollIntervalSeconds = 30
	}
	if cfg.SQS.Region == "" {
		cfg.SQS.Region = "us-west-2"
	}
	if cfg.Script.CacheTTLSeconds == 0 {
		cfg.Script.CacheTTLSeconds = 3600
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SIGNING_SECRET"); v != "" {
		cfg.Signing.Secret = v
	}
	if v := os.Getenv("CODES_SALT"); v != "" {
		cfg.Codes.Salt = v
	}
	if v := os.Getenv("REPUTATION_API_KEY"); v != "" {
		cfg.Reputation.APIKey = v
	}
	if v := os.Getenv("REPUTATION_BASE_URL"); v != "" {
		cfg.Reputation.BaseURL = v
	}
	if v := os.Getenv("SNOWFLAKE_ACCOUNT"); v != "" {
		cfg.Snowflake.Account = v
	}
	if v := os.Getenv("SNOWFLAKE_USER"); v != "" {
		cfg.Snowflake.User = v
	}
	if v := os.Getenv("SNOWFLAKE_PASSWORD"); v != "" {
		cfg.Snowflake.Password = v
	}
	if v := os.Getenv("SQS_QUEUE_URL"); v != "" {
		cfg.SQS.QueueURL = v
	}
	if v := os.Getenv("SCRIPT_BASE_URL"); v != "" {
		cfg.Script.BaseURL = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	return cfg, nil
}

// Validate rejects configurations that cannot serve traffic. The signing
// secret and codec salt guard request integrity; running without them would
// accept forged requests or emit guessable codes.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if c.Signing.Secret == "" {
		return fmt.Errorf("signing secret is required")
	}
	if c.Codes.Salt == "" {
		return fmt.Errorf("codes salt is required")
	}
	return nil
}
