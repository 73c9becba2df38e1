package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the reconciliation service
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
	Mail     MailConfig     `yaml:"mail"`
	Bedrock  BedrockConfig  `yaml:"bedrock"`
	Feed     FeedConfig     `yaml:"feed"`
	Import   ImportConfig   `yaml:"import"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for the listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds the canonical store connection settings
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	ConnectTimeoutSeconds  int    `yaml:"connect_timeout_seconds"`
}

// ConnMaxLifetime returns the pool connection lifetime as a duration
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// ConnectTimeout returns the startup ping timeout as a duration
func (c DatabaseConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// RedisConfig holds the optional Redis used for the poller lock
type RedisConfig struct {
	URL string `yaml:"url"` // empty disables Redis; the lock falls back to Postgres
}

// StoreConfig selects the canonical store backend
type StoreConfig struct {
	Type string `yaml:"type"` // "postgres" or "memory"
}

// LoggingConfig holds structured logging settings
type LoggingConfig struct {
	Level   string `yaml:"level"`
	ShowPII bool   `yaml:"show_pii"` // disables e-mail/phone redaction; local debugging only
}

// MailConfig selects and configures the feed mailbox
type MailConfig struct {
	Source string        `yaml:"source"` // "gmail", "s3" or "" (disabled)
	Gmail  GmailConfig   `yaml:"gmail"`
	S3     S3InboxConfig `yaml:"s3"`
}

// GmailConfig holds the OAuth2 client and mailbox settings for the Gmail backend
type GmailConfig struct {
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	RefreshToken   string `yaml:"refresh_token"`
	Label          string `yaml:"label"`
	MaxResults     int    `yaml:"max_results"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c GmailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// S3InboxConfig holds the SES-inbound bucket settings for the S3 backend
type S3InboxConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	ProcessedPrefix string `yaml:"processed_prefix"`
	Region          string `yaml:"region"`
	AWSProfile      string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	MaxMessages     int    `yaml:"max_messages"`
}

// BedrockConfig holds the vendor grouping classifier settings
type BedrockConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Region         string  `yaml:"region"`
	ModelID        string  `yaml:"model_id"`
	AccessKey      string  `yaml:"access_key"`
	SecretKey      string  `yaml:"secret_key"`
	AWSProfile     string  `yaml:"aws_profile"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c BedrockConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FeedConfig holds the scheduled mailbox poll settings
type FeedConfig struct {
	PollEnabled     bool `yaml:"poll_enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
	LockTTLMinutes  int  `yaml:"lock_ttl_minutes"`
}

// Interval returns the polling interval as a duration
func (c FeedConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// LockTTL returns the poller lock lifetime as a duration
func (c FeedConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

// ImportConfig holds upload limits for the CSV and XML endpoints
type ImportConfig struct {
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// MaxUploadBytes returns the upload limit in bytes
func (c ImportConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
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
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 5
	}
	if cfg.Database.ConnectTimeoutSeconds == 0 {
		cfg.Database.ConnectTimeoutSeconds = 10
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "postgres"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Mail.Gmail.Label == "" {
		cfg.Mail.Gmail.Label = "opera-export"
	}
	if cfg.Mail.Gmail.MaxResults == 0 {
		cfg.Mail.Gmail.MaxResults = 50
	}
	if cfg.Mail.Gmail.TimeoutSeconds == 0 {
		cfg.Mail.Gmail.TimeoutSeconds = 30
	}
	if cfg.Mail.S3.Prefix == "" {
		cfg.Mail.S3.Prefix = "inbox/"
	}
	if cfg.Mail.S3.ProcessedPrefix == "" {
		cfg.Mail.S3.ProcessedPrefix = "processed/"
	}
	if cfg.Mail.S3.Region == "" {
		cfg.Mail.S3.Region = "us-east-1"
	}
	if cfg.Mail.S3.MaxMessages == 0 {
		cfg.Mail.S3.MaxMessages = 50
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = "us-east-1"
	}
	if cfg.Bedrock.ModelID == "" {
		cfg.Bedrock.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Bedrock.MaxTokens == 0 {
		cfg.Bedrock.MaxTokens = 4096
	}
	if cfg.Bedrock.TimeoutSeconds == 0 {
		cfg.Bedrock.TimeoutSeconds = 60
	}
	if cfg.Feed.IntervalMinutes == 0 {
		cfg.Feed.IntervalMinutes = 60
	}
	if cfg.Feed.LockTTLMinutes == 0 {
		cfg.Feed.LockTTLMinutes = 15
	}
	if cfg.Import.MaxUploadMB == 0 {
		cfg.Import.MaxUploadMB = 20
	}
}

// Validate reports settings that make the service unusable.
func (cfg *Config) Validate() error {
	switch cfg.Store.Type {
	case "postgres":
		if cfg.Database.URL == "" {
			return fmt.Errorf("database.url is required for store type postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}

	switch cfg.Mail.Source {
	case "":
	case "gmail":
		g := cfg.Mail.Gmail
		if g.ClientID == "" || g.ClientSecret == "" || g.RefreshToken == "" {
			return fmt.Errorf("mail.gmail requires client_id, client_secret and refresh_token")
		}
	case "s3":
		if cfg.Mail.S3.Bucket == "" {
			return fmt.Errorf("mail.s3.bucket is required")
		}
	default:
		return fmt.Errorf("unknown mail source %q", cfg.Mail.Source)
	}

	if cfg.Bedrock.Enabled && cfg.Bedrock.ModelID == "" {
		return fmt.Errorf("bedrock.model_id is required when bedrock is enabled")
	}
	return nil
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

	// Database override (critical for ECS deployment where config.yaml has local defaults)
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("STORE_TYPE"); v != "" {
		cfg.Store.Type = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Mail overrides
	if v := os.Getenv("MAIL_SOURCE"); v != "" {
		cfg.Mail.Source = v
	}
	if v := os.Getenv("GMAIL_CLIENT_ID"); v != "" {
		cfg.Mail.Gmail.ClientID = v
	}
	if v := os.Getenv("GMAIL_CLIENT_SECRET"); v != "" {
		cfg.Mail.Gmail.ClientSecret = v
	}
	if v := os.Getenv("GMAIL_REFRESH_TOKEN"); v != "" {
		cfg.Mail.Gmail.RefreshToken = v
	}
	if v := os.Getenv("GMAIL_LABEL"); v != "" {
		cfg.Mail.Gmail.Label = v
	}
	if v := os.Getenv("MAIL_S3_BUCKET"); v != "" {
		cfg.Mail.S3.Bucket = v
	}
	if v := os.Getenv("MAIL_S3_REGION"); v != "" {
		cfg.Mail.S3.Region = v
	}

	// Bedrock overrides
	if v := os.Getenv("BEDROCK_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Bedrock.Enabled = b
		}
	}
	if v := os.Getenv("BEDROCK_REGION"); v != "" {
		cfg.Bedrock.Region = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Bedrock.ModelID = v
	}
	if v := os.Getenv("BEDROCK_ACCESS_KEY"); v != "" {
		cfg.Bedrock.AccessKey = v
	}
	if v := os.Getenv("BEDROCK_SECRET_KEY"); v != "" {
		cfg.Bedrock.SecretKey = v
	}

	if v := os.Getenv("FEED_POLL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Feed.PollEnabled = b
		}
	}

	return cfg, nil
}
