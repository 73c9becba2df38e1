package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins: ["https://reception.example.com"]

database:
  url: "postgres://localhost/guests?sslmode=disable"
  max_open_conns: 20

store:
  type: postgres

mail:
  source: gmail
  gmail:
    client_id: "cid"
    client_secret: "secret"
    refresh_token: "rt"
    label: "opera"

bedrock:
  enabled: true
  model_id: "anthropic.claude-3-5-sonnet"
  temperature: 0.1

feed:
  poll_enabled: true
  interval_minutes: 30
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"https://reception.example.com"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, "postgres://localhost/guests?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)

	assert.Equal(t, "gmail", cfg.Mail.Source)
	assert.Equal(t, "opera", cfg.Mail.Gmail.Label)
	assert.Equal(t, "rt", cfg.Mail.Gmail.RefreshToken)

	assert.True(t, cfg.Bedrock.Enabled)
	assert.Equal(t, "anthropic.claude-3-5-sonnet", cfg.Bedrock.ModelID)
	assert.Equal(t, 0.1, cfg.Bedrock.Temperature)

	assert.True(t, cfg.Feed.PollEnabled)
	assert.Equal(t, 30*time.Minute, cfg.Feed.Interval())
	require.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	configPath := writeConfig(t, `
store:
  type: memory
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "opera-export", cfg.Mail.Gmail.Label)
	assert.Equal(t, "processed/", cfg.Mail.S3.ProcessedPrefix)
	assert.Equal(t, 4096, cfg.Bedrock.MaxTokens)
	assert.Equal(t, time.Hour, cfg.Feed.Interval())
	assert.Equal(t, 15*time.Minute, cfg.Feed.LockTTL())
	assert.Equal(t, int64(20<<20), cfg.Import.MaxUploadBytes())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	configPath := writeConfig(t, `
database:
  url: "postgres://file"
mail:
  source: s3
  s3:
    bucket: "file-bucket"
`)

	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("MAIL_S3_BUCKET", "env-bucket")
	t.Setenv("BEDROCK_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, "env-bucket", cfg.Mail.S3.Bucket)
	assert.True(t, cfg.Bedrock.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"postgres without url", func(c *Config) { c.Database.URL = "" }, "database.url"},
		{"unknown store", func(c *Config) { c.Store.Type = "mongo" }, "unknown store type"},
		{"gmail without token", func(c *Config) { c.Mail.Source = "gmail" }, "refresh_token"},
		{"s3 without bucket", func(c *Config) { c.Mail.Source = "s3" }, "mail.s3.bucket"},
		{"unknown mail source", func(c *Config) { c.Mail.Source = "imap" }, "unknown mail source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Database: DatabaseConfig{URL: "postgres://x"}}
			cfg.applyDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServerAddr(t *testing.T) {
	t.Setenv("SERVER_HOST", "")
	cfg := ServerConfig{Host: "127.0.0.1", Port: 9000}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") == "" && os.Getenv("AWS_EXECUTION_ENV") == "" {
		assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	}
}
