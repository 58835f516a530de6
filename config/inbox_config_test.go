package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DATA_MODE", "REPLY_DELAY_MS", "CONFIDENCE_THRESHOLD", "ALLOWED_ORIGINS", "GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "ENV"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sample", cfg.DataMode)
	assert.Equal(t, 1500*time.Millisecond, cfg.ReplyDelay)
	assert.Equal(t, 0.1, cfg.NewEmailRate)
	assert.Equal(t, 50, cfg.GmailMaxResults)
	assert.Equal(t, 80, cfg.ConfidenceThreshold)
	assert.True(t, cfg.AutoReply)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.GoogleConfigured())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_MODE", "GMAIL")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("RANDOM_SEED", "42")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("REPLY_DELAY_MS", "not-a-number")
	t.Setenv("ENV", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gmail", cfg.DataMode)
	assert.Equal(t, int64(42), cfg.RandomSeed)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 1500*time.Millisecond, cfg.ReplyDelay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad mode", func(c *Config) { c.DataMode = "imap" }, "DATA_MODE"},
		{"rate", func(c *Config) { c.NewEmailRate = 1.5 }, "REFRESH_NEW_EMAIL_RATE"},
		{"threshold", func(c *Config) { c.ConfidenceThreshold = -1 }, "CONFIDENCE_THRESHOLD"},
		{"gmail without google", func(c *Config) { c.DataMode = "gmail" }, "GOOGLE_CLIENT_ID"},
		{"production without secret", func(c *Config) {
			c.Environment = "production"
			c.GoogleClientID, c.GoogleClientSecret = "id", "secret"
		}, "SESSION_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{DataMode: "sample", NewEmailRate: 0.1, ConfidenceThreshold: 80, GmailMaxResults: 50}
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
