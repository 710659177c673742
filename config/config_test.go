package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 10, cfg.SendBatchSize)
	assert.Equal(t, 2*time.Second, cfg.SendPacingInterval)
	assert.Equal(t, "@every 1m", cfg.SendQueueSchedule)
	assert.Equal(t, 500, cfg.StatsPageSize)
	assert.Equal(t, "inline", cfg.EffectsQueue)
	assert.Equal(t, "DE", cfg.DefaultPhoneRegion)
	assert.False(t, cfg.CacheEnabled())
	assert.False(t, cfg.EnrichmentEnabled())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SEND_PACING_INTERVAL", "250ms")
	t.Setenv("SEND_BATCH_SIZE", "25")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("API_ENVIRONMENT", "production")
	t.Setenv("CREDENTIALS_KEY", "prod-passphrase")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.SendPacingInterval)
	assert.Equal(t, 25, cfg.SendBatchSize)
	assert.True(t, cfg.CacheEnabled())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "prod-passphrase", cfg.CredentialsKey)
}

func TestLoad_ProductionNeedsCredentialsKey(t *testing.T) {
	t.Setenv("API_ENVIRONMENT", "production")

	_, err := Load()
	assert.ErrorContains(t, err, "CREDENTIALS_KEY")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero batch", "SEND_BATCH_SIZE", "0"},
		{"negative pacing", "SEND_PACING_INTERVAL", "-1s"},
		{"relative tracking url", "TRACKING_BASE_URL", "/track"},
		{"ftp tracking url", "TRACKING_BASE_URL", "ftp://example.com"},
		{"unknown queue", "EFFECTS_QUEUE", "kafka"},
		{"rabbitmq without url", "EFFECTS_QUEUE", "rabbitmq"},
		{"unparseable duration", "CACHE_TTL", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
