package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CARLTON_API_KEY", "")
	t.Setenv("HUGGINGFACE_API_KEY", "")
	t.Setenv("GENERATOR_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Carlton.Enabled)
	assert.False(t, cfg.Generator.Enabled)
	assert.False(t, cfg.PostgreSQL.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 0.5, cfg.Ranking.Base)
	assert.Equal(t, 0.3, cfg.Ranking.Location)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 8*time.Second, cfg.Generator.Timeout)
}

func TestLoad_PlaceholderKeysStayDisabled(t *testing.T) {
	t.Setenv("CARLTON_API_KEY", "contact_carlton_it_for_api_key")
	t.Setenv("HUGGINGFACE_API_KEY", "your_huggingface_api_key_here")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Carlton.Enabled)
	assert.False(t, cfg.Generator.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CARLTON_API_KEY", "secret")
	t.Setenv("CARLTON_API_BASE", "http://upstream.test/wide_api/")
	t.Setenv("GENERATOR_TIMEOUT", "5")
	t.Setenv("API_RATE_WINDOW", "1m")
	t.Setenv("RANK_WEIGHT_LOCATION", "not-a-number")
	t.Setenv("DATABASE_URL", "postgres://localhost/carlton")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Carlton.Enabled)
	assert.Equal(t, "http://upstream.test/wide_api", cfg.Carlton.APIBase)
	assert.Equal(t, 5*time.Second, cfg.Generator.Timeout)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 0.3, cfg.Ranking.Location)
	assert.True(t, cfg.PostgreSQL.Enabled)
	assert.Equal(t, "postgres://localhost/carlton", cfg.GetPostgreSQLDSN())
}

func TestLoad_RejectsBadRateLimit(t *testing.T) {
	t.Setenv("API_RATE_LIMIT", "0")

	_, err := Load()
	assert.Error(t, err)
}
