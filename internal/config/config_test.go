package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/forcegraph/internal/graph"
)

func TestLoadDefaults(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	for _, key := range []string{"HTTP_ADDR", "LAYOUT_ITERATIONS", "LAYOUT_THETA", "CACHE_TTL", "ENV", "SENTRY_ENVIRONMENT", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.SentryEnvironment)
	assert.Equal(t, graph.DefaultParams(), cfg.LayoutParams())
	require.NoError(t, cfg.LayoutParams().Validate())
}

func TestLoadFromEnv(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	t.Setenv("LAYOUT_ITERATIONS", "50")
	t.Setenv("LAYOUT_THETA", "0.5")
	t.Setenv("LAYOUT_JOB_INTERVAL", "15m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ENV", "staging")
	t.Setenv("SENTRY_ENVIRONMENT", "")

	cfg := Load()
	assert.Equal(t, 50, cfg.LayoutParams().Iterations)
	assert.Equal(t, 0.5, cfg.LayoutParams().Theta)
	assert.Equal(t, 15*time.Minute, cfg.LayoutJobInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "staging", cfg.SentryEnvironment)
}

func TestLoadIsCached(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := Load()
	t.Setenv("HTTP_ADDR", ":9999")
	assert.Same(t, first, Load())

	ResetForTest()
	assert.Equal(t, ":9999", Load().HTTPAddr)
}
