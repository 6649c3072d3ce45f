package config

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "newsloom/internal/pkg/config"
)

func TestDefaultFeedConfig(t *testing.T) {
	cfg := DefaultFeedConfig()

	assert.Equal(t, 30, cfg.Workers)
	assert.Equal(t, 10_000_000_000, int(cfg.FetchTimeout))
}

func TestFeedConfig_Validate_Default(t *testing.T) {
	cfg := DefaultFeedConfig()
	require.NoError(t, cfg.Validate())
}

func TestFeedConfig_Validate_InvalidWorkers(t *testing.T) {
	cfg := DefaultFeedConfig()
	cfg.Workers = 0
	assert.Error(t, cfg.Validate())
}

func TestFeedConfig_Validate_InvalidTimeout(t *testing.T) {
	cfg := DefaultFeedConfig()
	cfg.FetchTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadFeedConfig_ValidEnv(t *testing.T) {
	t.Setenv("FEED_WORKERS", "50")
	t.Setenv("FETCH_TIMEOUT_S", "20")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := pkgconfig.NewConfigMetrics("test_feed")

	cfg := LoadFeedConfig(logger, metrics)

	assert.Equal(t, 50, cfg.Workers)
	assert.Equal(t, 20_000_000_000, int(cfg.FetchTimeout))
	assert.Empty(t, buf.String())
}

func TestLoadFeedConfig_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("FEED_WORKERS", "not-a-number")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := pkgconfig.NewConfigMetrics("test_feed_invalid")

	cfg := LoadFeedConfig(logger, metrics)

	assert.Equal(t, DefaultFeedConfig().Workers, cfg.Workers)
	assert.Contains(t, buf.String(), "configuration fallback applied")
}
