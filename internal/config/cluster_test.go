package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "newsloom/internal/pkg/config"
)

func TestDefaultClusterConfig(t *testing.T) {
	cfg := DefaultClusterConfig()

	assert.Equal(t, 0.87, cfg.THigh)
	assert.Equal(t, 0.78, cfg.TMid)
	assert.Equal(t, 0.35, cfg.Jaccard)
	assert.Equal(t, 24*time.Hour, cfg.IdleTimeout)
	assert.Equal(t, 48*time.Hour, cfg.MaxAge)
}

func TestClusterConfig_Validate_Default(t *testing.T) {
	cfg := DefaultClusterConfig()
	require.NoError(t, cfg.Validate())
}

func TestClusterConfig_Validate_THighBelowTMid(t *testing.T) {
	cfg := DefaultClusterConfig()
	cfg.THigh = 0.5
	cfg.TMid = 0.8
	assert.Error(t, cfg.Validate())
}

func TestClusterConfig_Validate_MaxAgeBelowIdleTimeout(t *testing.T) {
	cfg := DefaultClusterConfig()
	cfg.IdleTimeout = 72 * time.Hour
	cfg.MaxAge = 48 * time.Hour
	assert.Error(t, cfg.Validate())
}

func TestClusterConfig_Validate_OutOfRangeThreshold(t *testing.T) {
	cfg := DefaultClusterConfig()
	cfg.THigh = 1.5
	assert.Error(t, cfg.Validate())
}

func TestLoadClusterConfig_ValidEnv(t *testing.T) {
	t.Setenv("CLUSTER_T_HIGH", "0.9")
	t.Setenv("CLUSTER_T_MID", "0.8")
	t.Setenv("CLUSTER_JACCARD", "0.4")
	t.Setenv("CLUSTER_IDLE_HOURS", "12")
	t.Setenv("CLUSTER_MAX_HOURS", "36")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := pkgconfig.NewConfigMetrics("test_cluster_valid")

	cfg := LoadClusterConfig(logger, metrics)

	assert.Equal(t, 0.9, cfg.THigh)
	assert.Equal(t, 0.8, cfg.TMid)
	assert.Equal(t, 0.4, cfg.Jaccard)
	assert.Equal(t, 12*time.Hour, cfg.IdleTimeout)
	assert.Equal(t, 36*time.Hour, cfg.MaxAge)
	assert.Empty(t, buf.String())
}

func TestLoadClusterConfig_InvalidFloatFallsBack(t *testing.T) {
	t.Setenv("CLUSTER_T_HIGH", "not-a-float")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := pkgconfig.NewConfigMetrics("test_cluster_invalid_float")

	cfg := LoadClusterConfig(logger, metrics)

	assert.Equal(t, DefaultClusterConfig().THigh, cfg.THigh)
	assert.Contains(t, buf.String(), "configuration fallback applied")
}
