package worker

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.CronSchedule != "*/15 * * * *" {
		t.Errorf("Expected CronSchedule '*/15 * * * *', got '%s'", cfg.CronSchedule)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Expected Timezone 'UTC', got '%s'", cfg.Timezone)
	}
	if cfg.CycleDeadline != 30*time.Minute {
		t.Errorf("Expected CycleDeadline 30m, got %v", cfg.CycleDeadline)
	}
	if cfg.HealthPort != 9091 {
		t.Errorf("Expected HealthPort 9091, got %d", cfg.HealthPort)
	}
}

func TestDefaultConfig_Immutability(t *testing.T) {
	cfg1 := DefaultConfig()
	cfg2 := DefaultConfig()

	cfg1.CronSchedule = "0 6 * * *"
	cfg1.HealthPort = 9999

	if cfg2.CronSchedule != "*/15 * * * *" {
		t.Error("DefaultConfig returned a shared instance instead of a new one")
	}
	if cfg2.HealthPort != 9091 {
		t.Error("DefaultConfig returned a shared instance instead of a new one")
	}
}

func TestOrchestratorConfig_Validate_ValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got error: %v", err)
	}
}

func TestOrchestratorConfig_Validate_InvalidCronSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CronSchedule = "invalid cron"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for invalid cron schedule")
	}
}

func TestOrchestratorConfig_Validate_InvalidTimezone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Invalid/Timezone"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for invalid timezone")
	}
}

func TestOrchestratorConfig_Validate_CycleDeadlineZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CycleDeadline = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for CycleDeadline = 0")
	}
}

func TestOrchestratorConfig_Validate_HealthPortBoundary(t *testing.T) {
	tests := []struct {
		name  string
		port  int
		valid bool
	}{
		{"Min valid (1024)", 1024, true},
		{"Max valid (65535)", 65535, true},
		{"Below min (1023)", 1023, false},
		{"Above max (65536)", 65536, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.HealthPort = tt.port

			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid port %d, got error: %v", tt.port, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected validation error for port %d", tt.port)
			}
		})
	}
}

func TestOrchestratorConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := OrchestratorConfig{
		CronSchedule:  "invalid",
		Timezone:      "Invalid/Zone",
		CycleDeadline: 0,
		HealthPort:    100,
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation errors for multiple invalid fields")
	}
}

var globalTestMetrics = NewOrchestratorMetrics()

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("Failed to set %s: %v", key, err)
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("Failed to unset %s: %v", key, err)
	}
}

func TestLoadConfigFromEnv_AllEnvVarsValid(t *testing.T) {
	setEnv(t, "PIPELINE_CRON_SCHEDULE", "0 6 * * *")
	setEnv(t, "PIPELINE_TIMEZONE", "UTC")
	setEnv(t, "CYCLE_DEADLINE_MIN", "45")
	setEnv(t, "PIPELINE_HEALTH_PORT", "8080")
	defer func() {
		unsetEnv(t, "PIPELINE_CRON_SCHEDULE")
		unsetEnv(t, "PIPELINE_TIMEZONE")
		unsetEnv(t, "CYCLE_DEADLINE_MIN")
		unsetEnv(t, "PIPELINE_HEALTH_PORT")
	}()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if cfg.CronSchedule != "0 6 * * *" {
		t.Errorf("Expected CronSchedule '0 6 * * *', got '%s'", cfg.CronSchedule)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Expected Timezone 'UTC', got '%s'", cfg.Timezone)
	}
	if cfg.CycleDeadline != 45*time.Minute {
		t.Errorf("Expected CycleDeadline 45m, got %v", cfg.CycleDeadline)
	}
	if cfg.HealthPort != 8080 {
		t.Errorf("Expected HealthPort 8080, got %d", cfg.HealthPort)
	}
	if buf.Len() > 0 {
		t.Errorf("Expected no warnings, got: %s", buf.String())
	}
}

func TestLoadConfigFromEnv_MissingEnvVars(t *testing.T) {
	unsetEnv(t, "PIPELINE_CRON_SCHEDULE")
	unsetEnv(t, "PIPELINE_TIMEZONE")
	unsetEnv(t, "CYCLE_DEADLINE_MIN")
	unsetEnv(t, "PIPELINE_HEALTH_PORT")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.CronSchedule != defaults.CronSchedule {
		t.Errorf("Expected default CronSchedule, got '%s'", cfg.CronSchedule)
	}
	if cfg.HealthPort != defaults.HealthPort {
		t.Errorf("Expected default HealthPort, got %d", cfg.HealthPort)
	}
	if buf.Len() > 0 {
		t.Errorf("Expected no warnings, got: %s", buf.String())
	}
}

func TestLoadConfigFromEnv_InvalidCronSchedule(t *testing.T) {
	setEnv(t, "PIPELINE_CRON_SCHEDULE", "invalid cron")
	defer unsetEnv(t, "PIPELINE_CRON_SCHEDULE")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if cfg.CronSchedule != DefaultConfig().CronSchedule {
		t.Errorf("Expected default CronSchedule, got '%s'", cfg.CronSchedule)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "configuration fallback applied") {
		t.Error("Expected fallback warning in logs")
	}
}

func TestLoadConfigFromEnv_InvalidCycleDeadline(t *testing.T) {
	tests := []string{"0", "-1", "abc", "500"}

	for _, v := range tests {
		t.Run(v, func(t *testing.T) {
			setEnv(t, "CYCLE_DEADLINE_MIN", v)
			defer unsetEnv(t, "CYCLE_DEADLINE_MIN")

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
			if cfg.CycleDeadline != DefaultConfig().CycleDeadline {
				t.Errorf("Expected default CycleDeadline, got %v", cfg.CycleDeadline)
			}
		})
	}
}

func TestLoadConfigFromEnv_MultipleInvalidFields(t *testing.T) {
	setEnv(t, "PIPELINE_CRON_SCHEDULE", "invalid")
	setEnv(t, "PIPELINE_TIMEZONE", "Invalid/Zone")
	setEnv(t, "CYCLE_DEADLINE_MIN", "invalid")
	setEnv(t, "PIPELINE_HEALTH_PORT", "100")
	defer func() {
		unsetEnv(t, "PIPELINE_CRON_SCHEDULE")
		unsetEnv(t, "PIPELINE_TIMEZONE")
		unsetEnv(t, "CYCLE_DEADLINE_MIN")
		unsetEnv(t, "PIPELINE_HEALTH_PORT")
	}()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.CronSchedule != defaults.CronSchedule {
		t.Errorf("Expected default CronSchedule, got '%s'", cfg.CronSchedule)
	}
	if cfg.Timezone != defaults.Timezone {
		t.Errorf("Expected default Timezone, got '%s'", cfg.Timezone)
	}
	if cfg.HealthPort != defaults.HealthPort {
		t.Errorf("Expected default HealthPort, got %d", cfg.HealthPort)
	}

	logOutput := buf.String()
	warningCount := strings.Count(logOutput, "configuration fallback applied")
	if warningCount != 4 {
		t.Errorf("Expected 4 warnings, got %d", warningCount)
	}
}
