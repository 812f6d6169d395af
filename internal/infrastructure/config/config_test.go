package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfigFile writes a temporary YAML config and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

const validConfig = `
database:
  path: /tmp/thermoguard-test.db
security:
  jwt:
    secret: "0123456789abcdef0123456789abcdef"
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, validConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("api.port: got %d, want 8080", cfg.API.Port)
	}
	if cfg.Monitor.AlertCooldownMinutes != 5 {
		t.Errorf("alert cooldown: got %d, want 5", cfg.Monitor.AlertCooldownMinutes)
	}
	if cfg.Monitor.TemperatureCriticalThreshold != 5.0 {
		t.Errorf("critical threshold: got %v, want 5.0", cfg.Monitor.TemperatureCriticalThreshold)
	}
	if cfg.Monitor.HysteresisThreshold != 1.0 {
		t.Errorf("hysteresis: got %v, want 1.0", cfg.Monitor.HysteresisThreshold)
	}
	if cfg.MQTT.Broker.ClientID != "thermoguard-core" {
		t.Errorf("mqtt client id: got %q", cfg.MQTT.Broker.ClientID)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, validConfig+`
monitor:
  alert_cooldown_minutes: 10
  temperature_critical_threshold: 7.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Monitor.AlertCooldownMinutes != 10 {
		t.Errorf("alert cooldown: got %d, want 10", cfg.Monitor.AlertCooldownMinutes)
	}
	if cfg.Monitor.TemperatureCriticalThreshold != 7.5 {
		t.Errorf("critical threshold: got %v, want 7.5", cfg.Monitor.TemperatureCriticalThreshold)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, validConfig)
	t.Setenv("THERMOGUARD_DATABASE_PATH", "/tmp/env-override.db")
	t.Setenv("THERMOGUARD_MQTT_HOST", "broker.internal")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path != "/tmp/env-override.db" {
		t.Errorf("database.path: got %q", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.internal" {
		t.Errorf("mqtt host: got %q", cfg.MQTT.Broker.Host)
	}
}

func TestValidateRejectsMissingJWTSecret(t *testing.T) {
	path := writeConfigFile(t, `
database:
  path: /tmp/thermoguard-test.db
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for missing JWT secret")
	}
	if !strings.Contains(err.Error(), "jwt.secret") {
		t.Errorf("error should mention jwt.secret, got: %v", err)
	}
}

func TestValidateRejectsShortJWTSecret(t *testing.T) {
	path := writeConfigFile(t, `
database:
  path: /tmp/thermoguard-test.db
security:
  jwt:
    secret: "too-short"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for short JWT secret")
	}
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	path := writeConfigFile(t, validConfig+`
monitor:
  hysteresis_threshold: -1.0
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for negative hysteresis threshold")
	}
}

func TestMonitorDurationHelpers(t *testing.T) {
	m := MonitorConfig{
		AlertCooldownMinutes:          5,
		SensorOfflineThresholdMinutes: 5,
		ReadingRetentionDays:          30,
		ReadingAggregationHours:       24,
		AlertRetentionDays:            365,
		EscalationThresholdMinutes:    30,
		IRCommandTimeoutSeconds:       5,
	}

	if got := m.AlertCooldown(); got != 5*time.Minute {
		t.Errorf("AlertCooldown: got %v", got)
	}
	if got := m.SensorOfflineThreshold(); got != 5*time.Minute {
		t.Errorf("SensorOfflineThreshold: got %v", got)
	}
	if got := m.ReadingRetention(); got != 30*24*time.Hour {
		t.Errorf("ReadingRetention: got %v", got)
	}
	if got := m.ReadingAggregationAge(); got != 24*time.Hour {
		t.Errorf("ReadingAggregationAge: got %v", got)
	}
	if got := m.AlertRetention(); got != 365*24*time.Hour {
		t.Errorf("AlertRetention: got %v", got)
	}
	if got := m.EscalationThreshold(); got != 30*time.Minute {
		t.Errorf("EscalationThreshold: got %v", got)
	}
	if got := m.IRCommandTimeout(); got != 5*time.Second {
		t.Errorf("IRCommandTimeout: got %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
