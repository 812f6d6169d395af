package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for ThermoGuard Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API          APIConfig          `yaml:"api"`
	Database     DatabaseConfig     `yaml:"database"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	WebSocket    WebSocketConfig    `yaml:"websocket"`
	Logging      LoggingConfig      `yaml:"logging"`
	Security     SecurityConfig     `yaml:"security"`
	Monitor      MonitorConfig      `yaml:"monitor"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains the optional time-series mirror settings.
// When enabled, every accepted sensor reading is mirrored to InfluxDB
// for long-range dashboards; SQLite remains the source of truth.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// MonitorConfig carries the thermal-monitoring control constants.
//
// These are the tunables the alert engine, actuation controller, and
// housekeeping jobs are constructed with. Defaults match the deployed
// ESP32 fleet's reporting cadence (a reading roughly every 30 seconds,
// so five minutes of silence reliably means the sensor is gone).
type MonitorConfig struct {
	// AlertCooldownMinutes is the minimum gap between two alerts of the
	// same (room, type) while the first is unacknowledged.
	AlertCooldownMinutes int `yaml:"alert_cooldown_minutes"`

	// TemperatureCriticalThreshold is the offset above a room's target
	// temperature at which a high_temp alert becomes critical (°C).
	TemperatureCriticalThreshold float64 `yaml:"temperature_critical_threshold"`

	// HysteresisThreshold is the dead band around the room setpoint
	// within which automatic AC control takes no action (°C).
	HysteresisThreshold float64 `yaml:"hysteresis_threshold"`

	// SensorOfflineThresholdMinutes is how long a sensor may be silent
	// before the liveness sweep marks it offline.
	SensorOfflineThresholdMinutes int `yaml:"sensor_offline_threshold_minutes"`

	// ReadingRetentionDays is how long raw readings are kept.
	ReadingRetentionDays int `yaml:"reading_retention_days"`

	// ReadingAggregationHours is the age past which raw readings are
	// compacted into hourly aggregates.
	ReadingAggregationHours int `yaml:"reading_aggregation_hours"`

	// AlertRetentionDays is how long acknowledged alerts are kept.
	AlertRetentionDays int `yaml:"alert_retention_days"`

	// EscalationThresholdMinutes is the age past which an unacknowledged
	// critical alert is escalated.
	EscalationThresholdMinutes int `yaml:"escalation_threshold_minutes"`

	// IRCommandTimeoutSeconds bounds the round-trip to an ESP32 IR
	// transmitter. A timeout counts as a command failure.
	IRCommandTimeoutSeconds int `yaml:"ir_command_timeout_seconds"`
}

// HousekeepingConfig contains the schedule for background sweeps in seconds.
type HousekeepingConfig struct {
	SensorCheckInterval int `yaml:"sensor_check_interval"`
	RetentionInterval   int `yaml:"retention_interval"`
	AggregationInterval int `yaml:"aggregation_interval"`
	EscalationInterval  int `yaml:"escalation_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: THERMOGUARD_SECTION_KEY
// For example: THERMOGUARD_DATABASE_PATH, THERMOGUARD_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/thermoguard.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "thermoguard-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
		Monitor: MonitorConfig{
			AlertCooldownMinutes:          5,
			TemperatureCriticalThreshold:  5.0,
			HysteresisThreshold:           1.0,
			SensorOfflineThresholdMinutes: 5,
			ReadingRetentionDays:          30,
			ReadingAggregationHours:       24,
			AlertRetentionDays:            365,
			EscalationThresholdMinutes:    30,
			IRCommandTimeoutSeconds:       5,
		},
		Housekeeping: HousekeepingConfig{
			SensorCheckInterval: 60,
			RetentionInterval:   3600,
			AggregationInterval: 3600,
			EscalationInterval:  300,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: THERMOGUARD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("THERMOGUARD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("THERMOGUARD_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("THERMOGUARD_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("THERMOGUARD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("THERMOGUARD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("THERMOGUARD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("THERMOGUARD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always set in production)
	if v := os.Getenv("THERMOGUARD_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// minJWTSecretLength is the minimum accepted JWT secret length.
const minJWTSecretLength = 32

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Setpoint-relative thresholds must be positive or the control
	// loops invert.
	if c.Monitor.TemperatureCriticalThreshold <= 0 {
		errs = append(errs, "monitor.temperature_critical_threshold must be positive")
	}
	if c.Monitor.HysteresisThreshold <= 0 {
		errs = append(errs, "monitor.hysteresis_threshold must be positive")
	}
	if c.Monitor.AlertCooldownMinutes < 0 {
		errs = append(errs, "monitor.alert_cooldown_minutes cannot be negative")
	}
	if c.Monitor.SensorOfflineThresholdMinutes <= 0 {
		errs = append(errs, "monitor.sensor_offline_threshold_minutes must be positive")
	}
	if c.Monitor.IRCommandTimeoutSeconds <= 0 {
		errs = append(errs, "monitor.ir_command_timeout_seconds must be positive")
	}

	// A forged token can drive physical hardware, so the secret is not optional.
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set THERMOGUARD_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// AlertCooldown returns the alert dedup window as a Duration.
func (m MonitorConfig) AlertCooldown() time.Duration {
	return time.Duration(m.AlertCooldownMinutes) * time.Minute
}

// SensorOfflineThreshold returns the sensor silence threshold as a Duration.
func (m MonitorConfig) SensorOfflineThreshold() time.Duration {
	return time.Duration(m.SensorOfflineThresholdMinutes) * time.Minute
}

// ReadingRetention returns the raw reading retention window as a Duration.
func (m MonitorConfig) ReadingRetention() time.Duration {
	return time.Duration(m.ReadingRetentionDays) * 24 * time.Hour
}

// ReadingAggregationAge returns the age past which readings are compacted.
func (m MonitorConfig) ReadingAggregationAge() time.Duration {
	return time.Duration(m.ReadingAggregationHours) * time.Hour
}

// AlertRetention returns the acknowledged alert retention window as a Duration.
func (m MonitorConfig) AlertRetention() time.Duration {
	return time.Duration(m.AlertRetentionDays) * 24 * time.Hour
}

// EscalationThreshold returns the critical alert escalation age as a Duration.
func (m MonitorConfig) EscalationThreshold() time.Duration {
	return time.Duration(m.EscalationThresholdMinutes) * time.Minute
}

// IRCommandTimeout returns the IR dispatch round-trip bound as a Duration.
func (m MonitorConfig) IRCommandTimeout() time.Duration {
	return time.Duration(m.IRCommandTimeoutSeconds) * time.Second
}

// SensorCheckIntervalDuration returns the liveness sweep period as a Duration.
func (h HousekeepingConfig) SensorCheckIntervalDuration() time.Duration {
	return time.Duration(h.SensorCheckInterval) * time.Second
}

// RetentionIntervalDuration returns the retention sweep period as a Duration.
func (h HousekeepingConfig) RetentionIntervalDuration() time.Duration {
	return time.Duration(h.RetentionInterval) * time.Second
}

// AggregationIntervalDuration returns the compaction sweep period as a Duration.
func (h HousekeepingConfig) AggregationIntervalDuration() time.Duration {
	return time.Duration(h.AggregationInterval) * time.Second
}

// EscalationIntervalDuration returns the escalation sweep period as a Duration.
func (h HousekeepingConfig) EscalationIntervalDuration() time.Duration {
	return time.Duration(h.EscalationInterval) * time.Second
}
