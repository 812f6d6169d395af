// ThermoGuard Core - Data Centre Thermal Monitoring Platform
//
// This is the main entry point for the ThermoGuard Core application.
// ThermoGuard watches rack-level ESP32 climate sensors, raises threshold
// alerts, and drives air conditioning units over recorded IR codes:
//   - Offline-first operation (the core keeps working without internet)
//   - SQLite as the source of truth, InfluxDB for long-range history
//   - MQTT for all field traffic (sensor firmware, IR transmitters)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/thermoguard/thermoguard-core/migrations"

	"github.com/thermoguard/thermoguard-core/internal/aircon"
	"github.com/thermoguard/thermoguard-core/internal/alert"
	"github.com/thermoguard/thermoguard-core/internal/api"
	"github.com/thermoguard/thermoguard-core/internal/auth"
	"github.com/thermoguard/thermoguard-core/internal/datacenter"
	"github.com/thermoguard/thermoguard-core/internal/housekeeping"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/config"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/database"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/influxdb"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/logging"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/mqtt"
	"github.com/thermoguard/thermoguard-core/internal/ingest"
	"github.com/thermoguard/thermoguard-core/internal/notify"
	"github.com/thermoguard/thermoguard-core/internal/sensor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ThermoGuard Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories share the single SQLite handle
	facilityRepo := datacenter.NewSQLiteRepository(db.DB)
	sensorRepo := sensor.NewSQLiteRepository(db.DB)
	alertRepo := alert.NewSQLiteRepository(db.DB)
	acRepo := aircon.NewSQLiteRepository(db.DB)
	userRepo := auth.NewSQLiteUserRepository(db.DB)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Set up MQTT logging callbacks
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	qos := byte(cfg.MQTT.QoS)

	// Event fan-out: WebSocket hub plus an MQTT mirror of the same stream
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	mirror := &eventMirror{client: mqttClient, qos: qos}
	broadcaster := notify.NewBroadcaster(hub, mirror, log)

	// Alert engine
	engine := alert.NewEngine(alertRepo, alert.Config{
		Cooldown:           cfg.Monitor.AlertCooldown(),
		CriticalTempOffset: cfg.Monitor.TemperatureCriticalThreshold,
	}, log)

	// AC controller with the MQTT IR sender
	sender := aircon.NewMQTTIRSender(mqttClient, qos, log)
	control := aircon.NewController(acRepo, sender, engine, broadcaster, aircon.Config{
		CommandTimeout: cfg.Monitor.IRCommandTimeout(),
		Hysteresis:     cfg.Monitor.HysteresisThreshold,
	}, log)

	// Listen for IR codes captured by transmitters in recording mode
	if listenErr := control.ListenRecorded(mqttClient, qos); listenErr != nil {
		return fmt.Errorf("subscribing to IR capture topic: %w", listenErr)
	}

	// Ingestion pipeline. The time-series mirror stays nil when InfluxDB
	// is disabled; assigning a nil *influxdb.Client directly would make
	// the interface non-nil.
	var tsdb ingest.TimeSeriesWriter
	if influxClient != nil {
		tsdb = influxClient
	}
	pipeline := ingest.NewPipeline(sensorRepo, facilityRepo, engine, control, tsdb, broadcaster, log)

	// Housekeeping sweeps
	keeper := housekeeping.NewRunner(sensorRepo, engine, broadcaster, housekeeping.Config{
		SensorCheckInterval: cfg.Housekeeping.SensorCheckIntervalDuration(),
		RetentionInterval:   cfg.Housekeeping.RetentionIntervalDuration(),
		AggregationInterval: cfg.Housekeeping.AggregationIntervalDuration(),
		EscalationInterval:  cfg.Housekeeping.EscalationIntervalDuration(),

		SensorOfflineThreshold: cfg.Monitor.SensorOfflineThreshold(),
		ReadingRetention:       cfg.Monitor.ReadingRetention(),
		ReadingAggregationAge:  cfg.Monitor.ReadingAggregationAge(),
		AlertRetention:         cfg.Monitor.AlertRetention(),
		EscalationThreshold:    cfg.Monitor.EscalationThreshold(),
	}, log)
	keeper.Start(ctx)
	defer keeper.Wait()
	log.Info("housekeeping sweeps started")

	// Bootstrap the admin account on a fresh database
	if err := bootstrapAdmin(ctx, userRepo, log); err != nil {
		return fmt.Errorf("bootstrapping admin account: %w", err)
	}

	// Start the API server with the shared hub
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Pipeline:    pipeline,
		Facilities:  facilityRepo,
		Sensors:     sensorRepo,
		Alerts:      engine,
		AlertStore:  alertRepo,
		Control:     control,
		ACs:         acRepo,
		Users:       userRepo,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Housekeeping drain
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("ThermoGuard Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses THERMOGUARD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("THERMOGUARD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// bootstrapAdmin creates the initial admin account on a fresh deployment.
//
// The password comes from THERMOGUARD_ADMIN_PASSWORD; without it no
// account is created, which is the right behaviour once real accounts
// exist. An existing account with the same username is left untouched.
func bootstrapAdmin(ctx context.Context, users auth.UserRepository, log *logging.Logger) error {
	password := os.Getenv("THERMOGUARD_ADMIN_PASSWORD")
	if password == "" {
		log.Debug("THERMOGUARD_ADMIN_PASSWORD not set, skipping admin bootstrap")
		return nil
	}

	username := os.Getenv("THERMOGUARD_ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}

	created, err := auth.EnsureAdmin(ctx, users, username, password)
	if err != nil {
		return err
	}
	if created {
		log.Info("admin account created", "username", username)
	}
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when the time-series mirror is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// eventMirror adapts the infrastructure MQTT client to the broadcaster's
// WirePublisher interface, publishing each event on its kind topic so
// headless consumers see the same stream the dashboards do.
type eventMirror struct {
	client *mqtt.Client
	qos    byte
}

// PublishEvent implements notify.WirePublisher.
func (m *eventMirror) PublishEvent(kind string, payload []byte) error {
	return m.client.Publish(mqtt.Topics{}.CoreEvent(kind), payload, m.qos, false)
}
