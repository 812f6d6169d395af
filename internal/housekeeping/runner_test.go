package housekeeping

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thermoguard/thermoguard-core/internal/alert"
	"github.com/thermoguard/thermoguard-core/internal/notify"
	"github.com/thermoguard/thermoguard-core/internal/sensor"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE sensors (
		id         TEXT PRIMARY KEY,
		device_id  TEXT NOT NULL UNIQUE,
		room_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		type       TEXT NOT NULL,
		is_online  INTEGER NOT NULL DEFAULT 0,
		last_seen  TEXT,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	) STRICT;

	CREATE TABLE readings (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		sensor_id   TEXT NOT NULL REFERENCES sensors(id) ON DELETE CASCADE,
		temperature REAL,
		humidity    REAL,
		timestamp   TEXT NOT NULL
	) STRICT;

	CREATE TABLE aggregated_readings (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		sensor_id       TEXT NOT NULL REFERENCES sensors(id) ON DELETE CASCADE,
		hour            TEXT NOT NULL,
		min_temperature REAL,
		max_temperature REAL,
		avg_temperature REAL,
		min_humidity    REAL,
		max_humidity    REAL,
		avg_humidity    REAL,
		reading_count   INTEGER NOT NULL,
		UNIQUE (sensor_id, hour)
	) STRICT;

	CREATE TABLE alerts (
		id              TEXT PRIMARY KEY,
		room_id         TEXT NOT NULL,
		type            TEXT NOT NULL,
		severity        TEXT NOT NULL,
		message         TEXT NOT NULL,
		value           REAL,
		threshold       REAL,
		is_acknowledged INTEGER NOT NULL DEFAULT 0,
		acknowledged_by TEXT,
		acknowledged_at TEXT,
		escalated_at    TEXT,
		created_at      TEXT NOT NULL
	) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}
	return db
}

type captureSink struct {
	events []notify.Event
}

func (s *captureSink) Emit(e notify.Event) { s.events = append(s.events, e) }

type testRunner struct {
	runner  *Runner
	db      *sql.DB
	sensors *sensor.SQLiteRepository
	alerts  *alert.SQLiteRepository
	sink    *captureSink
}

func newTestRunner(t *testing.T) *testRunner {
	t.Helper()
	db := setupTestDB(t)
	sensors := sensor.NewSQLiteRepository(db)
	alerts := alert.NewSQLiteRepository(db)
	engine := alert.NewEngine(alerts, alert.Config{Cooldown: 5 * time.Minute, CriticalTempOffset: 5.0}, nil)
	sink := &captureSink{}

	cfg := Config{
		SensorOfflineThreshold: 5 * time.Minute,
		ReadingRetention:       30 * 24 * time.Hour,
		ReadingAggregationAge:  24 * time.Hour,
		AlertRetention:         365 * 24 * time.Hour,
		EscalationThreshold:    30 * time.Minute,
	}
	return &testRunner{
		runner:  NewRunner(sensors, engine, sink, cfg, nil),
		db:      db,
		sensors: sensors,
		alerts:  alerts,
		sink:    sink,
	}
}

func seedSensor(t *testing.T, db *sql.DB, id string, online bool, lastSeen time.Time) {
	t.Helper()
	onlineVal := 0
	if online {
		onlineVal = 1
	}
	_, err := db.Exec(
		`INSERT INTO sensors (id, device_id, room_id, name, type, is_online, last_seen)
		VALUES (?, ?, 'room-1', ?, 'combined', ?, ?)`,
		id, "dev-"+id, "Sensor "+id, onlineVal, lastSeen.UTC().Format(time.RFC3339))
	if err != nil {
		t.Fatalf("seeding sensor %s: %v", id, err)
	}
}

func TestCheckSensorStatusMarksStaleOffline(t *testing.T) {
	tr := newTestRunner(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedSensor(t, tr.db, "sens-fresh", true, now.Add(-time.Minute))
	seedSensor(t, tr.db, "sens-stale", true, now.Add(-10*time.Minute))
	seedSensor(t, tr.db, "sens-gone", false, now.Add(-time.Hour))

	marked, err := tr.runner.CheckSensorStatus(ctx)
	if err != nil {
		t.Fatalf("CheckSensorStatus: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected 1 sensor marked offline, got %d", marked)
	}

	s, err := tr.sensors.GetSensor(ctx, "sens-stale")
	if err != nil {
		t.Fatalf("GetSensor: %v", err)
	}
	if s.IsOnline {
		t.Error("expected stale sensor offline")
	}
	fresh, err := tr.sensors.GetSensor(ctx, "sens-fresh")
	if err != nil {
		t.Fatalf("GetSensor: %v", err)
	}
	if !fresh.IsOnline {
		t.Error("expected fresh sensor still online")
	}

	if len(tr.sink.events) != 2 ||
		tr.sink.events[0].Kind != notify.KindAlertTriggered ||
		tr.sink.events[1].Kind != notify.KindConnectionStatus {
		t.Fatalf("expected alert_triggered then connection_status, got %+v", tr.sink.events)
	}

	// The transition raised exactly one sensor_offline alert.
	var offlineAlerts int
	if err := tr.db.QueryRow(
		"SELECT COUNT(*) FROM alerts WHERE type = 'sensor_offline'").Scan(&offlineAlerts); err != nil {
		t.Fatalf("counting alerts: %v", err)
	}
	if offlineAlerts != 1 {
		t.Fatalf("expected 1 sensor_offline alert, got %d", offlineAlerts)
	}
	active, err := tr.alerts.ListActiveByRoom(ctx, "room-1")
	if err != nil {
		t.Fatalf("ListActiveByRoom: %v", err)
	}
	if len(active) != 1 || active[0].Severity != alert.SeverityWarning {
		t.Fatalf("expected one warning sensor_offline alert, got %+v", active)
	}

	// Second sweep finds nothing: idempotent, and no duplicate alert.
	marked, err = tr.runner.CheckSensorStatus(ctx)
	if err != nil {
		t.Fatalf("CheckSensorStatus repeat: %v", err)
	}
	if marked != 0 {
		t.Errorf("expected repeat sweep to mark nothing, got %d", marked)
	}
	if err := tr.db.QueryRow(
		"SELECT COUNT(*) FROM alerts WHERE type = 'sensor_offline'").Scan(&offlineAlerts); err != nil {
		t.Fatalf("counting alerts: %v", err)
	}
	if offlineAlerts != 1 {
		t.Errorf("expected no duplicate sensor_offline alert, got %d", offlineAlerts)
	}
}

// flakyStore wraps a real sensor store and fails MarkOffline for one
// sensor ID.
type flakyStore struct {
	*sensor.SQLiteRepository
	failID string
}

func (f *flakyStore) MarkOffline(ctx context.Context, id string) (bool, error) {
	if id == f.failID {
		return false, errors.New("sensor: database is locked")
	}
	return f.SQLiteRepository.MarkOffline(ctx, id)
}

func TestCheckSensorStatusContinuesPastFailure(t *testing.T) {
	tr := newTestRunner(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedSensor(t, tr.db, "sens-bad", true, now.Add(-10*time.Minute))
	seedSensor(t, tr.db, "sens-worse", true, now.Add(-20*time.Minute))

	engine := alert.NewEngine(tr.alerts, alert.Config{Cooldown: 5 * time.Minute, CriticalTempOffset: 5.0}, nil)
	runner := NewRunner(&flakyStore{SQLiteRepository: tr.sensors, failID: "sens-bad"},
		engine, tr.sink, tr.runner.cfg, nil)

	marked, err := runner.CheckSensorStatus(ctx)
	if err != nil {
		t.Fatalf("CheckSensorStatus: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected the sweep to carry on past the failure, got %d marked", marked)
	}

	s, err := tr.sensors.GetSensor(ctx, "sens-worse")
	if err != nil {
		t.Fatalf("GetSensor: %v", err)
	}
	if s.IsOnline {
		t.Error("expected sens-worse offline despite the earlier failure")
	}
}

func TestAggregateReadingsCompactsAndPrunes(t *testing.T) {
	tr := newTestRunner(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedSensor(t, tr.db, "sens-1", true, now)

	temps := []float64{20.0, 22.0, 24.0}
	old := now.Add(-30 * time.Hour)
	for i, temp := range temps {
		tv := temp
		if err := tr.sensors.InsertReading(ctx, &sensor.Reading{
			SensorID:    "sens-1",
			Temperature: &tv,
			Timestamp:   old.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}
	recent := 23.0
	if err := tr.sensors.InsertReading(ctx, &sensor.Reading{
		SensorID:    "sens-1",
		Temperature: &recent,
		Timestamp:   now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("InsertReading: %v", err)
	}

	compacted, err := tr.runner.AggregateReadings(ctx)
	if err != nil {
		t.Fatalf("AggregateReadings: %v", err)
	}
	if compacted != 3 {
		t.Errorf("expected 3 readings compacted, got %d", compacted)
	}

	var raw, buckets int
	if err := tr.db.QueryRow("SELECT COUNT(*) FROM readings").Scan(&raw); err != nil {
		t.Fatalf("counting readings: %v", err)
	}
	if err := tr.db.QueryRow("SELECT COUNT(*) FROM aggregated_readings").Scan(&buckets); err != nil {
		t.Fatalf("counting buckets: %v", err)
	}
	if raw != 1 {
		t.Errorf("expected only the recent reading to survive, got %d", raw)
	}
	if buckets != 1 {
		t.Errorf("expected 1 hourly bucket, got %d", buckets)
	}

	// Nothing left to compact.
	compacted, err = tr.runner.AggregateReadings(ctx)
	if err != nil {
		t.Fatalf("AggregateReadings repeat: %v", err)
	}
	if compacted != 0 {
		t.Errorf("expected repeat sweep to compact nothing, got %d", compacted)
	}
}

func TestEscalateCriticalAlertsEmitsEvents(t *testing.T) {
	tr := newTestRunner(t)
	ctx := context.Background()

	overdue := &alert.Alert{
		ID:        "alert-overdue",
		RoomID:    "room-1",
		Type:      alert.TypeHighTemp,
		Severity:  alert.SeverityCritical,
		Message:   "Temperature 28.0°C exceeds critical threshold 27.0°C",
		CreatedAt: time.Now().UTC().Add(-45 * time.Minute),
	}
	if err := tr.alerts.Create(ctx, overdue); err != nil {
		t.Fatalf("Create: %v", err)
	}

	count, err := tr.runner.EscalateCriticalAlerts(ctx)
	if err != nil {
		t.Fatalf("EscalateCriticalAlerts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 escalation, got %d", count)
	}
	if len(tr.sink.events) != 1 || tr.sink.events[0].Kind != notify.KindAlertTriggered {
		t.Fatalf("expected an alert_triggered event, got %+v", tr.sink.events)
	}

	count, err = tr.runner.EscalateCriticalAlerts(ctx)
	if err != nil {
		t.Fatalf("EscalateCriticalAlerts repeat: %v", err)
	}
	if count != 0 {
		t.Errorf("expected repeat sweep to escalate nothing, got %d", count)
	}
}

func TestCleanupOldAlerts(t *testing.T) {
	tr := newTestRunner(t)
	ctx := context.Background()

	ancient := time.Now().UTC().Add(-400 * 24 * time.Hour)
	a := &alert.Alert{
		ID:        "alert-ancient",
		RoomID:    "room-1",
		Type:      alert.TypeHighHumidity,
		Severity:  alert.SeverityWarning,
		Message:   "Humidity 62.0% exceeds threshold 60.0%",
		CreatedAt: ancient,
	}
	if err := tr.alerts.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tr.alerts.Acknowledge(ctx, a.ID, "operator1", time.Now().UTC()); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	deleted, err := tr.runner.CleanupOldAlerts(ctx)
	if err != nil {
		t.Fatalf("CleanupOldAlerts: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 alert pruned, got %d", deleted)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	tr := newTestRunner(t)
	tr.runner.cfg.SensorCheckInterval = 10 * time.Millisecond
	tr.runner.cfg.AggregationInterval = 10 * time.Millisecond
	tr.runner.cfg.RetentionInterval = 10 * time.Millisecond
	tr.runner.cfg.EscalationInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	tr.runner.Start(ctx)

	time.Sleep(30 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		tr.runner.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
}
