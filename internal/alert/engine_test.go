package alert

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thermoguard/thermoguard-core/internal/datacenter"
	"github.com/thermoguard/thermoguard-core/internal/sensor"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
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

func newTestEngine(t *testing.T, cooldown time.Duration) *Engine {
	t.Helper()
	repo := NewSQLiteRepository(setupTestDB(t))
	return NewEngine(repo, Config{Cooldown: cooldown, CriticalTempOffset: 5.0}, nil)
}

func testRoom() *datacenter.Room {
	return &datacenter.Room{
		ID:                "room-1",
		DataCenterID:      "dc-east",
		Name:              "Server Room A",
		TargetTemperature: 22.0,
		TargetHumidity:    45.0,
		OperationMode:     datacenter.ModeAutomatic,
	}
}

func floatp(f float64) *float64 { return &f }

func TestEvaluateReadingThresholdLadder(t *testing.T) {
	tests := []struct {
		name         string
		temperature  *float64
		humidity     *float64
		wantType     Type
		wantSeverity Severity
		wantMessage  string
		wantNone     bool
	}{
		{
			name:        "in band raises nothing",
			temperature: floatp(22.5),
			humidity:    floatp(50.0),
			wantNone:    true,
		},
		{
			name:        "warning boundary is exclusive",
			temperature: floatp(24.0),
			wantNone:    true,
		},
		{
			name:         "just over warning threshold",
			temperature:  floatp(24.1),
			wantType:     TypeHighTemp,
			wantSeverity: SeverityWarning,
			wantMessage:  "Temperature 24.1°C exceeds warning threshold 24.0°C",
		},
		{
			name:         "critical boundary stays warning",
			temperature:  floatp(27.0),
			wantType:     TypeHighTemp,
			wantSeverity: SeverityWarning,
			wantMessage:  "Temperature 27.0°C exceeds warning threshold 24.0°C",
		},
		{
			name:         "over critical threshold",
			temperature:  floatp(28.0),
			wantType:     TypeHighTemp,
			wantSeverity: SeverityCritical,
			wantMessage:  "Temperature 28.0°C exceeds critical threshold 27.0°C",
		},
		{
			name:        "low boundary is exclusive",
			temperature: floatp(19.0),
			wantNone:    true,
		},
		{
			name:         "below low threshold",
			temperature:  floatp(18.5),
			wantType:     TypeLowTemp,
			wantSeverity: SeverityWarning,
			wantMessage:  "Temperature 18.5°C below low threshold 19.0°C",
		},
		{
			name:     "humidity boundary is exclusive",
			humidity: floatp(60.0),
			wantNone: true,
		},
		{
			name:         "over humidity threshold",
			humidity:     floatp(62.5),
			wantType:     TypeHighHumidity,
			wantSeverity: SeverityWarning,
			wantMessage:  "Humidity 62.5% exceeds threshold 60.0%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, 5*time.Minute)
			reading := &sensor.Reading{
				SensorID:    "sens-1",
				Temperature: tt.temperature,
				Humidity:    tt.humidity,
				Timestamp:   time.Now().UTC(),
			}

			raised, err := engine.EvaluateReading(context.Background(), testRoom(), reading)
			if err != nil {
				t.Fatalf("EvaluateReading: %v", err)
			}

			if tt.wantNone {
				if len(raised) != 0 {
					t.Fatalf("expected no alerts, got %+v", raised)
				}
				return
			}
			if len(raised) != 1 {
				t.Fatalf("expected 1 alert, got %d", len(raised))
			}
			a := raised[0]
			if a.Type != tt.wantType {
				t.Errorf("expected type %s, got %s", tt.wantType, a.Type)
			}
			if a.Severity != tt.wantSeverity {
				t.Errorf("expected severity %s, got %s", tt.wantSeverity, a.Severity)
			}
			if a.Message != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, a.Message)
			}
		})
	}
}

func TestEvaluateReadingBothChannelsAlert(t *testing.T) {
	engine := newTestEngine(t, 5*time.Minute)
	reading := &sensor.Reading{
		SensorID:    "sens-1",
		Temperature: floatp(28.5),
		Humidity:    floatp(65.0),
		Timestamp:   time.Now().UTC(),
	}

	raised, err := engine.EvaluateReading(context.Background(), testRoom(), reading)
	if err != nil {
		t.Fatalf("EvaluateReading: %v", err)
	}
	if len(raised) != 2 {
		t.Fatalf("expected temperature and humidity alerts, got %d", len(raised))
	}
	if raised[0].Type != TypeHighTemp || raised[1].Type != TypeHighHumidity {
		t.Errorf("unexpected alert types: %s, %s", raised[0].Type, raised[1].Type)
	}
}

func TestRaiseCooldownSuppressesRepeat(t *testing.T) {
	engine := newTestEngine(t, 5*time.Minute)
	ctx := context.Background()

	first, err := engine.Raise(ctx, &Alert{
		RoomID: "room-1", Type: TypeHighTemp, Severity: SeverityWarning,
		Message: "Temperature 24.5°C exceeds warning threshold 24.0°C",
	})
	if err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if first == nil {
		t.Fatal("expected first alert to be created")
	}

	repeat, err := engine.Raise(ctx, &Alert{
		RoomID: "room-1", Type: TypeHighTemp, Severity: SeverityWarning,
		Message: "Temperature 24.6°C exceeds warning threshold 24.0°C",
	})
	if err != nil {
		t.Fatalf("Raise repeat: %v", err)
	}
	if repeat != nil {
		t.Errorf("expected repeat within cooldown to be suppressed, got %+v", repeat)
	}

	// A different type in the same room is not suppressed.
	other, err := engine.Raise(ctx, &Alert{
		RoomID: "room-1", Type: TypeHighHumidity, Severity: SeverityWarning,
		Message: "Humidity 62.0% exceeds threshold 60.0%",
	})
	if err != nil {
		t.Fatalf("Raise other type: %v", err)
	}
	if other == nil {
		t.Error("expected different alert type to bypass cooldown")
	}
}

func TestAcknowledgeEndsCooldown(t *testing.T) {
	engine := newTestEngine(t, 5*time.Minute)
	ctx := context.Background()

	first, err := engine.Raise(ctx, &Alert{
		RoomID: "room-1", Type: TypeHighTemp, Severity: SeverityWarning,
		Message: "Temperature 24.5°C exceeds warning threshold 24.0°C",
	})
	if err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if err := engine.Acknowledge(ctx, first.ID, "operator1"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	second, err := engine.Raise(ctx, &Alert{
		RoomID: "room-1", Type: TypeHighTemp, Severity: SeverityWarning,
		Message: "Temperature 24.7°C exceeds warning threshold 24.0°C",
	})
	if err != nil {
		t.Fatalf("Raise after ack: %v", err)
	}
	if second == nil {
		t.Error("expected acknowledged alert to end the cooldown")
	}
}

func TestAcknowledgeTwiceFails(t *testing.T) {
	engine := newTestEngine(t, 5*time.Minute)
	ctx := context.Background()

	a, err := engine.Raise(ctx, &Alert{
		RoomID: "room-1", Type: TypeACError, Severity: SeverityWarning,
		Message: "Failed to execute turn_on on AC unit CRAC-1",
	})
	if err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if err := engine.Acknowledge(ctx, a.ID, "operator1"); err != nil {
		t.Fatalf("first Acknowledge: %v", err)
	}
	if err := engine.Acknowledge(ctx, a.ID, "operator2"); !errors.Is(err, ErrAlreadyAcknowledged) {
		t.Errorf("expected ErrAlreadyAcknowledged, got %v", err)
	}
	if err := engine.Acknowledge(ctx, "missing", "operator1"); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("expected ErrAlertNotFound, got %v", err)
	}

	got, err := engine.repo.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AcknowledgedBy == nil || *got.AcknowledgedBy != "operator1" {
		t.Errorf("expected first acknowledger to win, got %v", got.AcknowledgedBy)
	}
}

func TestEscalateOverdueIsIdempotent(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	engine := NewEngine(repo, Config{Cooldown: 5 * time.Minute, CriticalTempOffset: 5.0}, nil)
	ctx := context.Background()

	// Backdate a critical alert past the escalation threshold.
	old := &Alert{
		ID:        "alert-old",
		RoomID:    "room-1",
		Type:      TypeHighTemp,
		Severity:  SeverityCritical,
		Message:   "Temperature 28.0°C exceeds critical threshold 27.0°C",
		CreatedAt: time.Now().UTC().Add(-45 * time.Minute),
	}
	if err := repo.Create(ctx, old); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// A fresh critical alert must not be escalated.
	fresh := &Alert{
		ID:        "alert-fresh",
		RoomID:    "room-2",
		Type:      TypeHighTemp,
		Severity:  SeverityCritical,
		Message:   "Temperature 29.0°C exceeds critical threshold 27.0°C",
		CreatedAt: time.Now().UTC().Add(-5 * time.Minute),
	}
	if err := repo.Create(ctx, fresh); err != nil {
		t.Fatalf("Create: %v", err)
	}

	escalated, err := engine.EscalateOverdue(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("EscalateOverdue: %v", err)
	}
	if len(escalated) != 1 || escalated[0].ID != "alert-old" {
		t.Fatalf("expected only alert-old escalated, got %+v", escalated)
	}
	if escalated[0].EscalatedAt == nil {
		t.Error("expected escalated_at to be stamped")
	}

	// Second sweep finds nothing new.
	escalated, err = engine.EscalateOverdue(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("EscalateOverdue repeat: %v", err)
	}
	if len(escalated) != 0 {
		t.Errorf("expected repeat sweep to escalate nothing, got %d", len(escalated))
	}
}

func TestCleanupOldSparesUnacknowledged(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	engine := NewEngine(repo, Config{Cooldown: 5 * time.Minute, CriticalTempOffset: 5.0}, nil)
	ctx := context.Background()

	ancient := time.Now().UTC().Add(-400 * 24 * time.Hour)
	acked := &Alert{
		ID:        "alert-acked",
		RoomID:    "room-1",
		Type:      TypeHighTemp,
		Severity:  SeverityWarning,
		Message:   "old and handled",
		CreatedAt: ancient,
	}
	unacked := &Alert{
		ID:        "alert-unacked",
		RoomID:    "room-1",
		Type:      TypeLowTemp,
		Severity:  SeverityWarning,
		Message:   "old but never handled",
		CreatedAt: ancient,
	}
	for _, a := range []*Alert{acked, unacked} {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Acknowledge(ctx, "alert-acked", "operator1", time.Now().UTC()); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	deleted, err := engine.CleanupOld(ctx, 365*24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupOld: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 alert pruned, got %d", deleted)
	}
	if _, err := repo.Get(ctx, "alert-unacked"); err != nil {
		t.Errorf("expected unacknowledged alert to survive, got %v", err)
	}
}

func TestActiveCounts(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	seed := []*Alert{
		{ID: "a1", RoomID: "room-1", Type: TypeHighTemp, Severity: SeverityCritical, Message: "m", CreatedAt: time.Now().UTC()},
		{ID: "a2", RoomID: "room-1", Type: TypeHighHumidity, Severity: SeverityWarning, Message: "m", CreatedAt: time.Now().UTC()},
		{ID: "a3", RoomID: "room-2", Type: TypeLowTemp, Severity: SeverityWarning, Message: "m", CreatedAt: time.Now().UTC()},
		{ID: "a4", RoomID: "room-1", Type: TypeSystemError, Severity: SeverityInfo, Message: "m", CreatedAt: time.Now().UTC()},
	}
	for _, a := range seed {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Acknowledge(ctx, "a3", "operator1", time.Now().UTC()); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	counts, err := repo.ActiveCounts(ctx)
	if err != nil {
		t.Fatalf("ActiveCounts: %v", err)
	}
	if len(counts) != 1 {
		t.Fatalf("expected counts for one room, got %d", len(counts))
	}
	c := counts[0]
	if c.RoomID != "room-1" || c.Info != 1 || c.Warning != 1 || c.Critical != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
}

func TestRaiseACErrorIsWarning(t *testing.T) {
	engine := newTestEngine(t, 5*time.Minute)

	a, err := engine.RaiseACError(context.Background(), "room-1",
		"Failed to execute turn_on on AC unit CRAC-1: transmitter reported failure")
	if err != nil {
		t.Fatalf("RaiseACError: %v", err)
	}
	if a == nil {
		t.Fatal("expected an alert to be raised")
	}
	if a.Type != TypeACError || a.Severity != SeverityWarning {
		t.Errorf("expected warning ac_error, got %s/%s", a.Type, a.Severity)
	}
}

func TestAlertEnums(t *testing.T) {
	valid := []Type{TypeHighTemp, TypeLowTemp, TypeHighHumidity, TypeLowHumidity,
		TypeSensorOffline, TypeACError, TypeSystemError}
	for _, typ := range valid {
		if !IsValidType(typ) {
			t.Errorf("expected %s to be a valid alert type", typ)
		}
	}
	if IsValidType(Type("meltdown")) {
		t.Error("expected unknown type to be rejected")
	}

	for _, sev := range []Severity{SeverityInfo, SeverityWarning, SeverityCritical} {
		if !IsValidSeverity(sev) {
			t.Errorf("expected %s to be a valid severity", sev)
		}
	}
	if IsValidSeverity(Severity("panic")) {
		t.Error("expected unknown severity to be rejected")
	}
}
