package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thermoguard/thermoguard-core/internal/datacenter"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/logging"
	"github.com/thermoguard/thermoguard-core/internal/sensor"
)

// Setpoint-relative offsets for the threshold ladder. The critical
// offset is configurable; the rest are fixed fleet-wide.
const (
	// WarningTempOffset above target raises a warning high_temp alert.
	WarningTempOffset = 2.0

	// LowTempOffset below target raises a warning low_temp alert.
	LowTempOffset = 3.0

	// HumidityOffset above target raises a warning high_humidity alert.
	HumidityOffset = 15.0
)

// Config carries the engine's tunables.
type Config struct {
	// Cooldown is the minimum gap between two alerts of the same
	// (room, type) while the first is unacknowledged.
	Cooldown time.Duration

	// CriticalTempOffset above target escalates a high_temp alert from
	// warning to critical.
	CriticalTempOffset float64
}

// Engine evaluates readings against room setpoints and raises alerts
// with per-(room, type) cooldown deduplication.
type Engine struct {
	repo   Repository
	cfg    Config
	logger *logging.Logger

	// raiseMu serialises Raise per (room, type) so two concurrent
	// readings cannot both pass the cooldown check.
	mu      sync.Mutex
	raiseMu map[string]*sync.Mutex
}

// NewEngine creates an alert engine.
func NewEngine(repo Repository, cfg Config, logger *logging.Logger) *Engine {
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.CriticalTempOffset == 0 {
		cfg.CriticalTempOffset = 5.0
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		repo:    repo,
		cfg:     cfg,
		logger:  logger,
		raiseMu: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serialising alert creation for one
// (room, type) pair, creating it on first use.
func (e *Engine) lockFor(roomID string, t Type) *sync.Mutex {
	key := roomID + "/" + string(t)
	e.mu.Lock()
	defer e.mu.Unlock()
	mu, ok := e.raiseMu[key]
	if !ok {
		mu = &sync.Mutex{}
		e.raiseMu[key] = mu
	}
	return mu
}

// Raise creates an alert unless an unacknowledged alert of the same
// (room, type) was created within the cooldown window. A suppressed
// alert returns (nil, nil): suppression is not an error.
//
// Acknowledging an alert ends its cooldown immediately, so a condition
// that persists after an operator has seen it alerts again.
func (e *Engine) Raise(ctx context.Context, a *Alert) (*Alert, error) {
	mu := e.lockFor(a.RoomID, a.Type)
	mu.Lock()
	defer mu.Unlock()

	existing, err := e.repo.LatestActive(ctx, a.RoomID, a.Type)
	if err != nil && !errors.Is(err, ErrAlertNotFound) {
		return nil, fmt.Errorf("checking alert cooldown: %w", err)
	}
	if existing != nil && time.Since(existing.CreatedAt) < e.cfg.Cooldown {
		e.logger.Debug("alert suppressed by cooldown",
			"room_id", a.RoomID, "type", string(a.Type), "existing_id", existing.ID)
		return nil, nil
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if err := e.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	e.logger.Info("alert raised",
		"alert_id", a.ID, "room_id", a.RoomID,
		"type", string(a.Type), "severity", string(a.Severity))
	return a, nil
}

// EvaluateReading walks a reading through the threshold ladder for its
// room and raises any alerts it trips. The temperature ladder is
// exclusive (a critical high reading does not also raise a warning);
// humidity is evaluated independently.
//
// Returns the alerts actually created; cooldown-suppressed conditions
// are omitted.
func (e *Engine) EvaluateReading(ctx context.Context, room *datacenter.Room, r *sensor.Reading) ([]*Alert, error) {
	var raised []*Alert

	if r.Temperature != nil {
		temp := *r.Temperature
		var candidate *Alert
		switch {
		case temp > room.TargetTemperature+e.cfg.CriticalTempOffset:
			threshold := room.TargetTemperature + e.cfg.CriticalTempOffset
			candidate = &Alert{
				RoomID:    room.ID,
				Type:      TypeHighTemp,
				Severity:  SeverityCritical,
				Message:   fmt.Sprintf("Temperature %.1f°C exceeds critical threshold %.1f°C", temp, threshold),
				Value:     &temp,
				Threshold: &threshold,
			}
		case temp > room.TargetTemperature+WarningTempOffset:
			threshold := room.TargetTemperature + WarningTempOffset
			candidate = &Alert{
				RoomID:    room.ID,
				Type:      TypeHighTemp,
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("Temperature %.1f°C exceeds warning threshold %.1f°C", temp, threshold),
				Value:     &temp,
				Threshold: &threshold,
			}
		case temp < room.TargetTemperature-LowTempOffset:
			threshold := room.TargetTemperature - LowTempOffset
			candidate = &Alert{
				RoomID:    room.ID,
				Type:      TypeLowTemp,
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("Temperature %.1f°C below low threshold %.1f°C", temp, threshold),
				Value:     &temp,
				Threshold: &threshold,
			}
		}
		if candidate != nil {
			a, err := e.Raise(ctx, candidate)
			if err != nil {
				return raised, err
			}
			if a != nil {
				raised = append(raised, a)
			}
		}
	}

	if r.Humidity != nil {
		hum := *r.Humidity
		if hum > room.TargetHumidity+HumidityOffset {
			threshold := room.TargetHumidity + HumidityOffset
			a, err := e.Raise(ctx, &Alert{
				RoomID:    room.ID,
				Type:      TypeHighHumidity,
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("Humidity %.1f%% exceeds threshold %.1f%%", hum, threshold),
				Value:     &hum,
				Threshold: &threshold,
			})
			if err != nil {
				return raised, err
			}
			if a != nil {
				raised = append(raised, a)
			}
		}
	}

	return raised, nil
}

// RaiseACError records a failed AC command as a warning alert, subject
// to the same cooldown as threshold alerts. A failed command is
// recoverable (the operator retries or dispatches manually) so it does
// not enter the critical escalation path.
func (e *Engine) RaiseACError(ctx context.Context, roomID, message string) (*Alert, error) {
	return e.Raise(ctx, &Alert{
		RoomID:   roomID,
		Type:     TypeACError,
		Severity: SeverityWarning,
		Message:  message,
	})
}

// Acknowledge marks an alert handled by a user.
func (e *Engine) Acknowledge(ctx context.Context, id, username string) error {
	if err := e.repo.Acknowledge(ctx, id, username, time.Now().UTC()); err != nil {
		return err
	}
	e.logger.Info("alert acknowledged", "alert_id", id, "username", username)
	return nil
}

// EscalateOverdue stamps critical alerts unacknowledged past maxAge as
// escalated and returns them for notification fan-out. Already-escalated
// alerts are skipped, so re-running the sweep is harmless.
func (e *Engine) EscalateOverdue(ctx context.Context, maxAge time.Duration) ([]Alert, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	overdue, err := e.repo.ListEscalatable(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing escalatable alerts: %w", err)
	}
	now := time.Now().UTC()
	for i := range overdue {
		if err := e.repo.MarkEscalated(ctx, overdue[i].ID, now); err != nil {
			return nil, fmt.Errorf("escalating alert %s: %w", overdue[i].ID, err)
		}
		overdue[i].EscalatedAt = &now
		e.logger.Warn("critical alert escalated",
			"alert_id", overdue[i].ID, "room_id", overdue[i].RoomID,
			"age", now.Sub(overdue[i].CreatedAt).String())
	}
	return overdue, nil
}

// CleanupOld prunes acknowledged alerts older than the retention window.
func (e *Engine) CleanupOld(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	return e.repo.DeleteAcknowledgedBefore(ctx, cutoff)
}
