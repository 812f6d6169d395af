package housekeeping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thermoguard/thermoguard-core/internal/alert"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/logging"
	"github.com/thermoguard/thermoguard-core/internal/notify"
	"github.com/thermoguard/thermoguard-core/internal/sensor"
)

// SensorStore is the slice of the sensor repository the sweeps need.
type SensorStore interface {
	ListStaleOnline(ctx context.Context, cutoff time.Time) ([]sensor.Sensor, error)
	MarkOffline(ctx context.Context, id string) (bool, error)
	AggregateReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertKeeper is the slice of the alert engine the sweeps need.
type AlertKeeper interface {
	Raise(ctx context.Context, a *alert.Alert) (*alert.Alert, error)
	EscalateOverdue(ctx context.Context, maxAge time.Duration) ([]alert.Alert, error)
	CleanupOld(ctx context.Context, retention time.Duration) (int64, error)
}

// Config carries sweep schedules and data lifetimes.
type Config struct {
	SensorCheckInterval time.Duration
	RetentionInterval   time.Duration
	AggregationInterval time.Duration
	EscalationInterval  time.Duration

	SensorOfflineThreshold time.Duration
	ReadingRetention       time.Duration
	ReadingAggregationAge  time.Duration
	AlertRetention         time.Duration
	EscalationThreshold    time.Duration
}

// Runner schedules the periodic sweeps: sensor liveness, reading
// compaction and retention, alert retention, and critical alert
// escalation. Every sweep is also callable directly, which is what the
// tests and any future admin endpoint use.
type Runner struct {
	sensors SensorStore
	alerts  AlertKeeper
	events  notify.Sink
	cfg     Config
	logger  *logging.Logger

	wg sync.WaitGroup
}

// NewRunner creates a housekeeping runner.
func NewRunner(sensors SensorStore, alerts AlertKeeper, events notify.Sink, cfg Config, logger *logging.Logger) *Runner {
	if events == nil {
		events = notify.NopSink{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		sensors: sensors,
		alerts:  alerts,
		events:  events,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start launches the sweep loops. They stop when ctx is cancelled;
// call Wait to block until they have drained.
func (r *Runner) Start(ctx context.Context) {
	r.spawn(ctx, r.cfg.SensorCheckInterval, "sensor liveness", func(ctx context.Context) error {
		_, err := r.CheckSensorStatus(ctx)
		return err
	})
	r.spawn(ctx, r.cfg.AggregationInterval, "reading aggregation", func(ctx context.Context) error {
		_, err := r.AggregateReadings(ctx)
		return err
	})
	r.spawn(ctx, r.cfg.RetentionInterval, "retention", func(ctx context.Context) error {
		if _, err := r.CleanupOldReadings(ctx); err != nil {
			return err
		}
		_, err := r.CleanupOldAlerts(ctx)
		return err
	})
	r.spawn(ctx, r.cfg.EscalationInterval, "alert escalation", func(ctx context.Context) error {
		_, err := r.EscalateCriticalAlerts(ctx)
		return err
	})
}

// Wait blocks until all sweep loops have stopped.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// spawn runs one sweep on a ticker until the context is cancelled.
// A zero interval disables the sweep.
func (r *Runner) spawn(ctx context.Context, interval time.Duration, name string, sweep func(context.Context) error) {
	if interval <= 0 {
		r.logger.Warn("housekeeping sweep disabled", "sweep", name)
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sweep(ctx); err != nil {
					r.logger.Error("housekeeping sweep failed", "sweep", name, "error", err)
				}
			}
		}
	}()
}

// CheckSensorStatus marks sensors silent past the offline threshold as
// offline, raises a sensor_offline alert and announces each transition.
// Sensors already offline are not touched, so the sweep is idempotent.
// One sensor failing does not stop the sweep for the rest.
func (r *Runner) CheckSensorStatus(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.cfg.SensorOfflineThreshold)
	stale, err := r.sensors.ListStaleOnline(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	marked := 0
	for i := range stale {
		changed, err := r.sensors.MarkOffline(ctx, stale[i].ID)
		if err != nil {
			r.logger.Error("marking sensor offline",
				"sensor_id", stale[i].ID, "error", err)
			continue
		}
		if !changed {
			continue
		}
		marked++
		r.logger.Warn("sensor went offline",
			"sensor_id", stale[i].ID, "device_id", stale[i].DeviceID,
			"last_seen", stale[i].LastSeen)
		r.raiseOfflineAlert(ctx, &stale[i])
		r.events.Emit(notify.Event{
			Kind:   notify.KindConnectionStatus,
			RoomID: stale[i].RoomID,
			Payload: map[string]any{
				"sensor_id": stale[i].ID,
				"online":    false,
			},
		})
	}
	return marked, nil
}

// raiseOfflineAlert records one sensor_offline alert for a transition.
// The engine's cooldown absorbs a flapping sensor; a suppressed alert
// comes back nil and nothing is emitted.
func (r *Runner) raiseOfflineAlert(ctx context.Context, s *sensor.Sensor) {
	message := fmt.Sprintf("Sensor %s (%s) stopped reporting", s.Name, s.DeviceID)
	if s.LastSeen != nil {
		message = fmt.Sprintf("Sensor %s (%s) stopped reporting; last seen %s",
			s.Name, s.DeviceID, s.LastSeen.UTC().Format(time.RFC3339))
	}
	raised, err := r.alerts.Raise(ctx, &alert.Alert{
		RoomID:   s.RoomID,
		Type:     alert.TypeSensorOffline,
		Severity: alert.SeverityWarning,
		Message:  message,
	})
	if err != nil {
		r.logger.Error("raising sensor_offline alert",
			"sensor_id", s.ID, "error", err)
		return
	}
	if raised != nil {
		r.events.Emit(notify.Event{
			Kind:    notify.KindAlertTriggered,
			RoomID:  s.RoomID,
			Payload: raised,
		})
	}
}

// AggregateReadings compacts raw readings older than the aggregation
// age into hourly buckets. The store removes the compacted raws in the
// same transaction.
func (r *Runner) AggregateReadings(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-r.cfg.ReadingAggregationAge)
	compacted, err := r.sensors.AggregateReadingsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if compacted > 0 {
		r.logger.Info("readings aggregated", "compacted", compacted)
	}
	return compacted, nil
}

// CleanupOldReadings removes raw readings older than the retention
// window. Normally aggregation has already compacted them; this is the
// backstop for deployments that disable aggregation.
func (r *Runner) CleanupOldReadings(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-r.cfg.ReadingRetention)
	deleted, err := r.sensors.DeleteReadingsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.logger.Info("old readings pruned", "deleted", deleted)
	}
	return deleted, nil
}

// CleanupOldAlerts prunes acknowledged alerts past their retention.
func (r *Runner) CleanupOldAlerts(ctx context.Context) (int64, error) {
	deleted, err := r.alerts.CleanupOld(ctx, r.cfg.AlertRetention)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.logger.Info("old alerts pruned", "deleted", deleted)
	}
	return deleted, nil
}

// EscalateCriticalAlerts escalates overdue critical alerts and pushes
// each back onto the event stream so dashboards surface them again.
func (r *Runner) EscalateCriticalAlerts(ctx context.Context) (int, error) {
	escalated, err := r.alerts.EscalateOverdue(ctx, r.cfg.EscalationThreshold)
	if err != nil {
		return 0, err
	}
	for i := range escalated {
		r.events.Emit(notify.Event{
			Kind:    notify.KindAlertTriggered,
			RoomID:  escalated[i].RoomID,
			Payload: &escalated[i],
		})
	}
	return len(escalated), nil
}
