package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/thermoguard/thermoguard-core/internal/alert"
	"github.com/thermoguard/thermoguard-core/internal/datacenter"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/logging"
	"github.com/thermoguard/thermoguard-core/internal/notify"
	"github.com/thermoguard/thermoguard-core/internal/sensor"
)

// SensorStore is the slice of the sensor repository the pipeline needs.
type SensorStore interface {
	GetSensor(ctx context.Context, id string) (*sensor.Sensor, error)
	GetSensorByDeviceID(ctx context.Context, deviceID string) (*sensor.Sensor, error)
	MarkOnline(ctx context.Context, id string) (bool, error)
	InsertReading(ctx context.Context, r *sensor.Reading) error
}

// RoomStore resolves a sensor's room for threshold evaluation.
type RoomStore interface {
	GetRoom(ctx context.Context, id string) (*datacenter.Room, error)
}

// AlertEvaluator walks a reading through the threshold ladder.
// The alert engine implements this.
type AlertEvaluator interface {
	EvaluateReading(ctx context.Context, room *datacenter.Room, r *sensor.Reading) ([]*alert.Alert, error)
}

// Actuator runs the automatic control loop. The AC controller
// implements this.
type Actuator interface {
	ApplyHysteresis(ctx context.Context, room *datacenter.Room, temperature float64) error
}

// TimeSeriesWriter mirrors accepted readings to the long-range store.
// The InfluxDB client implements this; writes are fire-and-forget.
type TimeSeriesWriter interface {
	WriteReading(sensorID, roomID string, temperature, humidity *float64, timestamp time.Time)
}

// Submission is one reading as reported by a sensor.
//
// DeviceID may be either the hardware device ID (what firmware sends)
// or the platform sensor ID (what the API and tests use). Timestamp is
// optional; a zero value means "now".
type Submission struct {
	DeviceID    string     `json:"device_id"`
	Temperature *float64   `json:"temperature,omitempty"`
	Humidity    *float64   `json:"humidity,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// Result describes what one accepted submission caused.
type Result struct {
	Sensor     *sensor.Sensor  `json:"sensor"`
	Reading    *sensor.Reading `json:"reading"`
	Alerts     []*alert.Alert  `json:"alerts,omitempty"`
	CameOnline bool            `json:"came_online"`
}

// BulkOutcome is the per-item result of a bulk submission. Exactly one
// of Result and Error is set.
type BulkOutcome struct {
	Index  int     `json:"index"`
	Result *Result `json:"result,omitempty"`
	Error  error   `json:"error,omitempty"`
}

// Pipeline accepts sensor readings and drives everything a reading
// triggers: persistence, liveness, alerting, automatic cooling, the
// time-series mirror, and live events.
type Pipeline struct {
	sensors SensorStore
	rooms   RoomStore
	alerts  AlertEvaluator
	control Actuator
	tsdb    TimeSeriesWriter
	events  notify.Sink
	logger  *logging.Logger
}

// NewPipeline creates an ingestion pipeline. The time-series writer and
// event sink may be nil.
func NewPipeline(sensors SensorStore, rooms RoomStore, alerts AlertEvaluator, control Actuator, tsdb TimeSeriesWriter, events notify.Sink, logger *logging.Logger) *Pipeline {
	if events == nil {
		events = notify.NopSink{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Pipeline{
		sensors: sensors,
		rooms:   rooms,
		alerts:  alerts,
		control: control,
		tsdb:    tsdb,
		events:  events,
		logger:  logger,
	}
}

// Submit processes one reading.
//
// A submission from an unknown device, or one that fails validation, is
// rejected before anything is touched: no heartbeat, no persisted row,
// no events. Once the reading is persisted, the downstream stages
// (alerting, hysteresis, mirror, events) are best effort; their
// failures are logged but never fail the submission, because the
// reading itself is already safe.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (*Result, error) {
	s, err := p.resolveSensor(ctx, sub.DeviceID)
	if err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	if sub.Timestamp != nil {
		ts = sub.Timestamp.UTC()
	}
	reading := &sensor.Reading{
		SensorID:    s.ID,
		Temperature: sub.Temperature,
		Humidity:    sub.Humidity,
		Timestamp:   ts,
	}
	if err := sensor.ValidateReading(reading); err != nil {
		return nil, err
	}

	// The heartbeat is the server clock, not the reading's timestamp: a
	// backdated submission proves the sensor is alive right now.
	cameOnline, err := p.sensors.MarkOnline(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	if cameOnline {
		p.events.Emit(notify.Event{
			Kind:   notify.KindConnectionStatus,
			RoomID: s.RoomID,
			Payload: map[string]any{
				"sensor_id": s.ID,
				"online":    true,
			},
		})
	}

	if err := p.sensors.InsertReading(ctx, reading); err != nil {
		return nil, err
	}

	result := &Result{Sensor: s, Reading: reading, CameOnline: cameOnline}
	p.postPersist(ctx, result)
	return result, nil
}

// SubmitBulk processes a batch of readings independently: one bad item
// does not fail the rest.
func (p *Pipeline) SubmitBulk(ctx context.Context, subs []Submission) []BulkOutcome {
	outcomes := make([]BulkOutcome, len(subs))
	for i, sub := range subs {
		result, err := p.Submit(ctx, sub)
		outcomes[i] = BulkOutcome{Index: i, Result: result, Error: err}
	}
	return outcomes
}

// resolveSensor accepts either a hardware device ID or a platform
// sensor ID.
func (p *Pipeline) resolveSensor(ctx context.Context, deviceID string) (*sensor.Sensor, error) {
	if deviceID == "" {
		return nil, sensor.ErrSensorNotFound
	}
	s, err := p.sensors.GetSensorByDeviceID(ctx, deviceID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, sensor.ErrSensorNotFound) {
		return nil, err
	}
	return p.sensors.GetSensor(ctx, deviceID)
}

// postPersist runs the best-effort stages after the reading is stored.
// Order matters: alerts fire before the control loop reacts, so an
// operator sees why the room is hot before the platform starts fixing it.
func (p *Pipeline) postPersist(ctx context.Context, result *Result) {
	s, reading := result.Sensor, result.Reading

	room, err := p.rooms.GetRoom(ctx, s.RoomID)
	if err != nil {
		p.logger.Error("resolving room for reading",
			"sensor_id", s.ID, "room_id", s.RoomID, "error", err)
	}

	if room != nil {
		raised, err := p.alerts.EvaluateReading(ctx, room, reading)
		if err != nil {
			p.logger.Error("evaluating thresholds",
				"sensor_id", s.ID, "room_id", room.ID, "error", err)
		}
		result.Alerts = raised
		for _, a := range raised {
			p.events.Emit(notify.Event{
				Kind:    notify.KindAlertTriggered,
				RoomID:  room.ID,
				Payload: a,
			})
		}

		if reading.Temperature != nil && room.IsAutomatic() {
			if err := p.control.ApplyHysteresis(ctx, room, *reading.Temperature); err != nil {
				p.logger.Error("applying hysteresis",
					"room_id", room.ID, "error", err)
			}
		}
	}

	if p.tsdb != nil {
		p.tsdb.WriteReading(s.ID, s.RoomID, reading.Temperature, reading.Humidity, reading.Timestamp)
	}

	p.events.Emit(notify.Event{
		Kind:   notify.KindSensorReading,
		RoomID: s.RoomID,
		Payload: map[string]any{
			"sensor_id":   s.ID,
			"device_id":   s.DeviceID,
			"temperature": reading.Temperature,
			"humidity":    reading.Humidity,
			"timestamp":   reading.Timestamp,
		},
	})
}
