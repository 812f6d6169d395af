package sensor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for sensor and reading persistence.
type Repository interface {
	CreateSensor(ctx context.Context, s *Sensor) error
	GetSensor(ctx context.Context, id string) (*Sensor, error)
	GetSensorByDeviceID(ctx context.Context, deviceID string) (*Sensor, error)
	ListSensors(ctx context.Context) ([]Sensor, error)
	ListSensorsByRoom(ctx context.Context, roomID string) ([]Sensor, error)
	UpdateSensor(ctx context.Context, s *Sensor) error
	DeleteSensor(ctx context.Context, id string) error

	// MarkOnline records a heartbeat, stamping last_seen with the current
	// time. The returned flag is true when the sensor transitioned from
	// offline to online.
	MarkOnline(ctx context.Context, id string) (bool, error)

	// MarkOffline flips a sensor offline. The returned flag is true when
	// the sensor was online; a sensor already offline is left untouched.
	MarkOffline(ctx context.Context, id string) (bool, error)

	// ListStaleOnline returns sensors still flagged online whose last
	// heartbeat is older than the cutoff (or that never reported).
	ListStaleOnline(ctx context.Context, cutoff time.Time) ([]Sensor, error)

	InsertReading(ctx context.Context, r *Reading) error
	LatestReading(ctx context.Context, sensorID string) (*Reading, error)
	LatestReadings(ctx context.Context) ([]Reading, error)
	ListReadings(ctx context.Context, sensorID string, since, until time.Time, limit int) ([]Reading, error)
	RoomAverages(ctx context.Context, roomID string, window time.Duration) (*RoomClimate, error)

	AggregateReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListAggregated(ctx context.Context, sensorID string, since, until time.Time) ([]AggregatedReading, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed sensor repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateSensor inserts a new sensor after validation.
// Device IDs are globally unique; a conflict returns ErrDuplicateDeviceID.
func (r *SQLiteRepository) CreateSensor(ctx context.Context, s *Sensor) error {
	if err := ValidateSensor(s); err != nil {
		return err
	}
	const query = `INSERT INTO sensors (id, device_id, room_id, name, type, is_online, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.DeviceID, s.RoomID, s.Name, string(s.Type),
		boolToInt(s.IsOnline), nullableTime(s.LastSeen))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: sensors.device_id") {
			return ErrDuplicateDeviceID
		}
		return fmt.Errorf("inserting sensor %s: %w", s.ID, err)
	}
	return nil
}

const sensorColumns = `id, device_id, room_id, name, type, is_online, last_seen, created_at, updated_at`

// GetSensor returns a single sensor by platform ID.
func (r *SQLiteRepository) GetSensor(ctx context.Context, id string) (*Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors WHERE id = ?`
	return scanSensor(r.db.QueryRowContext(ctx, query, id))
}

// GetSensorByDeviceID returns a single sensor by hardware device ID.
func (r *SQLiteRepository) GetSensorByDeviceID(ctx context.Context, deviceID string) (*Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors WHERE device_id = ?`
	return scanSensor(r.db.QueryRowContext(ctx, query, deviceID))
}

// ListSensors returns all sensors ordered by room then name.
func (r *SQLiteRepository) ListSensors(ctx context.Context) ([]Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors ORDER BY room_id, name`
	return r.querySensors(ctx, query)
}

// ListSensorsByRoom returns sensors mounted in a specific room.
func (r *SQLiteRepository) ListSensorsByRoom(ctx context.Context, roomID string) ([]Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors WHERE room_id = ? ORDER BY name`
	return r.querySensors(ctx, query, roomID)
}

// UpdateSensor updates an existing sensor record after validation.
func (r *SQLiteRepository) UpdateSensor(ctx context.Context, s *Sensor) error {
	if err := ValidateSensor(s); err != nil {
		return err
	}
	const query = `UPDATE sensors SET device_id = ?, room_id = ?, name = ?, type = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		s.DeviceID, s.RoomID, s.Name, string(s.Type), s.ID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: sensors.device_id") {
			return ErrDuplicateDeviceID
		}
		return fmt.Errorf("updating sensor %s: %w", s.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrSensorNotFound
	}
	return nil
}

// DeleteSensor removes a sensor. Its readings cascade via foreign keys.
func (r *SQLiteRepository) DeleteSensor(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sensors WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting sensor %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrSensorNotFound
	}
	return nil
}

// MarkOnline records a heartbeat and reports whether the sensor came
// back from offline. The stamp is the server clock, never a timestamp
// the client chose: a backdated replay must not make a live sensor
// look stale to the liveness sweep.
func (r *SQLiteRepository) MarkOnline(ctx context.Context, id string) (bool, error) {
	// Flip the flag first so the guarded UPDATE tells us about the
	// transition, then stamp the heartbeat unconditionally.
	result, err := r.db.ExecContext(ctx,
		`UPDATE sensors SET is_online = 1 WHERE id = ? AND is_online = 0`, id)
	if err != nil {
		return false, fmt.Errorf("marking sensor %s online: %w", id, err)
	}
	flipped, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected

	result, err = r.db.ExecContext(ctx,
		`UPDATE sensors SET last_seen = strftime('%Y-%m-%dT%H:%M:%SZ', 'now'),
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("stamping sensor %s heartbeat: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return false, ErrSensorNotFound
	}
	return flipped > 0, nil
}

// MarkOffline flips a sensor offline if it is currently online.
func (r *SQLiteRepository) MarkOffline(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sensors SET is_online = 0, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ? AND is_online = 1`, id)
	if err != nil {
		return false, fmt.Errorf("marking sensor %s offline: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n > 0, nil
}

// ListStaleOnline returns sensors flagged online with no heartbeat since
// the cutoff. The is_online filter makes the liveness sweep idempotent:
// a sensor already marked offline is not returned again.
func (r *SQLiteRepository) ListStaleOnline(ctx context.Context, cutoff time.Time) ([]Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors
		WHERE is_online = 1 AND (last_seen IS NULL OR last_seen < ?)
		ORDER BY id`
	return r.querySensors(ctx, query, cutoff.UTC().Format(time.RFC3339))
}

// InsertReading persists a validated measurement.
func (r *SQLiteRepository) InsertReading(ctx context.Context, reading *Reading) error {
	if err := ValidateReading(reading); err != nil {
		return err
	}
	const query = `INSERT INTO readings (sensor_id, temperature, humidity, timestamp)
		VALUES (?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query,
		reading.SensorID, nullFloat(reading.Temperature), nullFloat(reading.Humidity),
		reading.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting reading for sensor %s: %w", reading.SensorID, err)
	}
	reading.ID, _ = result.LastInsertId() //nolint:errcheck // SQLite always supports LastInsertId
	return nil
}

const readingColumns = `id, sensor_id, temperature, humidity, timestamp`

// LatestReading returns the most recent reading for a sensor, or
// ErrNoReadings if none exist.
func (r *SQLiteRepository) LatestReading(ctx context.Context, sensorID string) (*Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings
		WHERE sensor_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`
	reading, err := scanReading(r.db.QueryRowContext(ctx, query, sensorID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoReadings
		}
		return nil, err
	}
	return reading, nil
}

// LatestReadings returns the most recent reading per sensor.
func (r *SQLiteRepository) LatestReadings(ctx context.Context) ([]Reading, error) {
	const query = `SELECT r.id, r.sensor_id, r.temperature, r.humidity, r.timestamp
		FROM readings r
		JOIN (SELECT sensor_id, MAX(timestamp) AS latest FROM readings GROUP BY sensor_id) m
			ON r.sensor_id = m.sensor_id AND r.timestamp = m.latest
		GROUP BY r.sensor_id
		ORDER BY r.sensor_id`
	return r.queryReadings(ctx, query)
}

// ListReadings returns readings for a sensor within [since, until),
// newest first, capped at limit rows.
func (r *SQLiteRepository) ListReadings(ctx context.Context, sensorID string, since, until time.Time, limit int) ([]Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings
		WHERE sensor_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp DESC, id DESC LIMIT ?`
	return r.queryReadings(ctx, query, sensorID,
		since.UTC().Format(time.RFC3339), until.UTC().Format(time.RFC3339), limit)
}

// RoomAverages returns the mean climate across a room's sensors over
// the trailing window.
func (r *SQLiteRepository) RoomAverages(ctx context.Context, roomID string, window time.Duration) (*RoomClimate, error) {
	const query = `SELECT AVG(r.temperature), AVG(r.humidity), COUNT(DISTINCT r.sensor_id)
		FROM readings r
		JOIN sensors s ON s.id = r.sensor_id
		WHERE s.room_id = ? AND r.timestamp >= ?`
	cutoff := time.Now().Add(-window).UTC().Format(time.RFC3339)

	climate := &RoomClimate{RoomID: roomID}
	var avgTemp, avgHum sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, roomID, cutoff).
		Scan(&avgTemp, &avgHum, &climate.SensorCount)
	if err != nil {
		return nil, fmt.Errorf("averaging room %s climate: %w", roomID, err)
	}
	if avgTemp.Valid {
		climate.AvgTemperature = &avgTemp.Float64
	}
	if avgHum.Valid {
		climate.AvgHumidity = &avgHum.Float64
	}
	return climate, nil
}

// AggregateReadingsBefore compacts raw readings older than the cutoff
// into hourly buckets and deletes the compacted raws in the same
// transaction, so a reading landing mid-sweep is never deleted
// unaggregated. Buckets that already exist (a sweep re-run over a
// partially compacted hour) are merged with count-weighted averages.
// Returns the number of raw rows compacted.
func (r *SQLiteRepository) AggregateReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		INSERT INTO aggregated_readings
			(sensor_id, hour, min_temperature, max_temperature, avg_temperature,
			 min_humidity, max_humidity, avg_humidity, reading_count)
		SELECT sensor_id,
			strftime('%Y-%m-%dT%H:00:00Z', timestamp),
			MIN(temperature), MAX(temperature), AVG(temperature),
			MIN(humidity), MAX(humidity), AVG(humidity),
			COUNT(*)
		FROM readings
		WHERE timestamp < ?
		GROUP BY sensor_id, strftime('%Y-%m-%dT%H:00:00Z', timestamp)
		ON CONFLICT(sensor_id, hour) DO UPDATE SET
			min_temperature = MIN(min_temperature, excluded.min_temperature),
			max_temperature = MAX(max_temperature, excluded.max_temperature),
			avg_temperature = (IFNULL(avg_temperature, 0) * reading_count
				+ IFNULL(excluded.avg_temperature, 0) * excluded.reading_count)
				/ (reading_count + excluded.reading_count),
			min_humidity = MIN(min_humidity, excluded.min_humidity),
			max_humidity = MAX(max_humidity, excluded.max_humidity),
			avg_humidity = (IFNULL(avg_humidity, 0) * reading_count
				+ IFNULL(excluded.avg_humidity, 0) * excluded.reading_count)
				/ (reading_count + excluded.reading_count),
			reading_count = reading_count + excluded.reading_count`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting aggregation transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, query, cutoff.UTC().Format(time.RFC3339)); err != nil {
		return 0, fmt.Errorf("aggregating readings: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"DELETE FROM readings WHERE timestamp < ?",
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("deleting compacted readings: %w", err)
	}
	compacted, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing aggregation: %w", err)
	}
	return compacted, nil
}

// DeleteReadingsBefore removes raw readings older than the cutoff.
// Returns the number of rows deleted.
func (r *SQLiteRepository) DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM readings WHERE timestamp < ?",
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("deleting old readings: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n, nil
}

// ListAggregated returns hourly aggregates for a sensor within [since, until).
func (r *SQLiteRepository) ListAggregated(ctx context.Context, sensorID string, since, until time.Time) ([]AggregatedReading, error) {
	const query = `SELECT id, sensor_id, hour, min_temperature, max_temperature,
		avg_temperature, min_humidity, max_humidity, avg_humidity, reading_count
		FROM aggregated_readings
		WHERE sensor_id = ? AND hour >= ? AND hour < ?
		ORDER BY hour`
	rows, err := r.db.QueryContext(ctx, query, sensorID,
		since.UTC().Format(time.RFC3339), until.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying aggregated readings: %w", err)
	}
	defer rows.Close()

	var aggs []AggregatedReading
	for rows.Next() {
		var a AggregatedReading
		var hour string
		var minT, maxT, avgT, minH, maxH, avgH sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.SensorID, &hour,
			&minT, &maxT, &avgT, &minH, &maxH, &avgH, &a.ReadingCount); err != nil {
			return nil, fmt.Errorf("scanning aggregated row: %w", err)
		}
		a.Hour = parseTime(hour)
		a.MinTemperature = floatPtr(minT)
		a.MaxTemperature = floatPtr(maxT)
		a.AvgTemperature = floatPtr(avgT)
		a.MinHumidity = floatPtr(minH)
		a.MaxHumidity = floatPtr(maxH)
		a.AvgHumidity = floatPtr(avgH)
		aggs = append(aggs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating aggregated rows: %w", err)
	}
	return aggs, nil
}

// querySensors executes a query and returns a slice of Sensor.
func (r *SQLiteRepository) querySensors(ctx context.Context, query string, args ...any) ([]Sensor, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sensors: %w", err)
	}
	defer rows.Close()

	var sensors []Sensor
	for rows.Next() {
		s, err := scanSensorRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sensor row: %w", err)
		}
		sensors = append(sensors, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensor rows: %w", err)
	}
	return sensors, nil
}

// queryReadings executes a query and returns a slice of Reading.
func (r *SQLiteRepository) queryReadings(ctx context.Context, query string, args ...any) ([]Reading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var reading Reading
		var temp, hum sql.NullFloat64
		var ts string
		if err := rows.Scan(&reading.ID, &reading.SensorID, &temp, &hum, &ts); err != nil {
			return nil, fmt.Errorf("scanning reading row: %w", err)
		}
		reading.Temperature = floatPtr(temp)
		reading.Humidity = floatPtr(hum)
		reading.Timestamp = parseTime(ts)
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reading rows: %w", err)
	}
	return readings, nil
}

// scanSensor scans a single row into a Sensor (for QueryRow).
func scanSensor(row *sql.Row) (*Sensor, error) {
	var s Sensor
	var sensorType string
	var isOnline int
	var lastSeen sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&s.ID, &s.DeviceID, &s.RoomID, &s.Name, &sensorType,
		&isOnline, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSensorNotFound
		}
		return nil, fmt.Errorf("scanning sensor: %w", err)
	}
	s.Type = Type(sensorType)
	s.IsOnline = isOnline != 0
	if lastSeen.Valid {
		t := parseTime(lastSeen.String)
		s.LastSeen = &t
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

// scanSensorRow scans a sensor from a Rows cursor.
func scanSensorRow(rows *sql.Rows) (*Sensor, error) {
	var s Sensor
	var sensorType string
	var isOnline int
	var lastSeen sql.NullString
	var createdAt, updatedAt string

	err := rows.Scan(&s.ID, &s.DeviceID, &s.RoomID, &s.Name, &sensorType,
		&isOnline, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	s.Type = Type(sensorType)
	s.IsOnline = isOnline != 0
	if lastSeen.Valid {
		t := parseTime(lastSeen.String)
		s.LastSeen = &t
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

// scanReading scans a single row into a Reading (for QueryRow).
func scanReading(row *sql.Row) (*Reading, error) {
	var reading Reading
	var temp, hum sql.NullFloat64
	var ts string
	if err := row.Scan(&reading.ID, &reading.SensorID, &temp, &hum, &ts); err != nil {
		return nil, err
	}
	reading.Temperature = floatPtr(temp)
	reading.Humidity = floatPtr(hum)
	reading.Timestamp = parseTime(ts)
	return &reading, nil
}

// nullFloat converts a *float64 to sql.NullFloat64 for nullable columns.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// floatPtr converts a sql.NullFloat64 back to a *float64.
func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// nullableTime converts a *time.Time to a nullable RFC3339 string.
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// boolToInt converts a bool to the 0/1 SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05Z", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}
