package alert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for alert persistence.
type Repository interface {
	Create(ctx context.Context, a *Alert) error
	Get(ctx context.Context, id string) (*Alert, error)
	ListActive(ctx context.Context) ([]Alert, error)
	ListActiveByRoom(ctx context.Context, roomID string) ([]Alert, error)
	ListByRoom(ctx context.Context, roomID string, limit int) ([]Alert, error)
	ActiveCounts(ctx context.Context) ([]ActiveCount, error)

	// LatestActive returns the newest unacknowledged alert for a
	// (room, type) pair, or ErrAlertNotFound. The dedup window checks it.
	LatestActive(ctx context.Context, roomID string, t Type) (*Alert, error)

	// Acknowledge marks an alert handled. Returns ErrAlreadyAcknowledged
	// if it was already acknowledged.
	Acknowledge(ctx context.Context, id, username string, at time.Time) error

	// ListEscalatable returns critical, unacknowledged, not-yet-escalated
	// alerts created before the cutoff.
	ListEscalatable(ctx context.Context, cutoff time.Time) ([]Alert, error)
	MarkEscalated(ctx context.Context, id string, at time.Time) error

	// DeleteAcknowledgedBefore prunes acknowledged alerts older than the
	// cutoff. Unacknowledged alerts are never pruned.
	DeleteAcknowledgedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed alert repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func validate(a *Alert) error {
	if a.RoomID == "" {
		return ErrRoomRequired
	}
	if !IsValidType(a.Type) {
		return ErrInvalidType
	}
	if !IsValidSeverity(a.Severity) {
		return ErrInvalidSeverity
	}
	if a.Message == "" {
		return ErrMessageRequired
	}
	return nil
}

// Create inserts a new alert after validation.
func (r *SQLiteRepository) Create(ctx context.Context, a *Alert) error {
	if err := validate(a); err != nil {
		return err
	}
	const query = `INSERT INTO alerts (id, room_id, type, severity, message, value, threshold, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.RoomID, string(a.Type), string(a.Severity), a.Message,
		nullFloat(a.Value), nullFloat(a.Threshold),
		a.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting alert %s: %w", a.ID, err)
	}
	return nil
}

const alertColumns = `id, room_id, type, severity, message, value, threshold,
	is_acknowledged, acknowledged_by, acknowledged_at, escalated_at, created_at`

// Get returns a single alert by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`
	a, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListActive returns all unacknowledged alerts, critical first, newest first.
func (r *SQLiteRepository) ListActive(ctx context.Context) ([]Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE is_acknowledged = 0
		ORDER BY CASE severity WHEN 'critical' THEN 0 ELSE 1 END, created_at DESC`
	return r.queryAlerts(ctx, query)
}

// ListActiveByRoom returns unacknowledged alerts for one room.
func (r *SQLiteRepository) ListActiveByRoom(ctx context.Context, roomID string) ([]Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE is_acknowledged = 0 AND room_id = ?
		ORDER BY CASE severity WHEN 'critical' THEN 0 ELSE 1 END, created_at DESC`
	return r.queryAlerts(ctx, query, roomID)
}

// ListByRoom returns a room's alert history, newest first.
func (r *SQLiteRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE room_id = ? ORDER BY created_at DESC LIMIT ?`
	return r.queryAlerts(ctx, query, roomID, limit)
}

// ActiveCounts returns per-room unacknowledged alert counts by severity.
func (r *SQLiteRepository) ActiveCounts(ctx context.Context) ([]ActiveCount, error) {
	const query = `SELECT room_id,
		SUM(CASE WHEN severity = 'info' THEN 1 ELSE 0 END),
		SUM(CASE WHEN severity = 'warning' THEN 1 ELSE 0 END),
		SUM(CASE WHEN severity = 'critical' THEN 1 ELSE 0 END)
		FROM alerts WHERE is_acknowledged = 0
		GROUP BY room_id ORDER BY room_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("counting active alerts: %w", err)
	}
	defer rows.Close()

	var counts []ActiveCount
	for rows.Next() {
		var c ActiveCount
		if err := rows.Scan(&c.RoomID, &c.Info, &c.Warning, &c.Critical); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating count rows: %w", err)
	}
	return counts, nil
}

// LatestActive returns the newest unacknowledged alert for a room and type.
func (r *SQLiteRepository) LatestActive(ctx context.Context, roomID string, t Type) (*Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE room_id = ? AND type = ? AND is_acknowledged = 0
		ORDER BY created_at DESC LIMIT 1`
	a, err := scanAlert(r.db.QueryRowContext(ctx, query, roomID, string(t)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return a, nil
}

// Acknowledge marks an alert as handled by a user. The is_acknowledged
// guard in the WHERE clause makes a concurrent double-ack lose cleanly.
func (r *SQLiteRepository) Acknowledge(ctx context.Context, id, username string, at time.Time) error {
	const query = `UPDATE alerts SET is_acknowledged = 1, acknowledged_by = ?, acknowledged_at = ?
		WHERE id = ? AND is_acknowledged = 0`
	result, err := r.db.ExecContext(ctx, query, username, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("acknowledging alert %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		// Distinguish missing from already acknowledged.
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyAcknowledged
	}
	return nil
}

// ListEscalatable returns overdue critical alerts not yet escalated.
func (r *SQLiteRepository) ListEscalatable(ctx context.Context, cutoff time.Time) ([]Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE severity = 'critical' AND is_acknowledged = 0
			AND escalated_at IS NULL AND created_at < ?
		ORDER BY created_at`
	return r.queryAlerts(ctx, query, cutoff.UTC().Format(time.RFC3339))
}

// MarkEscalated stamps an alert as escalated so the sweep is idempotent.
func (r *SQLiteRepository) MarkEscalated(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET escalated_at = ? WHERE id = ? AND escalated_at IS NULL`,
		at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("marking alert %s escalated: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// DeleteAcknowledgedBefore prunes old acknowledged alerts.
func (r *SQLiteRepository) DeleteAcknowledgedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE is_acknowledged = 1 AND created_at < ?`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("pruning acknowledged alerts: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n, nil
}

// queryAlerts executes a query and returns a slice of Alert.
func (r *SQLiteRepository) queryAlerts(ctx context.Context, query string, args ...any) ([]Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		a, err := scanAlertRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert row: %w", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alert rows: %w", err)
	}
	return alerts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlertInto(s scanner) (*Alert, error) {
	var a Alert
	var alertType, severity string
	var value, threshold sql.NullFloat64
	var isAcked int
	var ackedBy, ackedAt, escalatedAt sql.NullString
	var createdAt string

	err := s.Scan(&a.ID, &a.RoomID, &alertType, &severity, &a.Message,
		&value, &threshold, &isAcked, &ackedBy, &ackedAt, &escalatedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	a.Type = Type(alertType)
	a.Severity = Severity(severity)
	a.Value = floatPtr(value)
	a.Threshold = floatPtr(threshold)
	a.IsAcknowledged = isAcked != 0
	if ackedBy.Valid {
		a.AcknowledgedBy = &ackedBy.String
	}
	if ackedAt.Valid {
		t := parseTime(ackedAt.String)
		a.AcknowledgedAt = &t
	}
	if escalatedAt.Valid {
		t := parseTime(escalatedAt.String)
		a.EscalatedAt = &t
	}
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

func scanAlert(row *sql.Row) (*Alert, error)      { return scanAlertInto(row) }
func scanAlertRow(rows *sql.Rows) (*Alert, error) { return scanAlertInto(rows) }

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
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
