package datacenter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for data center and room persistence.
type Repository interface {
	CreateDataCenter(ctx context.Context, dc *DataCenter) error
	GetDataCenter(ctx context.Context, id string) (*DataCenter, error)
	ListDataCenters(ctx context.Context) ([]DataCenter, error)
	UpdateDataCenter(ctx context.Context, dc *DataCenter) error
	DeleteDataCenter(ctx context.Context, id string) error

	CreateRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, id string) (*Room, error)
	RoomExists(ctx context.Context, id string) (bool, error)
	ListRooms(ctx context.Context) ([]Room, error)
	ListRoomsByDataCenter(ctx context.Context, dataCenterID string) ([]Room, error)
	ListAutomaticRooms(ctx context.Context) ([]Room, error)
	UpdateRoom(ctx context.Context, room *Room) error
	DeleteRoom(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed data center repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateDataCenter inserts a new data center after validation.
func (r *SQLiteRepository) CreateDataCenter(ctx context.Context, dc *DataCenter) error {
	if err := ValidateDataCenter(dc); err != nil {
		return err
	}
	const query = `INSERT INTO data_centers (id, name, location) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, dc.ID, dc.Name, dc.Location)
	if err != nil {
		return fmt.Errorf("inserting data center %s: %w", dc.ID, err)
	}
	return nil
}

// GetDataCenter returns a single data center by ID.
func (r *SQLiteRepository) GetDataCenter(ctx context.Context, id string) (*DataCenter, error) {
	const query = `SELECT id, name, location, created_at, updated_at
		FROM data_centers WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	var dc DataCenter
	var createdAt, updatedAt string
	err := row.Scan(&dc.ID, &dc.Name, &dc.Location, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDataCenterNotFound
		}
		return nil, fmt.Errorf("scanning data center: %w", err)
	}
	dc.CreatedAt = parseTime(createdAt)
	dc.UpdatedAt = parseTime(updatedAt)
	return &dc, nil
}

// ListDataCenters returns all data centers ordered by name.
func (r *SQLiteRepository) ListDataCenters(ctx context.Context) ([]DataCenter, error) {
	const query = `SELECT id, name, location, created_at, updated_at
		FROM data_centers ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying data centers: %w", err)
	}
	defer rows.Close()

	var dcs []DataCenter
	for rows.Next() {
		var dc DataCenter
		var createdAt, updatedAt string
		if err := rows.Scan(&dc.ID, &dc.Name, &dc.Location, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning data center row: %w", err)
		}
		dc.CreatedAt = parseTime(createdAt)
		dc.UpdatedAt = parseTime(updatedAt)
		dcs = append(dcs, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating data center rows: %w", err)
	}
	return dcs, nil
}

// UpdateDataCenter updates an existing data center record.
func (r *SQLiteRepository) UpdateDataCenter(ctx context.Context, dc *DataCenter) error {
	if err := ValidateDataCenter(dc); err != nil {
		return err
	}
	const query = `UPDATE data_centers SET name = ?, location = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, dc.Name, dc.Location, dc.ID)
	if err != nil {
		return fmt.Errorf("updating data center %s: %w", dc.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrDataCenterNotFound
	}
	return nil
}

// DeleteDataCenter removes a data center. Rooms, sensors, and AC units
// cascade via foreign keys.
func (r *SQLiteRepository) DeleteDataCenter(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM data_centers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting data center %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrDataCenterNotFound
	}
	return nil
}

// CreateRoom inserts a new room after validation.
// Room names are unique within a data center; a conflict returns
// ErrDuplicateRoomName.
func (r *SQLiteRepository) CreateRoom(ctx context.Context, room *Room) error {
	if err := ValidateRoom(room); err != nil {
		return err
	}
	const query = `INSERT INTO rooms (id, data_center_id, name,
		target_temperature, target_humidity, operation_mode)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		room.ID, room.DataCenterID, room.Name,
		room.TargetTemperature, room.TargetHumidity, string(room.OperationMode))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRoomName
		}
		return fmt.Errorf("inserting room %s: %w", room.ID, err)
	}
	return nil
}

// GetRoom returns a single room by ID.
func (r *SQLiteRepository) GetRoom(ctx context.Context, id string) (*Room, error) {
	const query = `SELECT id, data_center_id, name, target_temperature,
		target_humidity, operation_mode, created_at, updated_at
		FROM rooms WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	room, err := scanRoom(row)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// RoomExists reports whether a room with the given ID exists. Used by
// the WebSocket layer to refuse subscriptions to unknown room channels.
func (r *SQLiteRepository) RoomExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM rooms WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking room %s: %w", id, err)
	}
	return exists, nil
}

// ListRooms returns all rooms ordered by data center then name.
func (r *SQLiteRepository) ListRooms(ctx context.Context) ([]Room, error) {
	const query = `SELECT id, data_center_id, name, target_temperature,
		target_humidity, operation_mode, created_at, updated_at
		FROM rooms ORDER BY data_center_id, name`
	return r.queryRooms(ctx, query)
}

// ListRoomsByDataCenter returns rooms for a specific data center.
func (r *SQLiteRepository) ListRoomsByDataCenter(ctx context.Context, dataCenterID string) ([]Room, error) {
	const query = `SELECT id, data_center_id, name, target_temperature,
		target_humidity, operation_mode, created_at, updated_at
		FROM rooms WHERE data_center_id = ? ORDER BY name`
	return r.queryRooms(ctx, query, dataCenterID)
}

// ListAutomaticRooms returns rooms under hysteresis control.
func (r *SQLiteRepository) ListAutomaticRooms(ctx context.Context) ([]Room, error) {
	const query = `SELECT id, data_center_id, name, target_temperature,
		target_humidity, operation_mode, created_at, updated_at
		FROM rooms WHERE operation_mode = 'automatic' ORDER BY name`
	return r.queryRooms(ctx, query)
}

// UpdateRoom updates an existing room record after validation.
func (r *SQLiteRepository) UpdateRoom(ctx context.Context, room *Room) error {
	if err := ValidateRoom(room); err != nil {
		return err
	}
	const query = `UPDATE rooms SET name = ?, target_temperature = ?,
		target_humidity = ?, operation_mode = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		room.Name, room.TargetTemperature, room.TargetHumidity,
		string(room.OperationMode), room.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRoomName
		}
		return fmt.Errorf("updating room %s: %w", room.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// DeleteRoom removes a single room by ID.
func (r *SQLiteRepository) DeleteRoom(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting room %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// queryRooms executes a query and returns a slice of Room.
func (r *SQLiteRepository) queryRooms(ctx context.Context, query string, args ...any) ([]Room, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		rm, err := scanRoomRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning room row: %w", err)
		}
		rooms = append(rooms, *rm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating room rows: %w", err)
	}
	return rooms, nil
}

// scanRoom scans a single row into a Room (for QueryRow).
func scanRoom(row *sql.Row) (*Room, error) {
	var rm Room
	var mode string
	var createdAt, updatedAt string

	err := row.Scan(&rm.ID, &rm.DataCenterID, &rm.Name,
		&rm.TargetTemperature, &rm.TargetHumidity, &mode, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("scanning room: %w", err)
	}
	rm.OperationMode = OperationMode(mode)
	rm.CreatedAt = parseTime(createdAt)
	rm.UpdatedAt = parseTime(updatedAt)
	return &rm, nil
}

// scanRoomRow scans a room from a Rows cursor.
func scanRoomRow(rows *sql.Rows) (*Room, error) {
	var rm Room
	var mode string
	var createdAt, updatedAt string

	err := rows.Scan(&rm.ID, &rm.DataCenterID, &rm.Name,
		&rm.TargetTemperature, &rm.TargetHumidity, &mode, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rm.OperationMode = OperationMode(mode)
	rm.CreatedAt = parseTime(createdAt)
	rm.UpdatedAt = parseTime(updatedAt)
	return &rm, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// SQLite default format without timezone designator.
		t, err = time.Parse("2006-01-02T15:04:05Z", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}
