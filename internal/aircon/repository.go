package aircon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for AC, IR signal and command log
// persistence.
type Repository interface {
	CreateAC(ctx context.Context, ac *AirConditioner) error
	GetAC(ctx context.Context, id string) (*AirConditioner, error)
	ListACs(ctx context.Context) ([]AirConditioner, error)
	ListACsByRoom(ctx context.Context, roomID string) ([]AirConditioner, error)
	UpdateAC(ctx context.Context, ac *AirConditioner) error
	DeleteAC(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status Status) error

	// SaveIRSignal stores a captured code, replacing any previous code
	// for the same (unit, command) pair.
	SaveIRSignal(ctx context.Context, sig *IRSignal) error
	GetIRSignal(ctx context.Context, acID string, command Command) (*IRSignal, error)
	ListIRSignals(ctx context.Context, acID string) ([]IRSignal, error)

	LogCommand(ctx context.Context, entry *CommandLog) error
	ListCommandLogs(ctx context.Context, acID string, limit int) ([]CommandLog, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed AC repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func validateAC(ac *AirConditioner) error {
	if ac.Name == "" {
		return ErrNameRequired
	}
	if ac.TransmitterID == "" {
		return ErrTransmitterRequired
	}
	if !IsValidStatus(ac.Status) {
		return ErrInvalidStatus
	}
	return nil
}

// CreateAC inserts a new AC unit after validation.
func (r *SQLiteRepository) CreateAC(ctx context.Context, ac *AirConditioner) error {
	if err := validateAC(ac); err != nil {
		return err
	}
	const query = `INSERT INTO air_conditioners (id, room_id, name, transmitter_id, status, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		ac.ID, ac.RoomID, ac.Name, ac.TransmitterID, string(ac.Status), boolToInt(ac.IsActive))
	if err != nil {
		return fmt.Errorf("inserting air conditioner %s: %w", ac.ID, err)
	}
	return nil
}

const acColumns = `id, room_id, name, transmitter_id, status, is_active, last_command, created_at, updated_at`

// GetAC returns a single AC unit by ID.
func (r *SQLiteRepository) GetAC(ctx context.Context, id string) (*AirConditioner, error) {
	query := `SELECT ` + acColumns + ` FROM air_conditioners WHERE id = ?`
	ac, err := scanACInto(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrACNotFound
		}
		return nil, fmt.Errorf("scanning air conditioner: %w", err)
	}
	return ac, nil
}

// ListACs returns all AC units ordered by room then name.
func (r *SQLiteRepository) ListACs(ctx context.Context) ([]AirConditioner, error) {
	query := `SELECT ` + acColumns + ` FROM air_conditioners ORDER BY room_id, name`
	return r.queryACs(ctx, query)
}

// ListACsByRoom returns the AC units in one room. Name order makes the
// automatic control loop's "first eligible unit" choice deterministic.
func (r *SQLiteRepository) ListACsByRoom(ctx context.Context, roomID string) ([]AirConditioner, error) {
	query := `SELECT ` + acColumns + ` FROM air_conditioners WHERE room_id = ? ORDER BY name`
	return r.queryACs(ctx, query, roomID)
}

// UpdateAC updates a unit's name, room, transmitter and active flag.
// Status changes go through SetStatus.
func (r *SQLiteRepository) UpdateAC(ctx context.Context, ac *AirConditioner) error {
	if err := validateAC(ac); err != nil {
		return err
	}
	const query = `UPDATE air_conditioners SET room_id = ?, name = ?, transmitter_id = ?, is_active = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, ac.RoomID, ac.Name, ac.TransmitterID, boolToInt(ac.IsActive), ac.ID)
	if err != nil {
		return fmt.Errorf("updating air conditioner %s: %w", ac.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrACNotFound
	}
	return nil
}

// DeleteAC removes a unit. Its IR signals and command logs cascade.
func (r *SQLiteRepository) DeleteAC(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM air_conditioners WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting air conditioner %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrACNotFound
	}
	return nil
}

// SetStatus updates a unit's status after a successful command and
// stamps last_command.
func (r *SQLiteRepository) SetStatus(ctx context.Context, id string, status Status) error {
	if !IsValidStatus(status) {
		return ErrInvalidStatus
	}
	const query = `UPDATE air_conditioners SET status = ?,
		last_command = strftime('%Y-%m-%dT%H:%M:%SZ', 'now'),
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("setting air conditioner %s status: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrACNotFound
	}
	return nil
}

// SaveIRSignal upserts a captured code for a (unit, command) pair.
// Re-recording a command replaces the previous capture.
func (r *SQLiteRepository) SaveIRSignal(ctx context.Context, sig *IRSignal) error {
	if !IsValidCommand(sig.Command) {
		return ErrInvalidCommand
	}
	if sig.SignalData == "" {
		return ErrSignalDataRequired
	}
	const query = `INSERT INTO ir_signals (id, ac_id, command, signal_data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ac_id, command) DO UPDATE SET
			signal_data = excluded.signal_data,
			created_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`
	_, err := r.db.ExecContext(ctx, query, sig.ID, sig.ACID, string(sig.Command), sig.SignalData)
	if err != nil {
		return fmt.Errorf("saving IR signal for %s/%s: %w", sig.ACID, sig.Command, err)
	}
	return nil
}

// GetIRSignal returns the captured code for a (unit, command) pair.
func (r *SQLiteRepository) GetIRSignal(ctx context.Context, acID string, command Command) (*IRSignal, error) {
	const query = `SELECT id, ac_id, command, signal_data, created_at
		FROM ir_signals WHERE ac_id = ? AND command = ?`
	var sig IRSignal
	var cmd, createdAt string
	err := r.db.QueryRowContext(ctx, query, acID, string(command)).
		Scan(&sig.ID, &sig.ACID, &cmd, &sig.SignalData, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIRSignalNotFound
		}
		return nil, fmt.Errorf("scanning IR signal: %w", err)
	}
	sig.Command = Command(cmd)
	sig.CreatedAt = parseTime(createdAt)
	return &sig, nil
}

// ListIRSignals returns all captured codes for a unit.
func (r *SQLiteRepository) ListIRSignals(ctx context.Context, acID string) ([]IRSignal, error) {
	const query = `SELECT id, ac_id, command, signal_data, created_at
		FROM ir_signals WHERE ac_id = ? ORDER BY command`
	rows, err := r.db.QueryContext(ctx, query, acID)
	if err != nil {
		return nil, fmt.Errorf("querying IR signals: %w", err)
	}
	defer rows.Close()

	var signals []IRSignal
	for rows.Next() {
		var sig IRSignal
		var cmd, createdAt string
		if err := rows.Scan(&sig.ID, &sig.ACID, &cmd, &sig.SignalData, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning IR signal row: %w", err)
		}
		sig.Command = Command(cmd)
		sig.CreatedAt = parseTime(createdAt)
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating IR signal rows: %w", err)
	}
	return signals, nil
}

// LogCommand appends an actuation attempt to the audit trail.
func (r *SQLiteRepository) LogCommand(ctx context.Context, entry *CommandLog) error {
	if !IsValidCommand(entry.Command) {
		return ErrInvalidCommand
	}
	actorType := "user"
	var username sql.NullString
	if entry.Actor.IsSystem() {
		actorType = "system"
	} else {
		name, _ := entry.Actor.Username()
		username = sql.NullString{String: name, Valid: true}
	}
	const query = `INSERT INTO command_logs (ac_id, command, actor_type, username, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var errMsg sql.NullString
	if entry.ErrorMessage != "" {
		errMsg = sql.NullString{String: entry.ErrorMessage, Valid: true}
	}
	result, err := r.db.ExecContext(ctx, query,
		entry.ACID, string(entry.Command), actorType, username,
		boolToInt(entry.Success), errMsg, createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("logging command for %s: %w", entry.ACID, err)
	}
	entry.ID, _ = result.LastInsertId() //nolint:errcheck // SQLite always supports LastInsertId
	return nil
}

// ListCommandLogs returns a unit's actuation history, newest first.
func (r *SQLiteRepository) ListCommandLogs(ctx context.Context, acID string, limit int) ([]CommandLog, error) {
	const query = `SELECT id, ac_id, command, actor_type, username, success, error_message, created_at
		FROM command_logs WHERE ac_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, acID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying command logs: %w", err)
	}
	defer rows.Close()

	var logs []CommandLog
	for rows.Next() {
		var entry CommandLog
		var cmd, actorType, createdAt string
		var username, errMsg sql.NullString
		var success int
		if err := rows.Scan(&entry.ID, &entry.ACID, &cmd, &actorType,
			&username, &success, &errMsg, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command log row: %w", err)
		}
		entry.Command = Command(cmd)
		if actorType == "system" {
			entry.Actor = SystemActor()
		} else {
			entry.Actor = UserActor(username.String)
		}
		entry.Success = success != 0
		entry.ErrorMessage = errMsg.String
		entry.CreatedAt = parseTime(createdAt)
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log rows: %w", err)
	}
	return logs, nil
}

// queryACs executes a query and returns a slice of AirConditioner.
func (r *SQLiteRepository) queryACs(ctx context.Context, query string, args ...any) ([]AirConditioner, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying air conditioners: %w", err)
	}
	defer rows.Close()

	var acs []AirConditioner
	for rows.Next() {
		ac, err := scanACInto(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning air conditioner row: %w", err)
		}
		acs = append(acs, *ac)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating air conditioner rows: %w", err)
	}
	return acs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanACInto(s scanner) (*AirConditioner, error) {
	var ac AirConditioner
	var status, createdAt, updatedAt string
	var isActive int
	var lastCommand sql.NullString
	err := s.Scan(&ac.ID, &ac.RoomID, &ac.Name, &ac.TransmitterID,
		&status, &isActive, &lastCommand, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	ac.Status = Status(status)
	ac.IsActive = isActive != 0
	if lastCommand.Valid {
		t := parseTime(lastCommand.String)
		ac.LastCommand = &t
	}
	ac.CreatedAt = parseTime(createdAt)
	ac.UpdatedAt = parseTime(updatedAt)
	return &ac, nil
}

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
