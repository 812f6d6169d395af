package alert

import "errors"

// Sentinel errors for alert operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAlertNotFound is returned when an alert ID does not exist.
	ErrAlertNotFound = errors.New("alert: alert not found")

	// ErrAlreadyAcknowledged is returned when acknowledging an alert a
	// second time.
	ErrAlreadyAcknowledged = errors.New("alert: alert already acknowledged")

	// ErrInvalidType is returned for an unrecognised alert type.
	ErrInvalidType = errors.New("alert: invalid alert type")

	// ErrInvalidSeverity is returned for an unrecognised severity.
	ErrInvalidSeverity = errors.New("alert: severity must be warning or critical")

	// ErrMessageRequired is returned when an alert message is empty.
	ErrMessageRequired = errors.New("alert: message is required")

	// ErrRoomRequired is returned when an alert has no room.
	ErrRoomRequired = errors.New("alert: room ID is required")
)
