package alert

import "time"

// Type categorises what an alert is about.
type Type string

const (
	// TypeHighTemp is raised when a reading exceeds the room's warning
	// or critical temperature threshold.
	TypeHighTemp Type = "high_temp"

	// TypeLowTemp is raised when a reading drops below the room's low
	// temperature threshold. Overcooling wastes energy and can indicate
	// a stuck AC unit.
	TypeLowTemp Type = "low_temp"

	// TypeHighHumidity is raised when humidity exceeds the room's
	// threshold. Condensation risk.
	TypeHighHumidity Type = "high_humidity"

	// TypeLowHumidity is raised when humidity drops below the room's
	// threshold. Static discharge risk.
	TypeLowHumidity Type = "low_humidity"

	// TypeSensorOffline is raised when a sensor stops reporting past the
	// offline threshold.
	TypeSensorOffline Type = "sensor_offline"

	// TypeACError is raised when an AC command fails to execute.
	TypeACError Type = "ac_error"

	// TypeSystemError is raised for internal faults that are not tied to
	// a single sensor or AC unit.
	TypeSystemError Type = "system_error"
)

// IsValidType returns true for a recognised alert type.
func IsValidType(t Type) bool {
	switch t {
	case TypeHighTemp, TypeLowTemp, TypeHighHumidity, TypeLowHumidity,
		TypeSensorOffline, TypeACError, TypeSystemError:
		return true
	}
	return false
}

// Severity grades how urgent an alert is.
type Severity string

const (
	// SeverityInfo is advisory only.
	SeverityInfo Severity = "info"

	// SeverityWarning needs attention but not immediately.
	SeverityWarning Severity = "warning"

	// SeverityCritical needs immediate attention; unacknowledged
	// critical alerts are escalated after a grace period.
	SeverityCritical Severity = "critical"
)

// IsValidSeverity returns true for a recognised severity.
func IsValidSeverity(s Severity) bool {
	return s == SeverityInfo || s == SeverityWarning || s == SeverityCritical
}

// Alert is a condition that needs operator attention.
//
// Value and Threshold record the measurement that tripped the alert and
// the limit it crossed, so the message stays meaningful after the room's
// targets are retuned.
type Alert struct {
	ID             string     `json:"id"`
	RoomID         string     `json:"room_id"`
	Type           Type       `json:"type"`
	Severity       Severity   `json:"severity"`
	Message        string     `json:"message"`
	Value          *float64   `json:"value,omitempty"`
	Threshold      *float64   `json:"threshold,omitempty"`
	IsAcknowledged bool       `json:"is_acknowledged"`
	AcknowledgedBy *string    `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	EscalatedAt    *time.Time `json:"escalated_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ActiveCount is the number of unacknowledged alerts for one room,
// split by severity.
type ActiveCount struct {
	RoomID   string `json:"room_id"`
	Info     int    `json:"info"`
	Warning  int    `json:"warning"`
	Critical int    `json:"critical"`
}
