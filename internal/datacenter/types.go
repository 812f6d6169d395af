package datacenter

import "time"

// OperationMode controls whether a room's cooling is driven by the
// hysteresis loop or left to the operators.
type OperationMode string

const (
	// ModeManual means AC units are only switched by explicit operator commands.
	ModeManual OperationMode = "manual"

	// ModeAutomatic enables the hysteresis control loop for the room.
	ModeAutomatic OperationMode = "automatic"
)

// IsValidOperationMode returns true for a recognised operation mode.
func IsValidOperationMode(m OperationMode) bool {
	return m == ModeManual || m == ModeAutomatic
}

// DataCenter represents a physical facility containing monitored rooms.
type DataCenter struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Room represents a monitored space within a data center: a server room,
// a cold aisle, a UPS room. Each room carries its own climate setpoints,
// which every threshold in the alert engine and the hysteresis loop is
// computed against.
type Room struct {
	ID           string `json:"id"`
	DataCenterID string `json:"data_center_id"`
	Name         string `json:"name"`

	// TargetTemperature is the desired temperature in °C.
	TargetTemperature float64 `json:"target_temperature"`

	// TargetHumidity is the desired relative humidity in percent.
	TargetHumidity float64 `json:"target_humidity"`

	OperationMode OperationMode `json:"operation_mode"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsAutomatic reports whether the hysteresis loop drives this room.
func (r *Room) IsAutomatic() bool {
	return r.OperationMode == ModeAutomatic
}
