package sensor

import "time"

// Type describes what a sensor measures.
type Type string

const (
	// TypeTemperature is a temperature-only probe.
	TypeTemperature Type = "temperature"

	// TypeHumidity is a humidity-only probe.
	TypeHumidity Type = "humidity"

	// TypeCombined is the standard DHT22-class probe reporting both.
	TypeCombined Type = "combined"
)

// IsValidType returns true for a recognised sensor type.
func IsValidType(t Type) bool {
	return t == TypeTemperature || t == TypeHumidity || t == TypeCombined
}

// Sensor represents a physical ESP32 probe mounted in a room.
//
// DeviceID is the hardware identifier the firmware reports with every
// reading; it is distinct from the platform-assigned ID so a failed
// board can be swapped without rewriting history.
type Sensor struct {
	ID        string     `json:"id"`
	DeviceID  string     `json:"device_id"`
	RoomID    string     `json:"room_id"`
	Name      string     `json:"name"`
	Type      Type       `json:"type"`
	IsOnline  bool       `json:"is_online"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Reading is a single measurement from a sensor. Temperature and
// humidity are pointers because single-channel probes report only one;
// a reading with neither is rejected at validation.
type Reading struct {
	ID          int64     `json:"id"`
	SensorID    string    `json:"sensor_id"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// AggregatedReading is an hourly compaction of raw readings. Raw rows
// older than the aggregation window are rolled into these and deleted.
type AggregatedReading struct {
	ID             int64     `json:"id"`
	SensorID       string    `json:"sensor_id"`
	Hour           time.Time `json:"hour"`
	MinTemperature *float64  `json:"min_temperature,omitempty"`
	MaxTemperature *float64  `json:"max_temperature,omitempty"`
	AvgTemperature *float64  `json:"avg_temperature,omitempty"`
	MinHumidity    *float64  `json:"min_humidity,omitempty"`
	MaxHumidity    *float64  `json:"max_humidity,omitempty"`
	AvgHumidity    *float64  `json:"avg_humidity,omitempty"`
	ReadingCount   int       `json:"reading_count"`
}

// RoomClimate is the averaged recent climate across a room's sensors.
type RoomClimate struct {
	RoomID         string   `json:"room_id"`
	AvgTemperature *float64 `json:"avg_temperature,omitempty"`
	AvgHumidity    *float64 `json:"avg_humidity,omitempty"`
	SensorCount    int      `json:"sensor_count"`
}
