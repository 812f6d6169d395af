package notify

import "time"

// EventKind identifies what a live event describes.
type EventKind string

const (
	// KindSensorReading is an accepted measurement.
	KindSensorReading EventKind = "sensor_reading"

	// KindACStatusChanged is an AC unit switching state.
	KindACStatusChanged EventKind = "ac_status_changed"

	// KindAlertTriggered is a newly raised or escalated alert.
	KindAlertTriggered EventKind = "alert_triggered"

	// KindConnectionStatus is a sensor going online or offline.
	KindConnectionStatus EventKind = "connection_status"
)

// ChannelDashboard receives every event regardless of room.
const ChannelDashboard = "dashboard"

// RoomChannel returns the channel name scoped to one room.
func RoomChannel(roomID string) string {
	return "room:" + roomID
}

// Event is a live update pushed to dashboards and mirrored to MQTT.
type Event struct {
	Kind      EventKind `json:"kind"`
	RoomID    string    `json:"room_id,omitempty"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink accepts events for fan-out. Emit is fire-and-forget: delivery is
// best effort and never blocks or fails the operation that produced the
// event.
type Sink interface {
	Emit(event Event)
}

// NopSink discards all events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Event) {}
