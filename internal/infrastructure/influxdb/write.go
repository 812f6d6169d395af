package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteReading mirrors an accepted sensor reading to InfluxDB.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Single-channel probes report only one of temperature and humidity, so
// both are pointers and a nil simply omits the field.
//
// Example:
//
//	client.WriteReading("sensor-rack-7", "room-cold-aisle", &temp, &hum, reading.Timestamp)
func (c *Client) WriteReading(sensorID, roomID string, temperature, humidity *float64, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{}
	if temperature != nil {
		fields["temperature"] = *temperature
	}
	if humidity != nil {
		fields["humidity"] = *humidity
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"sensor_id": sensorID,
			"room_id":   roomID,
		},
		fields,
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteRoomClimate writes a room-level climate snapshot (averages across
// the room's sensors). Used by dashboards that chart rooms rather than
// individual probes.
func (c *Client) WriteRoomClimate(roomID string, avgTemperature, avgHumidity float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"room_climate",
		map[string]string{
			"room_id": roomID,
		},
		map[string]interface{}{
			"avg_temperature": avgTemperature,
			"avg_humidity":    avgHumidity,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
