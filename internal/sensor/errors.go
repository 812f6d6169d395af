package sensor

import "errors"

// Sentinel errors for sensor and reading operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrSensorNotFound is returned when a sensor ID or device ID does not exist.
	ErrSensorNotFound = errors.New("sensor: sensor not found")

	// ErrDuplicateDeviceID is returned when registering a sensor with a
	// device ID that is already registered.
	ErrDuplicateDeviceID = errors.New("sensor: device ID already registered")

	// ErrNameRequired is returned when a sensor name is empty.
	ErrNameRequired = errors.New("sensor: name is required")

	// ErrDeviceIDRequired is returned when a device ID is empty.
	ErrDeviceIDRequired = errors.New("sensor: device ID is required")

	// ErrInvalidType is returned for an unrecognised sensor type.
	ErrInvalidType = errors.New("sensor: type must be temperature, humidity, or combined")

	// ErrEmptyReading is returned when a reading carries neither
	// temperature nor humidity.
	ErrEmptyReading = errors.New("sensor: reading must include temperature or humidity")

	// ErrTemperatureOutOfRange is returned for temperatures outside the
	// physically plausible -40..80°C band.
	ErrTemperatureOutOfRange = errors.New("sensor: temperature must be between -40 and 80°C")

	// ErrHumidityOutOfRange is returned for humidity outside 0..100%.
	ErrHumidityOutOfRange = errors.New("sensor: humidity must be between 0 and 100%")

	// ErrNoReadings is returned when a latest-reading query finds none.
	ErrNoReadings = errors.New("sensor: no readings recorded")
)
