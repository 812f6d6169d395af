package sensor

// Plausibility bounds for measurements. The DHT22-class probes the
// fleet uses cannot physically report outside these ranges, so anything
// beyond them is a firmware or transport fault and is rejected.
const (
	MinTemperature = -40.0
	MaxTemperature = 80.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
)

// ValidateSensor checks a sensor record before persistence.
func ValidateSensor(s *Sensor) error {
	if s.DeviceID == "" {
		return ErrDeviceIDRequired
	}
	if s.Name == "" {
		return ErrNameRequired
	}
	if !IsValidType(s.Type) {
		return ErrInvalidType
	}
	return nil
}

// ValidateReading checks a measurement before persistence.
// A reading must carry at least one channel, and each present channel
// must be physically plausible.
func ValidateReading(r *Reading) error {
	if r.Temperature == nil && r.Humidity == nil {
		return ErrEmptyReading
	}
	if r.Temperature != nil && (*r.Temperature < MinTemperature || *r.Temperature > MaxTemperature) {
		return ErrTemperatureOutOfRange
	}
	if r.Humidity != nil && (*r.Humidity < MinHumidity || *r.Humidity > MaxHumidity) {
		return ErrHumidityOutOfRange
	}
	return nil
}
