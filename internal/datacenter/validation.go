package datacenter

// Setpoint bounds. The fleet's CRAC units cannot hold setpoints outside
// these bands, so the API refuses them rather than letting the control
// loop chase an unreachable target.
const (
	MinTargetTemperature = 15.0
	MaxTargetTemperature = 30.0
	MinTargetHumidity    = 20.0
	MaxTargetHumidity    = 80.0
)

// ValidateDataCenter checks a data center record before persistence.
func ValidateDataCenter(dc *DataCenter) error {
	if dc.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// ValidateRoom checks a room record before persistence.
func ValidateRoom(room *Room) error {
	if room.Name == "" {
		return ErrNameRequired
	}
	if room.TargetTemperature < MinTargetTemperature || room.TargetTemperature > MaxTargetTemperature {
		return ErrInvalidTargetTemperature
	}
	if room.TargetHumidity < MinTargetHumidity || room.TargetHumidity > MaxTargetHumidity {
		return ErrInvalidTargetHumidity
	}
	if !IsValidOperationMode(room.OperationMode) {
		return ErrInvalidOperationMode
	}
	return nil
}
