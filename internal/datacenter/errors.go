package datacenter

import "errors"

// Sentinel errors for data center and room operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDataCenterNotFound is returned when a data center ID does not exist.
	ErrDataCenterNotFound = errors.New("datacenter: data center not found")

	// ErrRoomNotFound is returned when a room ID does not exist.
	ErrRoomNotFound = errors.New("datacenter: room not found")

	// ErrDuplicateRoomName is returned when a room name already exists
	// within the same data center.
	ErrDuplicateRoomName = errors.New("datacenter: room name already exists in data center")

	// ErrNameRequired is returned when a name is empty.
	ErrNameRequired = errors.New("datacenter: name is required")

	// ErrInvalidTargetTemperature is returned for setpoints outside the
	// supported 15-30°C band.
	ErrInvalidTargetTemperature = errors.New("datacenter: target temperature must be between 15 and 30°C")

	// ErrInvalidTargetHumidity is returned for setpoints outside the
	// supported 20-80% band.
	ErrInvalidTargetHumidity = errors.New("datacenter: target humidity must be between 20 and 80%")

	// ErrInvalidOperationMode is returned for an unrecognised operation mode.
	ErrInvalidOperationMode = errors.New("datacenter: operation mode must be manual or automatic")
)
