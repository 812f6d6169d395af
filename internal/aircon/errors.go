package aircon

import "errors"

// Sentinel errors for AC operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrACNotFound is returned when an AC unit ID does not exist.
	ErrACNotFound = errors.New("aircon: air conditioner not found")

	// ErrIRSignalNotFound is returned when no IR code is recorded for a
	// (unit, command) pair.
	ErrIRSignalNotFound = errors.New("aircon: no IR signal recorded for command")

	// ErrCommandFailed is returned when a dispatched command was not
	// acknowledged by the transmitter.
	ErrCommandFailed = errors.New("aircon: command failed")

	// ErrInvalidCommand is returned for an unrecognised command verb.
	ErrInvalidCommand = errors.New("aircon: command must be turn_on or turn_off")

	// ErrInvalidStatus is returned for an unrecognised AC status.
	ErrInvalidStatus = errors.New("aircon: invalid status")

	// ErrNameRequired is returned when an AC unit name is empty.
	ErrNameRequired = errors.New("aircon: name is required")

	// ErrTransmitterRequired is returned when an AC unit has no
	// transmitter assigned.
	ErrTransmitterRequired = errors.New("aircon: transmitter ID is required")

	// ErrSignalDataRequired is returned when recording an empty IR code.
	ErrSignalDataRequired = errors.New("aircon: signal data is required")
)
