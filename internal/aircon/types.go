package aircon

import "time"

// Status describes an AC unit's known state.
type Status string

const (
	// StatusOn means the unit is cooling.
	StatusOn Status = "on"

	// StatusOff means the unit is idle.
	StatusOff Status = "off"

	// StatusError marks a unit an operator has flagged as faulty. The
	// controller never enters this state on its own; a failed command
	// leaves the previous status in place.
	StatusError Status = "error"
)

// IsValidStatus returns true for a recognised AC status.
func IsValidStatus(s Status) bool {
	return s == StatusOn || s == StatusOff || s == StatusError
}

// Command is an actuation verb dispatched to an AC unit.
type Command string

const (
	// CommandTurnOn switches a unit on.
	CommandTurnOn Command = "turn_on"

	// CommandTurnOff switches a unit off.
	CommandTurnOff Command = "turn_off"
)

// IsValidCommand returns true for a recognised command.
func IsValidCommand(c Command) bool {
	return c == CommandTurnOn || c == CommandTurnOff
}

// AirConditioner is a cooling unit actuated over infrared.
//
// TransmitterID names the ESP32 IR transmitter physically pointed at
// the unit; several units in one room may share a transmitter.
// IsActive marks the unit as in service; decommissioned units keep
// their history but are skipped by automatic control. LastCommand is
// when the unit last executed a command successfully.
type AirConditioner struct {
	ID            string     `json:"id"`
	RoomID        string     `json:"room_id"`
	Name          string     `json:"name"`
	TransmitterID string     `json:"transmitter_id"`
	Status        Status     `json:"status"`
	IsActive      bool       `json:"is_active"`
	LastCommand   *time.Time `json:"last_command,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IRSignal is a captured remote-control code for one (unit, command)
// pair. SignalData is the raw timing payload exactly as the transmitter
// reported it; the core never interprets it, only replays it.
type IRSignal struct {
	ID         string    `json:"id"`
	ACID       string    `json:"ac_id"`
	Command    Command   `json:"command"`
	SignalData string    `json:"signal_data"`
	CreatedAt  time.Time `json:"created_at"`
}

// CommandLog is the audit record of one actuation attempt. A log row is
// written for every attempt, successful or not, before the unit's
// status is touched.
type CommandLog struct {
	ID           int64     `json:"id"`
	ACID         string    `json:"ac_id"`
	Command      Command   `json:"command"`
	Actor        Actor     `json:"actor"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
