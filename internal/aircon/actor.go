package aircon

import "encoding/json"

// Actor identifies who initiated an AC command: the hysteresis control
// loop or a named user. The zero value is not valid; construct with
// SystemActor or UserActor.
type Actor struct {
	system   bool
	username string
}

// SystemActor returns the actor for commands issued by the automatic
// control loop.
func SystemActor() Actor {
	return Actor{system: true}
}

// UserActor returns the actor for commands issued by a user.
func UserActor(username string) Actor {
	return Actor{username: username}
}

// IsSystem reports whether the command came from the control loop.
func (a Actor) IsSystem() bool {
	return a.system
}

// Username returns the initiating user and true, or ("", false) for
// system commands.
func (a Actor) Username() (string, bool) {
	if a.system {
		return "", false
	}
	return a.username, true
}

// String returns "system" or the username.
func (a Actor) String() string {
	if a.system {
		return "system"
	}
	return a.username
}

// MarshalJSON encodes the actor as {"type":"system"} or
// {"type":"user","username":...}.
func (a Actor) MarshalJSON() ([]byte, error) {
	if a.system {
		return json.Marshal(map[string]string{"type": "system"})
	}
	return json.Marshal(map[string]string{"type": "user", "username": a.username})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (a *Actor) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type     string `json:"type"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Type == "system" {
		*a = SystemActor()
		return nil
	}
	*a = UserActor(wire.Username)
	return nil
}
