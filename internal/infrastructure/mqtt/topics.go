package mqtt

import "fmt"

// Topic prefixes for the ThermoGuard MQTT namespace.
//
// Hardware-facing topics use the flat scheme:
// thermoguard/{category}/ir/{transmitter_id}[/...]. ESP32 IR transmitter
// firmware subscribes to its own command and record topics and publishes
// acknowledgements and captured codes back.
const (
	// TopicPrefix is the base for all ThermoGuard topics.
	TopicPrefix = "thermoguard"

	// TopicPrefixCore is the base for core-published topics (event mirror).
	TopicPrefixCore = "thermoguard/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "thermoguard/system"
)

// Topics provides builders for ThermoGuard MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase
// and the transmitter firmware.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.IRCommand("rack-7-tx")
//	// Returns: "thermoguard/command/ir/rack-7-tx"
type Topics struct{}

// IRCommand returns the topic a transmitter listens on for IR dispatch
// commands.
//
// Example: thermoguard/command/ir/rack-7-tx
func (Topics) IRCommand(transmitterID string) string {
	return fmt.Sprintf("%s/command/ir/%s", TopicPrefix, transmitterID)
}

// IRAck returns the topic a transmitter publishes a command result to.
// The command ID ties the acknowledgement back to the dispatch.
//
// Example: thermoguard/ack/ir/rack-7-tx/cmd-abc123
func (Topics) IRAck(transmitterID, commandID string) string {
	return fmt.Sprintf("%s/ack/ir/%s/%s", TopicPrefix, transmitterID, commandID)
}

// IRRecordStart returns the topic that switches a transmitter into
// IR capture mode.
//
// Example: thermoguard/record/ir/rack-7-tx
func (Topics) IRRecordStart(transmitterID string) string {
	return fmt.Sprintf("%s/record/ir/%s", TopicPrefix, transmitterID)
}

// IRRecorded returns the topic a transmitter publishes captured IR codes to.
//
// Example: thermoguard/recorded/ir/rack-7-tx
func (Topics) IRRecorded(transmitterID string) string {
	return fmt.Sprintf("%s/recorded/ir/%s", TopicPrefix, transmitterID)
}

// CoreEvent returns the topic for the platform event mirror.
// Every event broadcast to dashboard WebSocket clients is mirrored here
// so headless consumers can follow along without holding a socket open.
//
// Example: thermoguard/core/event/alert_triggered
func (Topics) CoreEvent(eventKind string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventKind)
}

// SystemStatus returns the system status topic carrying the online/offline
// LWT payloads.
//
// Example: thermoguard/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllIRAcks returns a pattern matching every acknowledgement from one
// transmitter.
//
// Pattern: thermoguard/ack/ir/rack-7-tx/+
func (Topics) AllIRAcks(transmitterID string) string {
	return fmt.Sprintf("%s/ack/ir/%s/+", TopicPrefix, transmitterID)
}

// AllIRRecorded returns a pattern matching captured codes from every
// transmitter.
//
// Pattern: thermoguard/recorded/ir/+
func (Topics) AllIRRecorded() string {
	return fmt.Sprintf("%s/recorded/ir/+", TopicPrefix)
}

// AllCoreEvents returns a pattern matching all mirrored platform events.
//
// Pattern: thermoguard/core/event/+
func (Topics) AllCoreEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixCore)
}

// AllTopics returns a pattern matching all ThermoGuard topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: thermoguard/#
func (Topics) AllTopics() string {
	return "thermoguard/#"
}
