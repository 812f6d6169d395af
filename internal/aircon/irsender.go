package aircon

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/thermoguard/thermoguard-core/internal/infrastructure/logging"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/mqtt"
)

// IRSender dispatches IR codes to transmitters and switches them into
// capture mode.
type IRSender interface {
	// Send transmits a captured code and waits for the transmitter's
	// acknowledgement. The context bounds the round trip; expiry counts
	// as a failed command.
	Send(ctx context.Context, transmitterID, signalData string) error

	// EnterRecording switches a transmitter into IR capture mode for one
	// (unit, command) pair. The captured code arrives asynchronously on
	// the recorded topic.
	EnterRecording(ctx context.Context, transmitterID, acID string, command Command) error
}

// Bus is the slice of the MQTT client the IR sender needs.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// commandPayload is the dispatch message a transmitter receives.
type commandPayload struct {
	CommandID string `json:"command_id"`
	Signal    string `json:"signal"`
}

// ackPayload is the result message a transmitter publishes back.
type ackPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// recordPayload tells a transmitter what the next captured code is for.
type recordPayload struct {
	ACID    string `json:"ac_id"`
	Command string `json:"command"`
}

// MQTTIRSender implements IRSender over the MQTT bus.
//
// Each dispatch carries a fresh command ID and listens on the matching
// acknowledgement topic, so overlapping commands to the same
// transmitter cannot steal each other's acks.
type MQTTIRSender struct {
	bus    Bus
	topics mqtt.Topics
	qos    byte
	logger *logging.Logger
}

// NewMQTTIRSender creates an IR sender over the given bus.
func NewMQTTIRSender(bus Bus, qos byte, logger *logging.Logger) *MQTTIRSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &MQTTIRSender{bus: bus, qos: qos, logger: logger}
}

// Send implements IRSender.
func (s *MQTTIRSender) Send(ctx context.Context, transmitterID, signalData string) error {
	commandID := uuid.NewString()
	ackTopic := s.topics.IRAck(transmitterID, commandID)

	acks := make(chan ackPayload, 1)
	err := s.bus.Subscribe(ackTopic, s.qos, func(topic string, payload []byte) error {
		var ack ackPayload
		if err := json.Unmarshal(payload, &ack); err != nil {
			return fmt.Errorf("parsing IR ack: %w", err)
		}
		select {
		case acks <- ack:
		default:
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing for IR ack: %w", err)
	}
	defer func() {
		if err := s.bus.Unsubscribe(ackTopic); err != nil {
			s.logger.Warn("unsubscribing IR ack topic", "topic", ackTopic, "error", err)
		}
	}()

	payload, err := json.Marshal(commandPayload{CommandID: commandID, Signal: signalData})
	if err != nil {
		return fmt.Errorf("serialising IR command: %w", err)
	}
	if err := s.bus.Publish(s.topics.IRCommand(transmitterID), payload, s.qos, false); err != nil {
		return fmt.Errorf("dispatching IR command: %w", err)
	}

	select {
	case ack := <-acks:
		if !ack.Success {
			if ack.Error != "" {
				return fmt.Errorf("%w: transmitter reported: %s", ErrCommandFailed, ack.Error)
			}
			return fmt.Errorf("%w: transmitter reported failure", ErrCommandFailed)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: no acknowledgement from transmitter %s: %w",
			ErrCommandFailed, transmitterID, ctx.Err())
	}
}

// EnterRecording implements IRSender.
func (s *MQTTIRSender) EnterRecording(_ context.Context, transmitterID, acID string, command Command) error {
	payload, err := json.Marshal(recordPayload{ACID: acID, Command: string(command)})
	if err != nil {
		return fmt.Errorf("serialising record request: %w", err)
	}
	if err := s.bus.Publish(s.topics.IRRecordStart(transmitterID), payload, s.qos, false); err != nil {
		return fmt.Errorf("requesting IR capture: %w", err)
	}
	return nil
}
