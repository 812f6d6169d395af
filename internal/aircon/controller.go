package aircon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thermoguard/thermoguard-core/internal/alert"
	"github.com/thermoguard/thermoguard-core/internal/datacenter"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/logging"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/mqtt"
	"github.com/thermoguard/thermoguard-core/internal/notify"
)

// AlertRaiser records failed actuations as alerts. The alert engine
// implements this.
type AlertRaiser interface {
	RaiseACError(ctx context.Context, roomID, message string) (*alert.Alert, error)
}

// Config carries the controller's tunables.
type Config struct {
	// CommandTimeout bounds the dispatch round trip to a transmitter.
	CommandTimeout time.Duration

	// Hysteresis is the dead band around a room's setpoint within which
	// the automatic loop takes no action (°C).
	Hysteresis float64
}

// Controller executes AC commands: it replays the recorded IR code,
// audits the attempt, and keeps unit status in step with reality.
type Controller struct {
	repo   Repository
	sender IRSender
	alerts AlertRaiser
	events notify.Sink
	cfg    Config
	logger *logging.Logger
}

// NewController creates an AC controller.
func NewController(repo Repository, sender IRSender, alerts AlertRaiser, events notify.Sink, cfg Config, logger *logging.Logger) *Controller {
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = 5 * time.Second
	}
	if cfg.Hysteresis == 0 {
		cfg.Hysteresis = 1.0
	}
	if events == nil {
		events = notify.NopSink{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{
		repo:   repo,
		sender: sender,
		alerts: alerts,
		events: events,
		cfg:    cfg,
		logger: logger,
	}
}

// TurnOn switches a unit on.
func (c *Controller) TurnOn(ctx context.Context, acID string, actor Actor) (*AirConditioner, error) {
	return c.Execute(ctx, acID, CommandTurnOn, actor)
}

// TurnOff switches a unit off.
func (c *Controller) TurnOff(ctx context.Context, acID string, actor Actor) (*AirConditioner, error) {
	return c.Execute(ctx, acID, CommandTurnOff, actor)
}

// Execute dispatches a command to a unit's transmitter.
//
// The attempt is written to the command log before the unit's status is
// touched, so the audit trail records attempts the status update never
// reflects. A unit with no recorded IR code for the command logs a
// simulated success; that keeps commissioning workflows moving before
// codes are captured.
//
// On failure the unit's status is left untouched. A failed dispatch
// says nothing certain about the unit itself, so the controller raises
// an ac_error alert and returns an error wrapping ErrCommandFailed
// instead of guessing a new state.
func (c *Controller) Execute(ctx context.Context, acID string, command Command, actor Actor) (*AirConditioner, error) {
	if !IsValidCommand(command) {
		return nil, ErrInvalidCommand
	}
	ac, err := c.repo.GetAC(ctx, acID)
	if err != nil {
		return nil, err
	}

	var sendErr error
	sig, err := c.repo.GetIRSignal(ctx, acID, command)
	switch {
	case errors.Is(err, ErrIRSignalNotFound):
		c.logger.Warn("no IR code recorded, simulating success",
			"ac_id", acID, "command", string(command))
	case err != nil:
		return nil, err
	default:
		sendCtx, cancel := context.WithTimeout(ctx, c.cfg.CommandTimeout)
		sendErr = c.sender.Send(sendCtx, ac.TransmitterID, sig.SignalData)
		cancel()
	}

	entry := &CommandLog{
		ACID:    acID,
		Command: command,
		Actor:   actor,
		Success: sendErr == nil,
	}
	if sendErr != nil {
		entry.ErrorMessage = sendErr.Error()
	}
	if err := c.repo.LogCommand(ctx, entry); err != nil {
		return nil, fmt.Errorf("recording command attempt: %w", err)
	}

	if sendErr != nil {
		c.logger.Error("AC command failed",
			"ac_id", acID, "command", string(command), "error", sendErr)

		message := fmt.Sprintf("Failed to execute %s on AC unit %s: %v", command, ac.Name, sendErr)
		raised, alertErr := c.alerts.RaiseACError(ctx, ac.RoomID, message)
		if alertErr != nil {
			c.logger.Error("raising ac_error alert", "ac_id", acID, "error", alertErr)
		} else if raised != nil {
			c.events.Emit(notify.Event{
				Kind:    notify.KindAlertTriggered,
				RoomID:  ac.RoomID,
				Payload: raised,
			})
		}
		failErr := sendErr
		if !errors.Is(failErr, ErrCommandFailed) {
			failErr = fmt.Errorf("%w: %w", ErrCommandFailed, sendErr)
		}
		return nil, fmt.Errorf("executing %s on %s: %w", command, acID, failErr)
	}

	newStatus := StatusOff
	if command == CommandTurnOn {
		newStatus = StatusOn
	}
	if err := c.repo.SetStatus(ctx, acID, newStatus); err != nil {
		return nil, err
	}
	ac.Status = newStatus
	now := time.Now().UTC()
	ac.LastCommand = &now

	c.logger.Info("AC command executed",
		"ac_id", acID, "command", string(command), "actor", actor.String())
	c.emitStatusChanged(ac, command, actor)
	return ac, nil
}

func (c *Controller) emitStatusChanged(ac *AirConditioner, command Command, actor Actor) {
	c.events.Emit(notify.Event{
		Kind:   notify.KindACStatusChanged,
		RoomID: ac.RoomID,
		Payload: map[string]any{
			"ac_id":   ac.ID,
			"name":    ac.Name,
			"status":  ac.Status,
			"command": command,
			"actor":   actor,
		},
	})
}

// AutoTurnOn switches on the first active unit in the room that is
// currently off. Returns false when no unit is eligible; that is not
// an error.
func (c *Controller) AutoTurnOn(ctx context.Context, roomID string) (bool, error) {
	return c.autoSwitch(ctx, roomID, StatusOff, CommandTurnOn)
}

// AutoTurnOff switches off the first active unit in the room that is
// currently on. Returns false when no unit is eligible; that is not
// an error.
func (c *Controller) AutoTurnOff(ctx context.Context, roomID string) (bool, error) {
	return c.autoSwitch(ctx, roomID, StatusOn, CommandTurnOff)
}

// autoSwitch finds the first active unit in the eligible state and
// commands it. Decommissioned units never take part in automatic
// control. One unit per invocation: the loop acts on every reading, so
// capacity ramps one unit at a time instead of slamming the whole room.
func (c *Controller) autoSwitch(ctx context.Context, roomID string, eligible Status, command Command) (bool, error) {
	acs, err := c.repo.ListACsByRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	for i := range acs {
		if !acs[i].IsActive || acs[i].Status != eligible {
			continue
		}
		if _, err := c.Execute(ctx, acs[i].ID, command, SystemActor()); err != nil {
			return true, err
		}
		return true, nil
	}
	return false, nil
}

// ApplyHysteresis runs one step of the automatic control loop for a
// room against a fresh temperature sample. Inside the dead band nothing
// happens; outside it the first eligible unit is switched.
//
// Manual rooms are left alone.
func (c *Controller) ApplyHysteresis(ctx context.Context, room *datacenter.Room, temperature float64) error {
	if !room.IsAutomatic() {
		return nil
	}

	switch {
	case temperature > room.TargetTemperature+c.cfg.Hysteresis:
		acted, err := c.AutoTurnOn(ctx, room.ID)
		if err != nil {
			return err
		}
		if acted {
			c.logger.Info("hysteresis engaged cooling",
				"room_id", room.ID, "temperature", temperature,
				"target", room.TargetTemperature)
		}
	case temperature < room.TargetTemperature-c.cfg.Hysteresis:
		acted, err := c.AutoTurnOff(ctx, room.ID)
		if err != nil {
			return err
		}
		if acted {
			c.logger.Info("hysteresis released cooling",
				"room_id", room.ID, "temperature", temperature,
				"target", room.TargetTemperature)
		}
	}
	return nil
}

// StartIRRecording switches a unit's transmitter into capture mode for
// one command. The captured code arrives asynchronously and is stored
// by the recorded listener.
func (c *Controller) StartIRRecording(ctx context.Context, acID string, command Command) error {
	if !IsValidCommand(command) {
		return ErrInvalidCommand
	}
	ac, err := c.repo.GetAC(ctx, acID)
	if err != nil {
		return err
	}
	if err := c.sender.EnterRecording(ctx, ac.TransmitterID, acID, command); err != nil {
		return err
	}
	c.logger.Info("IR capture requested",
		"ac_id", acID, "transmitter_id", ac.TransmitterID, "command", string(command))
	return nil
}

// RecordIRSignal stores a captured code for a unit, replacing any
// previous capture for the same command.
func (c *Controller) RecordIRSignal(ctx context.Context, acID string, command Command, signalData string) (*IRSignal, error) {
	if _, err := c.repo.GetAC(ctx, acID); err != nil {
		return nil, err
	}
	sig := &IRSignal{
		ID:         uuid.NewString(),
		ACID:       acID,
		Command:    command,
		SignalData: signalData,
	}
	if err := c.repo.SaveIRSignal(ctx, sig); err != nil {
		return nil, err
	}
	c.logger.Info("IR signal recorded", "ac_id", acID, "command", string(command))
	return sig, nil
}

// recordedPayload is the captured-code message a transmitter publishes.
type recordedPayload struct {
	ACID    string `json:"ac_id"`
	Command string `json:"command"`
	Signal  string `json:"signal"`
}

// ListenRecorded subscribes the controller to captured IR codes from
// every transmitter. Codes for unknown units or commands are logged and
// dropped.
func (c *Controller) ListenRecorded(bus Bus, qos byte) error {
	topic := mqtt.Topics{}.AllIRRecorded()
	return bus.Subscribe(topic, qos, func(topic string, payload []byte) error {
		var rec recordedPayload
		if err := json.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("parsing recorded IR payload: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := c.RecordIRSignal(ctx, rec.ACID, Command(rec.Command), rec.Signal); err != nil {
			return fmt.Errorf("storing recorded IR signal: %w", err)
		}
		return nil
	})
}
