package notify

import (
	"encoding/json"
	"time"

	"github.com/thermoguard/thermoguard-core/internal/infrastructure/logging"
)

// ChannelBroadcaster pushes a payload to every subscriber of a channel.
// The WebSocket hub implements this.
type ChannelBroadcaster interface {
	Broadcast(channel string, payload []byte)
}

// WirePublisher mirrors events onto the message bus so headless
// consumers (wall displays, external monitoring) see the same stream
// the dashboards do. The MQTT client implements this.
type WirePublisher interface {
	PublishEvent(kind string, payload []byte) error
}

// Broadcaster fans events out to the dashboard channel, the event's
// room channel, and the MQTT mirror.
type Broadcaster struct {
	hub    ChannelBroadcaster
	wire   WirePublisher
	logger *logging.Logger
}

// NewBroadcaster creates a broadcaster. Either destination may be nil;
// a nil destination is skipped.
func NewBroadcaster(hub ChannelBroadcaster, wire WirePublisher, logger *logging.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.Default()
	}
	return &Broadcaster{hub: hub, wire: wire, logger: logger}
}

// Emit implements Sink. A payload that cannot be serialised, or a wire
// publish that fails, is logged and dropped: live events are advisory
// and must never fail the operation that produced them.
func (b *Broadcaster) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("serialising event", "kind", string(event.Kind), "error", err)
		return
	}

	if b.hub != nil {
		b.hub.Broadcast(ChannelDashboard, data)
		if event.RoomID != "" {
			b.hub.Broadcast(RoomChannel(event.RoomID), data)
		}
	}

	if b.wire != nil {
		if err := b.wire.PublishEvent(string(event.Kind), data); err != nil {
			b.logger.Warn("mirroring event to broker", "kind", string(event.Kind), "error", err)
		}
	}
}
