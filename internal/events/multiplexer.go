package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/orbitalhq/geosync/internal/app/ports"
)

// FrameWriter is the outbound side of one client connection. WriteHeartbeat
// emits a no-op keep-alive frame consumers must ignore.
type FrameWriter interface {
	WriteEvent(event Event) error
	WriteHeartbeat() error
}

// defaultHeartbeat matches the interval clients are told to expect.
const defaultHeartbeat = 30 * time.Second

// Multiplexer serves one long-lived stream per client connection,
// multiplexing the fixed set of lifecycle event types over it. Closing the
// connection (client disconnect, write error, shutdown) deregisters every
// topic subscription that was registered for it.
type Multiplexer struct {
	hub       *Broadcaster
	heartbeat time.Duration
	log       *slog.Logger
}

// NewMultiplexer constructs a multiplexer over the hub. A non-positive
// heartbeat falls back to the default interval.
func NewMultiplexer(hub *Broadcaster, heartbeat time.Duration, log *slog.Logger) *Multiplexer {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	if log == nil {
		log = slog.Default()
	}
	return &Multiplexer{hub: hub, heartbeat: heartbeat, log: log}
}

// streamedEventTypes is the fixed set every stream listens for.
var streamedEventTypes = []string{
	ports.EventOrderUpdate,
	ports.EventMonitoringUpdate,
	ports.EventNotification,
}

// Topics returns the topic keys a connection for owner subscribes to.
// includeGlobal additionally registers the unscoped form of each event type.
func Topics(owner string, includeGlobal bool) []string {
	topics := make([]string, 0, 2*len(streamedEventTypes))
	for _, eventType := range streamedEventTypes {
		topics = append(topics, OwnerTopic(eventType, owner))
		if includeGlobal {
			topics = append(topics, eventType)
		}
	}
	return topics
}

// Serve pumps events and heartbeats to the writer until the context is done
// or a write fails. The connection's subscriptions are always deregistered on
// return; partial cleanup would leak listeners until the hub hits its
// subscriber cap.
func (m *Multiplexer) Serve(ctx context.Context, owner string, includeGlobal bool, w FrameWriter) error {
	sub := m.hub.Subscribe(Topics(owner, includeGlobal)...)
	defer sub.Close()

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	m.log.DebugContext(ctx, "subscription stream attached", "owner", owner, "global", includeGlobal)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := w.WriteEvent(event); err != nil {
				return err
			}
		case <-ticker.C:
			if err := w.WriteHeartbeat(); err != nil {
				return err
			}
		}
	}
}
