package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/orbitalhq/geosync/internal/app/ports"
)

type collectingWriter struct {
	mu         sync.Mutex
	events     []Event
	heartbeats int
	failWrites bool
}

func (w *collectingWriter) WriteEvent(event Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failWrites {
		return errors.New("write failed")
	}
	w.events = append(w.events, event)
	return nil
}

func (w *collectingWriter) WriteHeartbeat() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.heartbeats++
	return nil
}

func (w *collectingWriter) snapshot() ([]Event, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Event(nil), w.events...), w.heartbeats
}

func TestServeForwardsOwnerScopedEvents(t *testing.T) {
	hub := NewBroadcaster(nil)
	mux := NewMultiplexer(hub, time.Minute, nil)
	writer := &collectingWriter{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- mux.Serve(ctx, "acct-1", false, writer)
	}()

	waitForSubscribers(t, hub, OwnerTopic(ports.EventOrderUpdate, "acct-1"))
	hub.PublishToOwner("acct-1", ports.EventOrderUpdate, "payload")
	hub.PublishToOwner("acct-2", ports.EventOrderUpdate, "foreign")
	hub.Broadcast(ports.EventOrderUpdate, "global")

	waitFor(t, func() bool {
		events, _ := writer.snapshot()
		return len(events) == 1
	})
	events, _ := writer.snapshot()
	if events[0].Type != ports.EventOrderUpdate || events[0].Data != "payload" {
		t.Fatalf("unexpected event %+v", events[0])
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("serve returned error: %v", err)
	}
	if got := hub.SubscriberCount(OwnerTopic(ports.EventOrderUpdate, "acct-1")); got != 0 {
		t.Fatalf("subscription must be deregistered on return, got %d", got)
	}
}

func TestServeEmitsHeartbeats(t *testing.T) {
	hub := NewBroadcaster(nil)
	mux := NewMultiplexer(hub, 5*time.Millisecond, nil)
	writer := &collectingWriter{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- mux.Serve(ctx, "acct-1", false, writer)
	}()

	waitFor(t, func() bool {
		_, heartbeats := writer.snapshot()
		return heartbeats >= 2
	})
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("serve returned error: %v", err)
	}
}

func TestServeStopsOnWriteErrorAndCleansUp(t *testing.T) {
	hub := NewBroadcaster(nil)
	mux := NewMultiplexer(hub, time.Minute, nil)
	writer := &collectingWriter{failWrites: true}

	done := make(chan error, 1)
	go func() {
		done <- mux.Serve(context.Background(), "acct-1", true, writer)
	}()

	waitForSubscribers(t, hub, ports.EventOrderUpdate)
	hub.Broadcast(ports.EventOrderUpdate, "boom")

	if err := <-done; err == nil {
		t.Fatal("expected write error to end the stream")
	}
	for _, topic := range Topics("acct-1", true) {
		if got := hub.SubscriberCount(topic); got != 0 {
			t.Fatalf("expected full deregistration of %q, got %d", topic, got)
		}
	}
}

func waitForSubscribers(t *testing.T, hub *Broadcaster, topic string) {
	t.Helper()
	waitFor(t, func() bool {
		return hub.SubscriberCount(topic) == 1
	})
}

func waitFor(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
