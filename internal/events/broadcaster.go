package events

import (
	"log/slog"
	"sync"
)

// Event is one frame fanned out to subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const defaultSubscriberBuffer = 16

// Broadcaster is a process-local publish/subscribe hub. Topics are addressed
// either as a bare event type or as "eventType:owner"; the two forms are
// independently subscribable. There is no buffering or replay: an event
// reaches only the subscribers attached when it fires.
//
// Broadcaster instances are constructed explicitly and injected; there is no
// package-level hub.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{}
	buffer      int
	log         *slog.Logger
}

// NewBroadcaster constructs an empty hub.
func NewBroadcaster(log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[*Subscription]struct{}),
		buffer:      defaultSubscriberBuffer,
		log:         log,
	}
}

// Subscription is one live registration covering a set of topics. It is owned
// by the connection that created it and must be closed when the connection
// goes away; Close deregisters every topic it was registered under.
type Subscription struct {
	topics []string
	ch     chan Event
	hub    *Broadcaster
	once   sync.Once
}

// Events is the subscriber's inbound channel. It is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close removes the subscription from every topic it was registered under.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
		close(s.ch)
	})
}

// Subscribe registers one subscription across the given topic keys.
func (b *Broadcaster) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		topics: append([]string(nil), topics...),
		ch:     make(chan Event, b.buffer),
		hub:    b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range sub.topics {
		set := b.subscribers[topic]
		if set == nil {
			set = make(map[*Subscription]struct{})
			b.subscribers[topic] = set
		}
		set[sub] = struct{}{}
	}
	return sub
}

func (b *Broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range sub.topics {
		set := b.subscribers[topic]
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subscribers, topic)
		}
	}
}

// Broadcast delivers to every subscriber of the bare event type topic.
func (b *Broadcaster) Broadcast(eventType string, data any) {
	b.dispatch(eventType, Event{Type: eventType, Data: data})
}

// PublishToOwner delivers to subscribers scoped to the owner's topic.
func (b *Broadcaster) PublishToOwner(owner, eventType string, data any) {
	b.dispatch(OwnerTopic(eventType, owner), Event{Type: eventType, Data: data})
}

// dispatch enqueues to each subscriber's channel without blocking the caller.
// A subscriber that cannot keep up loses the event.
func (b *Broadcaster) dispatch(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers[topic] {
		select {
		case sub.ch <- event:
		default:
			b.log.Warn("subscriber buffer full, event dropped", "topic", topic, "event_type", event.Type)
		}
	}
}

// SubscriberCount reports how many subscriptions a topic currently has.
func (b *Broadcaster) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

// OwnerTopic builds the owner-scoped topic key for an event type.
func OwnerTopic(eventType, owner string) string {
	return eventType + ":" + owner
}
