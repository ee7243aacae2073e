// Package bus is the process-local pub/sub broker. It is a notification
// layer, not a durable queue: publish never blocks, and a subscriber whose
// channel is full loses events without affecting its siblings.
package bus

import (
	"sync"

	"github.com/wirebird/wabridge/internal/domain"
)

// DefaultCapacity is the buffer size of a subscriber channel.
const DefaultCapacity = 64

type subscription struct {
	ch     chan domain.Event
	filter map[domain.EventType]bool
}

// Bus fans events out to subscribers with per-subscriber type filters.
// Safe for concurrent publish/subscribe/unsubscribe.
type Bus struct {
	mu   sync.RWMutex
	subs map[<-chan domain.Event]*subscription
}

func New() *Bus {
	return &Bus{subs: make(map[<-chan domain.Event]*subscription)}
}

// Subscribe registers a subscriber for the given event types. An empty
// filter matches every event.
func (b *Bus) Subscribe(eventTypes []domain.EventType) <-chan domain.Event {
	filter := make(map[domain.EventType]bool, len(eventTypes))
	for _, t := range eventTypes {
		filter[t] = true
	}

	sub := &subscription{
		ch:     make(chan domain.Event, DefaultCapacity),
		filter: filter,
	}

	b.mu.Lock()
	b.subs[sub.ch] = sub
	b.mu.Unlock()

	return sub.ch
}

// Unsubscribe closes the subscriber's channel and releases it. Safe to call
// with an unknown or already-removed channel.
func (b *Bus) Unsubscribe(ch <-chan domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[ch]; ok {
		close(sub.ch)
		delete(b.subs, ch)
	}
}

// Publish delivers evt to every matching subscriber. Delivery to a full
// channel is skipped for that subscriber only.
func (b *Bus) Publish(evt domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if len(sub.filter) > 0 && !sub.filter[evt.Type()] {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Subscriber is not keeping up; drop its copy.
		}
	}
}

// SubscriberCount reports the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
