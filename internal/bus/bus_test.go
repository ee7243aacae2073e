package bus

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirebird/wabridge/internal/domain"
)

func receivedEvent(id string) domain.Event {
	return domain.MessageReceivedEvent{
		Message:   &domain.Message{ID: id},
		EventTime: time.Now(),
	}
}

func TestSubscribeReceivesPublished(t *testing.T) {
	b := New()
	ch := b.Subscribe([]domain.EventType{domain.EventTypeMessageReceived})
	defer b.Unsubscribe(ch)

	b.Publish(receivedEvent("M1"))

	select {
	case evt := <-ch:
		assert.Equal(t, domain.EventTypeMessageReceived, evt.Type())
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

// A subscriber filtered on {T1, T2} never sees a third type.
func TestFilterSoundness(t *testing.T) {
	b := New()
	ch := b.Subscribe([]domain.EventType{
		domain.EventTypeMessageSent,
		domain.EventTypeConnectionStatus,
	})
	defer b.Unsubscribe(ch)

	b.Publish(receivedEvent("M1"))
	b.Publish(domain.MessageSentEvent{Message: &domain.Message{ID: "M2"}, EventTime: time.Now()})
	b.Publish(domain.ConnectionStatusEvent{Connected: true, EventTime: time.Now()})
	b.Publish(receivedEvent("M3"))

	var got []domain.EventType
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case evt := <-ch:
			got = append(got, evt.Type())
		case <-timeout:
			t.Fatal("timed out waiting for filtered events")
		}
	}

	assert.Equal(t, []domain.EventType{domain.EventTypeMessageSent, domain.EventTypeConnectionStatus}, got)
	select {
	case evt := <-ch:
		t.Fatalf("unexpected extra event %v", evt.Type())
	default:
	}
}

func TestEmptyFilterMatchesEverything(t *testing.T) {
	b := New()
	ch := b.Subscribe(nil)
	defer b.Unsubscribe(ch)

	b.Publish(receivedEvent("M1"))
	b.Publish(domain.ConnectionStatusEvent{Connected: false, EventTime: time.Now()})

	require.Equal(t, domain.EventTypeMessageReceived, (<-ch).Type())
	require.Equal(t, domain.EventTypeConnectionStatus, (<-ch).Type())
}

// A full subscriber drops only its own events; siblings see everything,
// in publish order.
func TestSlowSubscriberIsolation(t *testing.T) {
	const total = 10000

	b := New()
	slow := b.Subscribe(nil) // never read
	fast := b.Subscribe(nil)
	defer b.Unsubscribe(slow)
	defer b.Unsubscribe(fast)

	// Drain fast inline after every publish so it never overfills; slow is
	// never read and saturates at its buffer capacity.
	for i := 0; i < total; i++ {
		b.Publish(receivedEvent(fmt.Sprintf("M%06d", i)))

		select {
		case evt := <-fast:
			mr := evt.(domain.MessageReceivedEvent)
			require.Equal(t, fmt.Sprintf("M%06d", i), mr.Message.ID, "out of order at %d", i)
		default:
			t.Fatalf("fast subscriber missed event %d", i)
		}
	}

	// The slow subscriber holds at most its buffer capacity.
	assert.LessOrEqual(t, len(slow), DefaultCapacity)
	assert.Equal(t, DefaultCapacity, len(slow))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch := b.Subscribe(nil)

	b.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, b.SubscriberCount())

	// Second unsubscribe is a no-op.
	b.Unsubscribe(ch)
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	b := New()
	stop := make(chan struct{})

	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				b.Publish(receivedEvent("X"))
			}
		}
	}()

	for i := 0; i < 100; i++ {
		ch := b.Subscribe([]domain.EventType{domain.EventTypeMessageReceived})
		b.Unsubscribe(ch)
	}
	close(stop)
}
