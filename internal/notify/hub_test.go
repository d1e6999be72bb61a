package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homemeal/internal/orders"
)

func TestNotifyUserReachesAllSessions(t *testing.T) {
	hub := NewHub()
	first := hub.Subscribe("u1", "customer")
	second := hub.Subscribe("u1", "customer")
	other := hub.Subscribe("u2", "customer")

	hub.NotifyUser("u1", orders.Notification{Type: orders.EventDelivered, Title: "done"})

	for _, sub := range []*Subscription{first, second} {
		select {
		case ev := <-sub.C:
			assert.Equal(t, orders.EventDelivered, ev.Event)
		default:
			t.Fatalf("subscription %s did not receive the event", sub.ID)
		}
	}

	select {
	case <-other.C:
		t.Fatal("event leaked to another user")
	default:
	}
}

func TestNotifyRoleFansOut(t *testing.T) {
	hub := NewHub()
	driver := hub.Subscribe("d1", "driver")
	customer := hub.Subscribe("u1", "customer")

	hub.NotifyRole("driver", orders.Notification{Type: orders.EventNewOrder})

	select {
	case ev := <-driver.C:
		assert.Equal(t, orders.EventNewOrder, ev.Event)
	default:
		t.Fatal("driver did not receive the role event")
	}

	select {
	case <-customer.C:
		t.Fatal("role event leaked to a customer")
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("u1", "customer")
	require.Equal(t, 1, hub.Len())

	hub.Unsubscribe(sub.ID)
	assert.Equal(t, 0, hub.Len())

	_, open := <-sub.C
	assert.False(t, open)

	// Repeated unsubscribe is a no-op, not a double close.
	hub.Unsubscribe(sub.ID)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("u1", "customer")

	// One past the buffer; the extra send must return immediately.
	for i := 0; i <= subscriberBuffer; i++ {
		hub.NotifyUser("u1", orders.Notification{Type: orders.EventStatusChanged})
	}

	received := 0
	for {
		select {
		case <-sub.C:
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBuffer, received)
}
