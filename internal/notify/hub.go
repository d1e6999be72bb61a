package notify

import (
	"log"
	"sync"

	"github.com/gin-contrib/sse"
	"github.com/google/uuid"

	"homemeal/internal/orders"
)

const subscriberBuffer = 16

// Subscription is one live client stream. Events arrive on C; the owner must
// call Hub.Unsubscribe when the connection closes.
type Subscription struct {
	ID     string
	UserID string
	Role   string
	C      <-chan sse.Event

	ch chan sse.Event
}

// Hub is the notification sink: a registry of live subscriber channels keyed
// by subscription id, fanned out by user id or role. Sends never block; a
// subscriber that cannot keep up loses the event rather than stalling the
// state transition that produced it.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*Subscription)}
}

func (h *Hub) Subscribe(userID, role string) *Subscription {
	ch := make(chan sse.Event, subscriberBuffer)
	sub := &Subscription{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		C:      ch,
		ch:     ch,
	}
	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()
	return sub
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
	h.mu.Unlock()
}

// NotifyUser pushes an event to every live session of one user.
func (h *Hub) NotifyUser(userID string, n orders.Notification) {
	h.publish(func(s *Subscription) bool { return s.UserID == userID }, n)
}

// NotifyRole pushes an event to every live session with the given role.
func (h *Hub) NotifyRole(role string, n orders.Notification) {
	h.publish(func(s *Subscription) bool { return s.Role == role }, n)
}

func (h *Hub) publish(match func(*Subscription) bool, n orders.Notification) {
	ev := sse.Event{Event: n.Type, Data: n}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !match(sub) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			log.Println("[NOTIFY] [WARN] dropping event for slow subscriber:", sub.ID)
		}
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
