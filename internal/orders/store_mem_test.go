package orders

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"homemeal/internal/models"
)

// memStore reproduces the store contract in memory, including the
// conditional-write semantics the engine relies on. Every mutation holds the
// lock for its whole check-and-set, mirroring Mongo's per-document atomicity.
type memStore struct {
	mu     sync.Mutex
	orders map[primitive.ObjectID]*models.Order
	seqs   map[string]int64
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[primitive.ObjectID]*models.Order),
		seqs:   make(map[string]int64),
	}
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	c.Delivery.TrackingHistory = append([]models.TrackingEntry(nil), o.Delivery.TrackingHistory...)
	if o.Delivery.AssignedDriverID != nil {
		id := *o.Delivery.AssignedDriverID
		c.Delivery.AssignedDriverID = &id
	}
	if o.Delivery.CurrentLocation != nil {
		loc := *o.Delivery.CurrentLocation
		c.Delivery.CurrentLocation = &loc
	}
	return &c
}

func (s *memStore) Insert(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *memStore) Get(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *memStore) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return s.filter(func(o *models.Order) bool { return o.UserID == userID }), nil
}

func (s *memStore) ListAvailable(_ context.Context) ([]models.Order, error) {
	return s.filter(func(o *models.Order) bool {
		return o.Status == models.OrderConfirmed &&
			o.Payment.Status == models.PaymentSucceeded &&
			o.Delivery.Status == models.DeliveryPending &&
			o.Delivery.AssignedDriverID == nil
	}), nil
}

func (s *memStore) ListActiveByDriver(_ context.Context, driverID primitive.ObjectID) ([]models.Order, error) {
	return s.filter(func(o *models.Order) bool {
		if o.Delivery.AssignedDriverID == nil || *o.Delivery.AssignedDriverID != driverID {
			return false
		}
		switch o.Delivery.Status {
		case models.DeliveryAssigned, models.DeliveryPickedUp, models.DeliveryInTransit:
			return true
		}
		return false
	}), nil
}

func (s *memStore) filter(keep func(*models.Order) bool) []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	return out
}

func (s *memStore) MarkPaid(_ context.Context, id primitive.ObjectID, ref string, now time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Payment.Status != models.PaymentPending {
		return nil, ErrNotFound
	}
	o.Payment.Status = models.PaymentSucceeded
	o.Payment.PaidAt = &now
	o.Payment.Ref = ref
	o.Status = OrderStatusFor(models.PaymentSucceeded, models.DeliveryPending)
	o.Progress = ProgressFor(o.Status)
	o.UpdatedAt = now
	return cloneOrder(o), nil
}

func (s *memStore) MarkPaymentFailed(_ context.Context, id primitive.ObjectID, ref string, now time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Payment.Status != models.PaymentPending {
		return nil, ErrNotFound
	}
	o.Payment.Status = models.PaymentFailed
	o.Payment.Ref = ref
	o.Status = models.OrderCancelled
	o.Delivery.Status = models.DeliveryFailed
	o.Progress = ProgressFor(models.OrderCancelled)
	o.UpdatedAt = now
	return cloneOrder(o), nil
}

func (s *memStore) MarkRefunded(_ context.Context, id primitive.ObjectID, ref string, now time.Time, entry models.TrackingEntry) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Payment.Status != models.PaymentPending && o.Payment.Status != models.PaymentSucceeded {
		return nil, ErrNotFound
	}
	o.Payment.Status = models.PaymentRefunded
	o.Payment.Ref = ref
	o.Status = models.OrderCancelled
	o.Delivery.Status = models.DeliveryFailed
	o.Progress = ProgressFor(models.OrderCancelled)
	o.Delivery.TrackingHistory = append(o.Delivery.TrackingHistory, entry)
	o.UpdatedAt = now
	return cloneOrder(o), nil
}

func (s *memStore) Assign(_ context.Context, id, driverID primitive.ObjectID, now time.Time, entry models.TrackingEntry) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok ||
		o.Payment.Status != models.PaymentSucceeded ||
		o.Delivery.Status != models.DeliveryPending ||
		o.Delivery.AssignedDriverID != nil {
		return nil, ErrNotFound
	}
	d := driverID
	o.Delivery.AssignedDriverID = &d
	o.Delivery.Status = models.DeliveryAssigned
	o.Status = OrderStatusFor(models.PaymentSucceeded, models.DeliveryAssigned)
	o.Progress = ProgressFor(o.Status)
	o.Delivery.TrackingHistory = append(o.Delivery.TrackingHistory, entry)
	o.UpdatedAt = now
	return cloneOrder(o), nil
}

func (s *memStore) UpdateDeliveryStatus(_ context.Context, id, driverID primitive.ObjectID, from, to models.DeliveryStatus, now time.Time, entry models.TrackingEntry) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok ||
		o.Delivery.AssignedDriverID == nil || *o.Delivery.AssignedDriverID != driverID ||
		o.Delivery.Status != from {
		return nil, ErrNotFound
	}
	o.Delivery.Status = to
	o.Status = OrderStatusFor(models.PaymentSucceeded, to)
	o.Progress = ProgressFor(o.Status)
	switch to {
	case models.DeliveryPickedUp:
		o.Delivery.PickupTime = &now
	case models.DeliveryInTransit:
		o.Delivery.InTransitAt = &now
	}
	o.Delivery.TrackingHistory = append(o.Delivery.TrackingHistory, entry)
	o.UpdatedAt = now
	return cloneOrder(o), nil
}

func (s *memStore) CompleteDelivery(_ context.Context, id, driverID primitive.ObjectID, now time.Time, entry models.TrackingEntry) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok ||
		o.Delivery.AssignedDriverID == nil || *o.Delivery.AssignedDriverID != driverID ||
		o.Delivery.Status == models.DeliveryDelivered ||
		o.Delivery.Status == models.DeliveryFailed {
		return nil, ErrNotFound
	}
	o.Delivery.Status = models.DeliveryDelivered
	o.Delivery.ActualDelivery = &now
	o.Status = models.OrderDelivered
	o.Progress = ProgressFor(models.OrderDelivered)
	o.Delivery.TrackingHistory = append(o.Delivery.TrackingHistory, entry)
	o.UpdatedAt = now
	return cloneOrder(o), nil
}

func (s *memStore) SetCurrentLocation(_ context.Context, id, driverID primitive.ObjectID, loc models.GeoPoint, withHistory bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Delivery.AssignedDriverID == nil || *o.Delivery.AssignedDriverID != driverID {
		return nil
	}
	switch o.Delivery.Status {
	case models.DeliveryAssigned, models.DeliveryPickedUp, models.DeliveryInTransit:
	default:
		return nil
	}
	l := loc
	o.Delivery.CurrentLocation = &l
	if withHistory {
		o.Delivery.TrackingHistory = append(o.Delivery.TrackingHistory, models.TrackingEntry{
			Status:    "location_update",
			Location:  &l,
			Timestamp: loc.UpdatedAt,
		})
	}
	return nil
}

func (s *memStore) IncCodeAttempts(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		o.Delivery.CodeAttempts++
	}
	return nil
}

func (s *memStore) NextSequence(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[key]++
	return s.seqs[key], nil
}

type memUsers struct {
	mu           sync.Mutex
	locations    map[primitive.ObjectID]models.GeoPoint
	availability map[primitive.ObjectID]bool
	deliveries   map[primitive.ObjectID]int
}

func newMemUsers() *memUsers {
	return &memUsers{
		locations:    make(map[primitive.ObjectID]models.GeoPoint),
		availability: make(map[primitive.ObjectID]bool),
		deliveries:   make(map[primitive.ObjectID]int),
	}
}

func (u *memUsers) SetLocation(_ context.Context, id primitive.ObjectID, loc models.GeoPoint) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.locations[id] = loc
	return nil
}

func (u *memUsers) SetAvailability(_ context.Context, id primitive.ObjectID, available bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.availability[id] = available
	return nil
}

func (u *memUsers) AvailableDriverIDs(_ context.Context) ([]primitive.ObjectID, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var ids []primitive.ObjectID
	for id, available := range u.availability {
		if available {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (u *memUsers) IncDeliveries(_ context.Context, id primitive.ObjectID) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deliveries[id]++
	return nil
}

type recordedEvent struct {
	Target string
	Notification
}

// memNotifier records fan-out calls so tests can assert on side effects.
type memNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *memNotifier) NotifyUser(userID string, ev Notification) {
	n.record("user:"+userID, ev)
}

func (n *memNotifier) NotifyRole(role string, ev Notification) {
	n.record("role:"+role, ev)
}

func (n *memNotifier) record(target string, ev Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Target: target, Notification: ev})
}

func (n *memNotifier) byType(eventType string) []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []recordedEvent
	for _, ev := range n.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}
