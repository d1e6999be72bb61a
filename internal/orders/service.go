package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"homemeal/internal/models"
)

const (
	maxCodeAttempts      = 5
	locationPingInterval = 15 * time.Second
)

// Notification is the payload handed to the sink. Delivery of the event is
// best effort; a failed notification never rolls back a state change.
type Notification struct {
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

const (
	EventNewOrder       = "new_order"
	EventDriverAssigned = "driver_assigned"
	EventStatusChanged  = "status_changed"
	EventDelivered      = "delivered"
)

type Notifier interface {
	NotifyUser(userID string, n Notification)
	NotifyRole(role string, n Notification)
}

// Service is the order lifecycle engine. It owns the state machine and every
// mutation of the order document; handlers only translate HTTP to calls here.
type Service struct {
	store  Store
	users  Users
	notify Notifier
}

func NewService(store Store, users Users, notify Notifier) *Service {
	return &Service{store: store, users: users, notify: notify}
}

type CreateInput struct {
	UserID        primitive.ObjectID
	Items         []models.OrderItem
	Address       models.OrderAddress
	Mode          models.DeliveryMode
	Slot          string
	ScheduledAt   *time.Time
	PaymentMethod string
	Discounts     float64
}

// Create builds and persists a new order in the pending state. Totals are
// computed server-side and the delivery code is generated before the order
// can ever reach a driver. No notification goes out yet: drivers only hear
// about orders once payment succeeds.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Order, error) {
	if err := validateAddress(in.Address); err != nil {
		return nil, err
	}
	if in.PaymentMethod != "card" && in.PaymentMethod != "cash" {
		return nil, fmt.Errorf("%w: invalid payment method", ErrValidation)
	}
	if in.Mode == models.ModePlanned && in.ScheduledAt == nil {
		return nil, fmt.Errorf("%w: planned delivery requires a scheduled time", ErrValidation)
	}

	items := make([]models.OrderItem, len(in.Items))
	for i, item := range in.Items {
		item.LineTotal = roundCents(item.UnitPrice * float64(item.Quantity))
		items[i] = item
	}

	totals, err := ComputeTotals(items, in.Mode, in.Discounts)
	if err != nil {
		return nil, err
	}

	code, err := NewDeliveryCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	seq, err := s.store.NextSequence(ctx, SequenceKey(now))
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber: FormatOrderNumber(now, seq),
		UserID:      in.UserID,
		Items:       items,
		Totals:      totals,
		Payment: models.OrderPayment{
			Method:   in.PaymentMethod,
			Status:   models.PaymentPending,
			Amount:   totals.Total,
			Currency: "EUR",
		},
		Address: in.Address,
		Delivery: models.OrderDelivery{
			Mode:            in.Mode,
			Slot:            in.Slot,
			ScheduledAt:     in.ScheduledAt,
			Status:          models.DeliveryPending,
			DeliveryCode:    code,
			TrackingHistory: []models.TrackingEntry{},
		},
		Status:    models.OrderPending,
		Progress:  ProgressFor(models.OrderPending),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Insert(ctx, order); err != nil {
		return nil, err
	}
	log.Println("[ORDER] [INFO] order created:", order.OrderNumber)
	return order, nil
}

// OnPaymentOutcome applies an asynchronous payment result. Re-applying the
// same outcome is a no-op: the conditional store write matches nothing the
// second time, and no duplicate notification is sent.
func (s *Service) OnPaymentOutcome(ctx context.Context, orderID primitive.ObjectID, outcome models.PaymentStatus, ref string) (*models.Order, error) {
	now := time.Now()

	var updated *models.Order
	var err error
	switch outcome {
	case models.PaymentSucceeded:
		updated, err = s.store.MarkPaid(ctx, orderID, ref, now)
	case models.PaymentFailed:
		updated, err = s.store.MarkPaymentFailed(ctx, orderID, ref, now)
	case models.PaymentRefunded:
		updated, err = s.store.MarkRefunded(ctx, orderID, ref, now, models.TrackingEntry{
			Status:    "cancelled",
			Timestamp: now,
			Notes:     "order refunded",
		})
	default:
		return nil, fmt.Errorf("%w: unknown payment outcome %q", ErrValidation, outcome)
	}

	if errors.Is(err, ErrNotFound) {
		// Either the order is missing or the outcome was already applied.
		current, getErr := s.store.Get(ctx, orderID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Payment.Status == outcome {
			return current, nil
		}
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}

	switch outcome {
	case models.PaymentSucceeded:
		s.notifyAvailableDrivers(ctx, Notification{
			Type:    EventNewOrder,
			Title:   "New order available",
			Message: fmt.Sprintf("Order %s is ready for pickup", updated.OrderNumber),
			Data:    orderData(updated),
		})
		s.notify.NotifyUser(updated.UserID.Hex(), Notification{
			Type:    EventStatusChanged,
			Title:   "Payment received",
			Message: fmt.Sprintf("Order %s is confirmed", updated.OrderNumber),
			Data:    orderData(updated),
		})
	case models.PaymentFailed, models.PaymentRefunded:
		s.notify.NotifyUser(updated.UserID.Hex(), Notification{
			Type:    EventStatusChanged,
			Title:   "Order cancelled",
			Message: fmt.Sprintf("Order %s was cancelled", updated.OrderNumber),
			Data:    orderData(updated),
		})
		if outcome == models.PaymentRefunded {
			s.notify.NotifyRole(models.RoleAdmin, Notification{
				Type:    EventStatusChanged,
				Title:   "Order refunded",
				Message: fmt.Sprintf("Order %s was refunded and cancelled", updated.OrderNumber),
				Data:    orderData(updated),
			})
		}
	}
	return updated, nil
}

// notifyAvailableDrivers fans an event out to every driver whose
// availability flag is currently set. Drivers who toggled themselves off
// hear nothing; the failure mode is a skipped notification, never a failed
// state change.
func (s *Service) notifyAvailableDrivers(ctx context.Context, n Notification) {
	ids, err := s.users.AvailableDriverIDs(ctx)
	if err != nil {
		log.Println("[DISPATCH] [ERROR] failed to resolve available drivers:", err)
		return
	}
	for _, id := range ids {
		s.notify.NotifyUser(id.Hex(), n)
	}
}

// Accept claims an order for a driver. The store write is conditioned on the
// order still being unassigned, so concurrent accepts cannot both win.
func (s *Service) Accept(ctx context.Context, orderID, driverID primitive.ObjectID) (*models.Order, error) {
	now := time.Now()
	updated, err := s.store.Assign(ctx, orderID, driverID, now, models.TrackingEntry{
		Status:    string(models.DeliveryAssigned),
		Timestamp: now,
		Notes:     "driver accepted the order",
	})
	if errors.Is(err, ErrNotFound) {
		current, getErr := s.store.Get(ctx, orderID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Delivery.AssignedDriverID != nil {
			return nil, ErrAlreadyAssigned
		}
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}

	log.Println("[DISPATCH] [INFO] order assigned:", updated.OrderNumber, "driver:", driverID.Hex())
	s.notify.NotifyUser(updated.UserID.Hex(), Notification{
		Type:    EventDriverAssigned,
		Title:   "Driver assigned",
		Message: fmt.Sprintf("A driver is preparing order %s", updated.OrderNumber),
		Data:    orderData(updated),
	})
	return updated, nil
}

// AdvanceStatus moves the delivery forward one state. Only the assigned
// driver may do this, and delivered is unreachable here: it requires the
// delivery code via ValidateDelivery.
func (s *Service) AdvanceStatus(ctx context.Context, orderID, driverID primitive.ObjectID, to models.DeliveryStatus, notes string) (*models.Order, error) {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Delivery.AssignedDriverID == nil || *order.Delivery.AssignedDriverID != driverID {
		return nil, ErrForbidden
	}
	if to == models.DeliveryDelivered {
		return nil, ErrInvalidTransition
	}
	if !CanTransition(order.Delivery.Status, to) {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	updated, err := s.store.UpdateDeliveryStatus(ctx, orderID, driverID, order.Delivery.Status, to, now, models.TrackingEntry{
		Status:    string(to),
		Timestamp: now,
		Notes:     notes,
	})
	if errors.Is(err, ErrNotFound) {
		// Lost a race with another mutation of the same order.
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}

	s.notify.NotifyUser(updated.UserID.Hex(), Notification{
		Type:    EventStatusChanged,
		Title:   "Delivery update",
		Message: fmt.Sprintf("Order %s is now %s", updated.OrderNumber, to),
		Data:    orderData(updated),
	})
	return updated, nil
}

// UpdateDriverLocation always refreshes the driver profile. When the driver
// is on an active delivery it also refreshes the order's current location;
// the tracking-history ping is throttled since it is telemetry, not audit.
func (s *Service) UpdateDriverLocation(ctx context.Context, driverID primitive.ObjectID, lat, lng float64, address string, orderID *primitive.ObjectID) error {
	loc := models.GeoPoint{Lat: lat, Lng: lng, Address: address, UpdatedAt: time.Now()}
	if err := s.users.SetLocation(ctx, driverID, loc); err != nil {
		return err
	}
	if orderID == nil {
		return nil
	}

	order, err := s.store.Get(ctx, *orderID)
	if err != nil {
		return err
	}
	if order.Delivery.AssignedDriverID == nil || *order.Delivery.AssignedDriverID != driverID {
		return ErrForbidden
	}

	withHistory := order.Delivery.CurrentLocation == nil ||
		loc.UpdatedAt.Sub(order.Delivery.CurrentLocation.UpdatedAt) >= locationPingInterval
	return s.store.SetCurrentLocation(ctx, *orderID, driverID, loc, withHistory)
}

// ValidateDelivery finalizes the order when the driver submits the code the
// recipient provided. Mismatches are counted on the order document; the
// attempt budget keeps the code from being brute-forced at the door.
func (s *Service) ValidateDelivery(ctx context.Context, orderID, driverID primitive.ObjectID, submittedCode string) (*models.Order, error) {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Delivery.AssignedDriverID == nil || *order.Delivery.AssignedDriverID != driverID {
		return nil, ErrForbidden
	}
	if order.Delivery.Status == models.DeliveryDelivered {
		return nil, ErrAlreadyDelivered
	}
	if order.Delivery.Status == models.DeliveryFailed {
		return nil, ErrInvalidTransition
	}
	if order.Delivery.CodeAttempts >= maxCodeAttempts {
		return nil, ErrCodeAttemptsExceeded
	}
	if strings.TrimSpace(submittedCode) != order.Delivery.DeliveryCode {
		if err := s.store.IncCodeAttempts(ctx, orderID); err != nil {
			log.Println("[ORDER] [ERROR] failed to count code attempt:", err)
		}
		return nil, ErrCodeMismatch
	}

	now := time.Now()
	updated, err := s.store.CompleteDelivery(ctx, orderID, driverID, now, models.TrackingEntry{
		Status:    string(models.DeliveryDelivered),
		Timestamp: now,
		Notes:     "delivery code validated",
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrAlreadyDelivered
	}
	if err != nil {
		return nil, err
	}

	if err := s.users.IncDeliveries(ctx, driverID); err != nil {
		log.Println("[ORDER] [ERROR] failed to increment driver deliveries:", err)
	}

	log.Println("[ORDER] [INFO] order delivered:", updated.OrderNumber)
	s.notify.NotifyUser(updated.UserID.Hex(), Notification{
		Type:    EventDelivered,
		Title:   "Order delivered",
		Message: fmt.Sprintf("Order %s has been delivered", updated.OrderNumber),
		Data:    orderData(updated),
	})
	return updated, nil
}

// SetDriverAvailability toggles whether the driver appears able to take work.
func (s *Service) SetDriverAvailability(ctx context.Context, driverID primitive.ObjectID, available bool) error {
	return s.users.SetAvailability(ctx, driverID, available)
}

func validateAddress(a models.OrderAddress) error {
	if strings.TrimSpace(a.Street) == "" ||
		strings.TrimSpace(a.City) == "" ||
		strings.TrimSpace(a.PostalCode) == "" ||
		strings.TrimSpace(a.Country) == "" {
		return fmt.Errorf("%w: street, city, postalCode and country are required", ErrValidation)
	}
	return nil
}

func orderData(o *models.Order) map[string]any {
	return map[string]any{
		"orderId":     o.ID.Hex(),
		"orderNumber": o.OrderNumber,
		"status":      o.Status,
	}
}
