package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus is the coarse customer-facing status, derived from the
// payment and delivery sub-states.
type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderPreparing      OrderStatus = "preparing"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryPickedUp  DeliveryStatus = "picked_up"
	DeliveryInTransit DeliveryStatus = "in_transit"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

type DeliveryMode string

const (
	ModeStandard DeliveryMode = "standard"
	ModeExpress  DeliveryMode = "express"
	ModePlanned  DeliveryMode = "planned"
)

// OrderItem is a snapshot of a menu item at the time the order was placed.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	UnitPrice float64            `bson:"unitPrice" json:"unitPrice"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	LineTotal float64            `bson:"lineTotal" json:"lineTotal"`
}

type OrderTotals struct {
	Subtotal    float64 `bson:"subtotal" json:"subtotal"`
	DeliveryFee float64 `bson:"deliveryFee" json:"deliveryFee"`
	Taxes       float64 `bson:"taxes" json:"taxes"`
	Discounts   float64 `bson:"discounts" json:"discounts"`
	Total       float64 `bson:"total" json:"total"`
}

type OrderPayment struct {
	Method   string        `bson:"method" json:"method"`
	Status   PaymentStatus `bson:"status" json:"status"`
	Amount   float64       `bson:"amount" json:"amount"`
	Currency string        `bson:"currency" json:"currency"`
	Ref      string        `bson:"ref,omitempty" json:"-"`
	PaidAt   *time.Time    `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
}

type OrderAddress struct {
	Street     string `bson:"street" json:"street"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postalCode" json:"postalCode"`
	Country    string `bson:"country" json:"country"`
	Note       string `bson:"note,omitempty" json:"note,omitempty"`
}

type GeoPoint struct {
	Lat       float64   `bson:"lat" json:"lat"`
	Lng       float64   `bson:"lng" json:"lng"`
	Address   string    `bson:"address,omitempty" json:"address,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TrackingEntry is one event in the delivery audit trail. Entries are only
// ever appended, never rewritten.
type TrackingEntry struct {
	Status    string    `bson:"status" json:"status"`
	Location  *GeoPoint `bson:"location,omitempty" json:"location,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Notes     string    `bson:"notes,omitempty" json:"notes,omitempty"`
}

// OrderDelivery is the fulfilment sub-state of an order. DeliveryCode is the
// shared secret the recipient hands to the driver; it is never serialized to
// JSON and is only surfaced to the order's owner through the tracking endpoint.
type OrderDelivery struct {
	Mode              DeliveryMode        `bson:"mode" json:"mode"`
	Slot              string              `bson:"slot,omitempty" json:"slot,omitempty"`
	ScheduledAt       *time.Time          `bson:"scheduledAt,omitempty" json:"scheduledAt,omitempty"`
	Status            DeliveryStatus      `bson:"status" json:"status"`
	AssignedDriverID  *primitive.ObjectID `bson:"assignedDriverId,omitempty" json:"assignedDriverId,omitempty"`
	DeliveryCode      string              `bson:"deliveryCode" json:"-"`
	CodeAttempts      int                 `bson:"codeAttempts" json:"-"`
	EstimatedDelivery *time.Time          `bson:"estimatedDeliveryTime,omitempty" json:"estimatedDeliveryTime,omitempty"`
	PickupTime        *time.Time          `bson:"pickupTime,omitempty" json:"pickupTime,omitempty"`
	InTransitAt       *time.Time          `bson:"inTransitAt,omitempty" json:"inTransitAt,omitempty"`
	ActualDelivery    *time.Time          `bson:"actualDeliveryTime,omitempty" json:"actualDeliveryTime,omitempty"`
	CurrentLocation   *GeoPoint           `bson:"currentLocation,omitempty" json:"currentLocation,omitempty"`
	TrackingHistory   []TrackingEntry     `bson:"trackingHistory" json:"trackingHistory"`
}

// OrderProgress is a display projection, not authoritative state.
type OrderProgress struct {
	Step                string     `bson:"step" json:"step"`
	CurrentStep         int        `bson:"currentStep" json:"currentStep"`
	TotalSteps          int        `bson:"totalSteps" json:"totalSteps"`
	EstimatedCompletion *time.Time `bson:"estimatedCompletionTime,omitempty" json:"estimatedCompletionTime,omitempty"`
}

// Order defines the persisted order document, the unit of consistency for
// the whole delivery lifecycle.
type Order struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber string             `bson:"orderNumber" json:"orderNumber"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	Items       []OrderItem        `bson:"items" json:"items"`
	Totals      OrderTotals        `bson:"totals" json:"totals"`
	Payment     OrderPayment       `bson:"payment" json:"payment"`
	Address     OrderAddress       `bson:"address" json:"address"`
	Delivery    OrderDelivery      `bson:"delivery" json:"delivery"`
	Status      OrderStatus        `bson:"status" json:"status"`
	Progress    OrderProgress      `bson:"orderProgress" json:"orderProgress"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
