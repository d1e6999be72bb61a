package orders

import (
	"homemeal/internal/models"
)

// deliveryTransitions is the authoritative forward-edge table. Terminal
// states have no entry. The refund path bypasses this table on purpose: a
// refund forces the order into cancelled/failed from anywhere.
var deliveryTransitions = map[models.DeliveryStatus][]models.DeliveryStatus{
	models.DeliveryPending:   {models.DeliveryAssigned, models.DeliveryFailed},
	models.DeliveryAssigned:  {models.DeliveryPickedUp, models.DeliveryFailed},
	models.DeliveryPickedUp:  {models.DeliveryInTransit, models.DeliveryDelivered, models.DeliveryFailed},
	models.DeliveryInTransit: {models.DeliveryDelivered, models.DeliveryFailed},
}

// CanTransition reports whether moving from one delivery status to another
// is a valid forward edge.
func CanTransition(from, to models.DeliveryStatus) bool {
	for _, next := range deliveryTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalDelivery reports whether no further transitions are possible.
func IsTerminalDelivery(s models.DeliveryStatus) bool {
	return s == models.DeliveryDelivered || s == models.DeliveryFailed
}

// OrderStatusFor derives the coarse order status from the payment and
// delivery sub-states.
func OrderStatusFor(p models.PaymentStatus, d models.DeliveryStatus) models.OrderStatus {
	if p == models.PaymentFailed || p == models.PaymentRefunded {
		return models.OrderCancelled
	}
	switch d {
	case models.DeliveryAssigned:
		return models.OrderPreparing
	case models.DeliveryPickedUp, models.DeliveryInTransit:
		return models.OrderOutForDelivery
	case models.DeliveryDelivered:
		return models.OrderDelivered
	case models.DeliveryFailed:
		return models.OrderCancelled
	}
	if p == models.PaymentSucceeded {
		return models.OrderConfirmed
	}
	return models.OrderPending
}

const progressTotalSteps = 5

var progressSteps = map[models.OrderStatus]int{
	models.OrderPending:        1,
	models.OrderConfirmed:      2,
	models.OrderPreparing:      3,
	models.OrderOutForDelivery: 4,
	models.OrderDelivered:      5,
	models.OrderCancelled:      0,
}

// ProgressFor builds the display projection for a coarse status.
func ProgressFor(status models.OrderStatus) models.OrderProgress {
	return models.OrderProgress{
		Step:        string(status),
		CurrentStep: progressSteps[status],
		TotalSteps:  progressTotalSteps,
	}
}
