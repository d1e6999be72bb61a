package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"homemeal/internal/models"
)

func TestCanTransition(t *testing.T) {
	all := []models.DeliveryStatus{
		models.DeliveryPending,
		models.DeliveryAssigned,
		models.DeliveryPickedUp,
		models.DeliveryInTransit,
		models.DeliveryDelivered,
		models.DeliveryFailed,
	}

	allowed := map[models.DeliveryStatus]map[models.DeliveryStatus]bool{
		models.DeliveryPending:   {models.DeliveryAssigned: true, models.DeliveryFailed: true},
		models.DeliveryAssigned:  {models.DeliveryPickedUp: true, models.DeliveryFailed: true},
		models.DeliveryPickedUp:  {models.DeliveryInTransit: true, models.DeliveryDelivered: true, models.DeliveryFailed: true},
		models.DeliveryInTransit: {models.DeliveryDelivered: true, models.DeliveryFailed: true},
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestIsTerminalDelivery(t *testing.T) {
	assert.True(t, IsTerminalDelivery(models.DeliveryDelivered))
	assert.True(t, IsTerminalDelivery(models.DeliveryFailed))
	assert.False(t, IsTerminalDelivery(models.DeliveryPending))
	assert.False(t, IsTerminalDelivery(models.DeliveryInTransit))
}

func TestOrderStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		payment  models.PaymentStatus
		delivery models.DeliveryStatus
		want     models.OrderStatus
	}{
		{"awaiting payment", models.PaymentPending, models.DeliveryPending, models.OrderPending},
		{"paid, awaiting driver", models.PaymentSucceeded, models.DeliveryPending, models.OrderConfirmed},
		{"driver assigned", models.PaymentSucceeded, models.DeliveryAssigned, models.OrderPreparing},
		{"picked up", models.PaymentSucceeded, models.DeliveryPickedUp, models.OrderOutForDelivery},
		{"in transit", models.PaymentSucceeded, models.DeliveryInTransit, models.OrderOutForDelivery},
		{"delivered", models.PaymentSucceeded, models.DeliveryDelivered, models.OrderDelivered},
		{"delivery failed", models.PaymentSucceeded, models.DeliveryFailed, models.OrderCancelled},
		{"payment failed", models.PaymentFailed, models.DeliveryPending, models.OrderCancelled},
		{"refund wins over transit", models.PaymentRefunded, models.DeliveryInTransit, models.OrderCancelled},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, OrderStatusFor(tc.payment, tc.delivery))
		})
	}
}

func TestProgressFor(t *testing.T) {
	tests := []struct {
		status models.OrderStatus
		step   int
	}{
		{models.OrderPending, 1},
		{models.OrderConfirmed, 2},
		{models.OrderPreparing, 3},
		{models.OrderOutForDelivery, 4},
		{models.OrderDelivered, 5},
		{models.OrderCancelled, 0},
	}

	for _, tc := range tests {
		p := ProgressFor(tc.status)
		assert.Equal(t, string(tc.status), p.Step)
		assert.Equal(t, tc.step, p.CurrentStep)
		assert.Equal(t, progressTotalSteps, p.TotalSteps)
	}
}
