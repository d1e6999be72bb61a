package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homemeal/internal/models"
)

func TestDeliveryFee(t *testing.T) {
	tests := []struct {
		mode models.DeliveryMode
		fee  float64
		ok   bool
	}{
		{models.ModeExpress, 5.99, true},
		{models.ModeStandard, 3.99, true},
		{models.ModePlanned, 2.99, true},
		{"pigeon", 0, false},
	}
	for _, tc := range tests {
		fee, ok := DeliveryFee(tc.mode)
		assert.Equal(t, tc.ok, ok)
		assert.Equal(t, tc.fee, fee)
	}
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name      string
		items     []models.OrderItem
		mode      models.DeliveryMode
		discounts float64
		want      models.OrderTotals
	}{
		{
			name:  "single item planned",
			items: []models.OrderItem{{UnitPrice: 4.50, Quantity: 2}},
			mode:  models.ModePlanned,
			want: models.OrderTotals{
				Subtotal:    9.00,
				DeliveryFee: 2.99,
				Taxes:       1.80,
				Total:       13.79,
			},
		},
		{
			name: "mixed basket express",
			items: []models.OrderItem{
				{UnitPrice: 11.90, Quantity: 1},
				{UnitPrice: 3.25, Quantity: 3},
			},
			mode: models.ModeExpress,
			want: models.OrderTotals{
				Subtotal:    21.65,
				DeliveryFee: 5.99,
				Taxes:       4.33,
				Total:       31.97,
			},
		},
		{
			name:      "discount applied after taxes",
			items:     []models.OrderItem{{UnitPrice: 10.00, Quantity: 1}},
			mode:      models.ModeStandard,
			discounts: 5.00,
			want: models.OrderTotals{
				Subtotal:    10.00,
				DeliveryFee: 3.99,
				Taxes:       2.00,
				Discounts:   5.00,
				Total:       10.99,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeTotals(tc.items, tc.mode, tc.discounts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestComputeTotalsErrors(t *testing.T) {
	valid := []models.OrderItem{{UnitPrice: 5, Quantity: 1}}

	tests := []struct {
		name      string
		items     []models.OrderItem
		mode      models.DeliveryMode
		discounts float64
	}{
		{"empty basket", nil, models.ModeStandard, 0},
		{"zero quantity", []models.OrderItem{{UnitPrice: 5, Quantity: 0}}, models.ModeStandard, 0},
		{"negative price", []models.OrderItem{{UnitPrice: -5, Quantity: 1}}, models.ModeStandard, 0},
		{"unknown mode", valid, "teleport", 0},
		{"negative discounts", valid, models.ModeStandard, -1},
		{"discounts exceed value", valid, models.ModeStandard, 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeTotals(tc.items, tc.mode, tc.discounts)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
