package orders

import (
	"fmt"
	"math"

	"homemeal/internal/models"
)

// TaxRate applies to the item subtotal only; delivery fees are not taxed.
const TaxRate = 0.20

var deliveryFees = map[models.DeliveryMode]float64{
	models.ModeExpress:  5.99,
	models.ModeStandard: 3.99,
	models.ModePlanned:  2.99,
}

// DeliveryFee returns the fixed fee for a delivery mode.
func DeliveryFee(mode models.DeliveryMode) (float64, bool) {
	fee, ok := deliveryFees[mode]
	return fee, ok
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeTotals derives order totals from the line items. Client-supplied
// totals are never trusted; this is the single place the arithmetic lives.
func ComputeTotals(items []models.OrderItem, mode models.DeliveryMode, discounts float64) (models.OrderTotals, error) {
	if len(items) == 0 {
		return models.OrderTotals{}, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	if discounts < 0 {
		return models.OrderTotals{}, fmt.Errorf("%w: discounts must not be negative", ErrValidation)
	}

	fee, ok := DeliveryFee(mode)
	if !ok {
		return models.OrderTotals{}, fmt.Errorf("%w: unknown delivery mode %q", ErrValidation, mode)
	}

	var subtotal float64
	for _, item := range items {
		if item.Quantity < 1 {
			return models.OrderTotals{}, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
		}
		if item.UnitPrice < 0 {
			return models.OrderTotals{}, fmt.Errorf("%w: unit price must not be negative", ErrValidation)
		}
		subtotal += item.UnitPrice * float64(item.Quantity)
	}

	subtotal = roundCents(subtotal)
	taxes := roundCents(subtotal * TaxRate)
	total := roundCents(subtotal + fee + taxes - discounts)
	if total < 0 {
		return models.OrderTotals{}, fmt.Errorf("%w: discounts exceed order value", ErrValidation)
	}

	return models.OrderTotals{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Taxes:       taxes,
		Discounts:   roundCents(discounts),
		Total:       total,
	}, nil
}
