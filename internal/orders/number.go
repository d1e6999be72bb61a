package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const deliveryCodeDigits = 6

// FormatOrderNumber renders the human-readable order number, e.g.
// HM-20260829-042. The sequence resets daily via the counters collection.
func FormatOrderNumber(t time.Time, seq int64) string {
	return fmt.Sprintf("HM-%s-%03d", t.UTC().Format("20060102"), seq)
}

// SequenceKey is the counters-document key for a given day.
func SequenceKey(t time.Time) string {
	return "orders-" + t.UTC().Format("20060102")
}

// NewDeliveryCode generates the numeric code the recipient gives the driver.
// Collisions across orders are acceptable; it only has to be hard to guess
// within one delivery's attempt budget.
func NewDeliveryCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < deliveryCodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate delivery code: %w", err)
	}
	return fmt.Sprintf("%0*d", deliveryCodeDigits, n), nil
}
