package orders

import "errors"

// Every operation fails fast with one of these; handlers map each to a
// distinct HTTP status.
var (
	ErrValidation           = errors.New("invalid input")
	ErrNotFound             = errors.New("order not found")
	ErrForbidden            = errors.New("driver is not assigned to this order")
	ErrInvalidTransition    = errors.New("invalid delivery status transition")
	ErrAlreadyAssigned      = errors.New("order already assigned to another driver")
	ErrAlreadyDelivered     = errors.New("order already delivered")
	ErrCodeMismatch         = errors.New("delivery code does not match")
	ErrCodeAttemptsExceeded = errors.New("too many delivery code attempts")
)
