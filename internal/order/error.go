package order

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order has no items")
	ErrInvalidLine       = errors.New("order line has invalid quantity or price")
	ErrMissingAddress    = errors.New("shipping address is required")
	ErrInvalidTransition = errors.New("invalid order status transition")
)
