package inventory

import "errors"

var (
	ErrProductNotFound = errors.New("inventory row not found for product")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrStockInvariant  = errors.New("stock decrement would go negative")
)
