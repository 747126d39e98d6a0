package checkout

import (
	"errors"
	"fmt"
	"strings"

	"bookstore-be/internal/inventory"
)

var (
	ErrEmptyCart                  = errors.New("cart is empty")
	ErrInsufficientStock          = errors.New("insufficient stock")
	ErrMissingShippingAddress     = errors.New("shipping address is required")
	ErrProductNotFound            = errors.New("product not found")
	ErrPaymentProviderUnavailable = errors.New("payment provider unavailable")
	ErrCheckoutTimeout            = errors.New("checkout timed out")
	ErrInvalidMethod              = errors.New("invalid payment method")
	ErrForbidden                  = errors.New("order belongs to another user")
	ErrOrderNotPayable            = errors.New("order is not awaiting card payment")
)

// InsufficientStockError lists every line that could not be satisfied.
type InsufficientStockError struct {
	Shortages []inventory.Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("product %d: requested %d, available %d", s.ProductID, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
