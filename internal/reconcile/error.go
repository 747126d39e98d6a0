package reconcile

import (
	"errors"

	"bookstore-be/internal/order"
)

var (
	// ErrStalePaymentState means the provider's view and ours disagree in a
	// way that cannot be applied (paid session for a cancelled order, amount
	// mismatch, cancel for a paid order).
	ErrStalePaymentState = errors.New("payment state is stale or conflicts with order state")
	ErrOrderNotFound     = order.ErrOrderNotFound
	ErrUnknownDecision   = errors.New("unknown decision")
	ErrNotCODOrder       = errors.New("order is not cash on delivery")
)
