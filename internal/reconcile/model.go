package reconcile

import "bookstore-be/internal/order"

type Decision string

const (
	DecisionConfirm Decision = "confirm"
	DecisionReject  Decision = "reject"
)

func (d Decision) Valid() bool {
	return d == DecisionConfirm || d == DecisionReject
}

// Outcome reports what a reconciliation leg did.
type Outcome struct {
	OrderID uint
	Status  order.Status
	// Replayed is set when the transition had already been applied.
	Replayed bool
	// Superseded is set when a cancel arrives for a session that is no
	// longer the order's current one.
	Superseded bool
	// Duplicate is set when a webhook event was already processed.
	Duplicate bool
}
