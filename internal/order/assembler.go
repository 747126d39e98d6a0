package order

import (
	"strings"

	"bookstore-be/internal/cart"

	"github.com/shopspring/decimal"
)

// Assemble builds a pending order from a cart snapshot. Unit prices are
// rounded to whole currency units before summing so the stored lines always
// add up to the stored total.
func Assemble(snap *cart.Snapshot, shippingAddress string) (*Order, error) {
	if snap.IsEmpty() {
		return nil, ErrEmptyOrder
	}
	addr := strings.TrimSpace(shippingAddress)
	if addr == "" {
		return nil, ErrMissingAddress
	}

	o := &Order{
		UserID:          snap.UserID,
		Status:          StatusPending,
		ShippingAddress: addr,
		Items:           make([]Item, 0, len(snap.Lines)),
	}

	total := decimal.Zero
	for _, l := range snap.Lines {
		unit := l.UnitPrice.Round(0)
		if l.Quantity <= 0 || unit.IsNegative() {
			return nil, ErrInvalidLine
		}
		o.Items = append(o.Items, Item{
			ProductID:   l.ProductID,
			ProductName: l.Name,
			Quantity:    l.Quantity,
			UnitAmount:  unit.IntPart(),
		})
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	o.TotalAmount = total.IntPart()

	return o, nil
}
