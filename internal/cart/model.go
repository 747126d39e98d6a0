package cart

import (
	"github.com/shopspring/decimal"
)

// Line is a cart item joined with the product's authoritative price and name
// as of the read.
type Line struct {
	ProductID uint
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Snapshot is a consistent, locked read of a user's active cart.
type Snapshot struct {
	CartID uint
	UserID uint
	Lines  []Line
}

func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Lines) == 0
}
