package product

import "github.com/shopspring/decimal"

// Product is the slice of the catalog row checkout needs: identity, display
// name and the current price in integer currency units.
type Product struct {
	ID    uint            `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}
