package checkout

import (
	"bookstore-be/internal/order"
	"bookstore-be/internal/payment"
)

// Stage is how far a checkout attempt got before it committed or aborted.
type Stage int

const (
	StageStart Stage = iota
	StageStockValidated
	StageOrderCreated
	StageInventoryReserved
	StageCartCleared
	StagePaymentInitiated
	StageCommitted
	StageAborted
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageStockValidated:
		return "stock_validated"
	case StageOrderCreated:
		return "order_created"
	case StageInventoryReserved:
		return "inventory_reserved"
	case StageCartCleared:
		return "cart_cleared"
	case StagePaymentInitiated:
		return "payment_initiated"
	case StageCommitted:
		return "committed"
	case StageAborted:
		return "aborted"
	}
	return "unknown"
}

type Request struct {
	UserID uint
	Method payment.Method
	// ShippingAddress overrides the profile address when set and non-blank.
	ShippingAddress *string
}

type Result struct {
	OrderID     uint           `json:"orderId"`
	Status      order.Status   `json:"status"`
	Method      payment.Method `json:"method"`
	TotalAmount int64          `json:"totalAmount"`
	SessionID   string         `json:"-"`
	RedirectURL string         `json:"redirectUrl,omitempty"`
}
