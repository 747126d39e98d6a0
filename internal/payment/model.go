package payment

import (
	"encoding/json"
	"time"
)

type Method string

const (
	MethodCard Method = "card"
	MethodCOD  Method = "cod"
)

func (m Method) Valid() bool {
	return m == MethodCard || m == MethodCOD
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Payment is the single payment record attached to an order.
type Payment struct {
	ID                uint
	OrderID           uint
	UserID            uint
	Method            Method
	Amount            int64
	Status            Status
	ProviderSessionID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Correlation ties a provider session back to our order and buyer. It is
// round-tripped through session metadata.
type Correlation struct {
	OrderID uint
	UserID  uint
}

type Line struct {
	Name       string
	UnitAmount int64
	Quantity   int
}

type SessionRequest struct {
	Correlation Correlation
	Lines       []Line
	Currency    string
}

type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionComplete SessionStatus = "complete"
	SessionExpired  SessionStatus = "expired"
)

type PaymentState string

const (
	PaymentPaid   PaymentState = "paid"
	PaymentUnpaid PaymentState = "unpaid"
)

// Session is the provider's view of a hosted payment page.
type Session struct {
	ID            string
	URL           string
	Status        SessionStatus
	PaymentStatus PaymentState
	AmountTotal   int64
	Correlation   Correlation
}

func (s *Session) Paid() bool {
	return s.PaymentStatus == PaymentPaid
}

const (
	EventSessionCompleted = "checkout.session.completed"
	EventSessionExpired   = "checkout.session.expired"
)

// WebhookEvent is the decoded envelope of a provider notification.
type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
	Payload   json.RawMessage
}
