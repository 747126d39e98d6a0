package order

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusCancelled  Status = "cancelled"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
)

type Order struct {
	ID              uint      `json:"id"`
	UserID          uint      `json:"userId"`
	Status          Status    `json:"status"`
	TotalAmount     int64     `json:"totalAmount"`
	ShippingAddress string    `json:"shippingAddress"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Items           []Item    `json:"items,omitempty"`
}

// Item is an order line. Name and unit amount are copied at creation and
// never follow later catalog changes.
type Item struct {
	ID          uint   `json:"id"`
	OrderID     uint   `json:"orderId"`
	ProductID   uint   `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitAmount  int64  `json:"unitAmount"`
}

func (i Item) Subtotal() int64 {
	return i.UnitAmount * int64(i.Quantity)
}
