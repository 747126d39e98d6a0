package inventory

// Item is one product/quantity pair to be reserved.
type Item struct {
	ProductID uint
	Quantity  int
}

// Reservation is a confirmed intent to decrement stock. It is only valid
// inside the transaction that produced it, while the row lock is held.
type Reservation struct {
	ProductID uint
	Quantity  int
}

// Shortage describes a line that cannot be satisfied from current stock.
type Shortage struct {
	ProductID uint `json:"productId"`
	Requested int  `json:"requested"`
	Available int  `json:"available"`
}
