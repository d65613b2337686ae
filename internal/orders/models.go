package orders

import "time"

type Order struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	SellerID   *string   `json:"seller_id,omitempty"`
	Status     Status    `json:"status"`
	TotalCents int64     `json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OrderLine is immutable after creation; UnitPriceCents is the product price
// captured at order time, so later price edits never change historical totals.
type OrderLine struct {
	OrderID        string `json:"order_id"`
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

func (l OrderLine) SubtotalCents() int64 {
	return int64(l.Quantity) * l.UnitPriceCents
}

type ItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type ListFilter struct {
	CustomerID string
	Status     Status
}
