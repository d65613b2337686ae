package inventory

import "time"

// StockRecord is the single inventory row for one product. QuantityOnHand
// never goes negative; every mutation is a conditional update enforcing that.
type StockRecord struct {
	ProductID        string    `json:"product_id"`
	QuantityOnHand   int       `json:"quantity_on_hand"`
	ReorderThreshold int       `json:"reorder_threshold"`
	Location         string    `json:"location,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (s StockRecord) Depleted() bool { return s.QuantityOnHand == 0 }

func (s StockRecord) Low() bool {
	return s.QuantityOnHand > 0 && s.QuantityOnHand <= s.ReorderThreshold
}

// Adjustment reason codes, carried on stock events and audit logs.
const (
	ReasonSale       = "sale"
	ReasonPurchase   = "purchase"
	ReasonReturn     = "return"
	ReasonAdjustment = "adjustment"
)
