package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockAdjusted      = "StockAdjusted"
	EventPaymentReconciled  = "PaymentReconciled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type LineItem struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type OrderCreatedPayload struct {
	OrderID    string     `json:"order_id"`
	CustomerID string     `json:"customer_id"`
	Lines      []LineItem `json:"lines"`
	TotalCents int64      `json:"total_cents"`
}

type OrderStatusChangedPayload struct {
	OrderID       string `json:"order_id"`
	From          Status `json:"from"`
	To            Status `json:"to"`
	StockRestored bool   `json:"stock_restored"`
}

type StockAdjustedPayload struct {
	ProductID      string `json:"product_id"`
	Delta          int    `json:"delta"`
	QuantityOnHand int    `json:"quantity_on_hand"`
	Reason         string `json:"reason"`
}

type PaymentReconciledPayload struct {
	ExternalPaymentID string `json:"external_payment_id"`
	OrderID           string `json:"order_id,omitempty"`
	ExternalStatus    string `json:"external_status"`
	Outcome           string `json:"outcome"`
}
