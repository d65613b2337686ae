package redisx

import "time"

const (
	// Cached order status: order_status:{order_id} -> status string
	KeyOrderStatus = "order_status:%s"

	// Webhook replay guard: dedup:payment:{external_payment_id}:{external_status}
	KeyPaymentDedup = "dedup:payment:%s:%s"

	// Consumer event dedup: dedup:{service}:{event_id}
	KeyEventDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
