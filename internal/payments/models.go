package payments

import "time"

// Provider-side payment statuses we react to. Anything else is recorded
// verbatim without driving order state.
const (
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusPending   = "pending"
	StatusInProcess = "in_process"
)

// Notification is the stored record of an external payment reference. One row
// per external payment id, ever: a new status for a known id updates the row.
type Notification struct {
	ExternalPaymentID string    `json:"external_payment_id"`
	OrderID           string    `json:"order_id,omitempty"`
	ExternalStatus    string    `json:"external_status"`
	AmountCents       int64     `json:"amount_cents"`
	PaymentMethod     string    `json:"payment_method,omitempty"`
	ReceivedAt        time.Time `json:"received_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type ListFilter struct {
	OrderID        string
	ExternalStatus string
}
