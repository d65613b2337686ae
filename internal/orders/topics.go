package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
	TopicStockAdjusted      = "stock.adjusted"
	TopicPaymentReconciled  = "payment.reconciled"
)

// Partition key = entity id, so all events for one order (or one product on
// the stock topic) keep their order.
func PartitionKey(id string) []byte { return []byte(id) }
