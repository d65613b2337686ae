package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/amoblar/backoffice/internal/kafka"
	"github.com/amoblar/backoffice/internal/orders"
	"github.com/amoblar/backoffice/internal/redisx"
)

// Outcomes of handling one notification.
const (
	OutcomeDuplicate = "duplicate"        // identical id+status already processed
	OutcomeCompleted = "order_completed"  // approved payment completed the order
	OutcomeCancelled = "order_cancelled"  // rejected payment cancelled a pending order
	OutcomeNoop      = "noop"             // order already in the state the payment implies
	OutcomeConflict  = "conflict"         // approved payment for a cancelled order
	OutcomeUnmatched = "unmatched"        // no order to reconcile against
	OutcomeRecorded  = "recorded"         // stored; status drives no transition
)

type Result struct {
	Outcome string `json:"outcome"`
	OrderID string `json:"order_id,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type NotificationStore interface {
	// Upsert returns stored=false when an identical notification (same
	// external payment id and status) was already recorded.
	Upsert(ctx context.Context, n Notification) (stored bool, err error)
}

type OrderTransitioner interface {
	GetStatus(ctx context.Context, orderID string) (orders.Status, error)
	Transition(ctx context.Context, orderID string, target orders.Status) (orders.Order, error)
}

type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// Handler reconciles asynchronous provider notifications into order state.
// It tolerates duplicate and out-of-order delivery: the notification store is
// the authoritative dedup, Redis is only a fast path, and the dedup key is
// marked after the durable write so a crash mid-handling stays retryable.
type Handler struct {
	Store  NotificationStore
	Orders OrderTransitioner
	Dedup  Deduper
	Events orders.Publisher // payment.reconciled
	Log    *zap.Logger
	Name   string
}

func (h *Handler) HandleNotification(ctx context.Context, n Notification) (Result, error) {
	key := fmt.Sprintf(redisx.KeyPaymentDedup, n.ExternalPaymentID, n.ExternalStatus)
	if h.Dedup != nil {
		if seen, err := h.Dedup.Seen(ctx, key); err == nil && seen {
			return Result{Outcome: OutcomeDuplicate, OrderID: n.OrderID}, nil
		}
	}

	stored, err := h.Store.Upsert(ctx, n)
	if err != nil {
		return Result{}, err
	}
	if !stored {
		h.finish(ctx, key, n, OutcomeDuplicate)
		return Result{Outcome: OutcomeDuplicate, OrderID: n.OrderID}, nil
	}

	res, err := h.reconcile(ctx, n)
	if err != nil {
		return Result{}, err
	}

	h.finish(ctx, key, n, res.Outcome)
	return res, nil
}

func (h *Handler) reconcile(ctx context.Context, n Notification) (Result, error) {
	if n.OrderID == "" {
		h.Log.Warn("payment without matching order",
			zap.String("external_payment_id", n.ExternalPaymentID),
			zap.String("external_status", n.ExternalStatus))
		return Result{Outcome: OutcomeUnmatched, Warning: "payment without matching order"}, nil
	}

	cur, err := h.Orders.GetStatus(ctx, n.OrderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		h.Log.Warn("payment references unknown order",
			zap.String("external_payment_id", n.ExternalPaymentID),
			zap.String("order_id", n.OrderID))
		return Result{Outcome: OutcomeUnmatched, OrderID: n.OrderID, Warning: "payment without matching order"}, nil
	}
	if err != nil {
		return Result{}, err
	}

	switch n.ExternalStatus {
	case StatusApproved:
		return h.applyApproved(ctx, n, cur)
	case StatusRejected:
		if cur != orders.StatusPending {
			return Result{Outcome: OutcomeRecorded, OrderID: n.OrderID}, nil
		}
		if _, err := h.Orders.Transition(ctx, n.OrderID, orders.StatusCancelled); err != nil {
			var it *orders.InvalidTransitionError
			if errors.As(err, &it) {
				// lost a race against another transition; the record stands
				return Result{Outcome: OutcomeRecorded, OrderID: n.OrderID}, nil
			}
			return Result{}, err
		}
		return Result{Outcome: OutcomeCancelled, OrderID: n.OrderID}, nil
	default:
		return Result{Outcome: OutcomeRecorded, OrderID: n.OrderID}, nil
	}
}

// applyApproved completes the order unless it was already settled. An
// approved payment for a cancelled order is a reconciliation conflict: stock
// was already returned, so it is reported for manual review, never resolved
// here.
func (h *Handler) applyApproved(ctx context.Context, n Notification, cur orders.Status) (Result, error) {
	switch cur {
	case orders.StatusCompleted:
		return Result{Outcome: OutcomeNoop, OrderID: n.OrderID}, nil
	case orders.StatusCancelled:
		return h.conflict(n), nil
	}

	if _, err := h.Orders.Transition(ctx, n.OrderID, orders.StatusCompleted); err != nil {
		var it *orders.InvalidTransitionError
		if errors.As(err, &it) {
			// the cached status was stale; the locked row had the truth
			if it.From == orders.StatusCompleted {
				return Result{Outcome: OutcomeNoop, OrderID: n.OrderID}, nil
			}
			if it.From == orders.StatusCancelled {
				return h.conflict(n), nil
			}
		}
		return Result{}, err
	}
	return Result{Outcome: OutcomeCompleted, OrderID: n.OrderID}, nil
}

func (h *Handler) conflict(n Notification) Result {
	h.Log.Warn("approved payment for cancelled order, flagged for manual review",
		zap.String("external_payment_id", n.ExternalPaymentID),
		zap.String("order_id", n.OrderID),
		zap.Int64("amount_cents", n.AmountCents))
	return Result{
		Outcome: OutcomeConflict,
		OrderID: n.OrderID,
		Warning: "approved payment for cancelled order",
	}
}

func (h *Handler) finish(ctx context.Context, dedupKey string, n Notification, outcome string) {
	if h.Dedup != nil {
		if err := h.Dedup.Mark(ctx, dedupKey); err != nil {
			h.Log.Warn("dedup mark failed", zap.String("key", dedupKey), zap.Error(err))
		}
	}
	if h.Events == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventPaymentReconciled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Name,
		CorrelationID: n.ExternalPaymentID,
		Payload: kafkax.MustMarshal(orders.PaymentReconciledPayload{
			ExternalPaymentID: n.ExternalPaymentID,
			OrderID:           n.OrderID,
			ExternalStatus:    n.ExternalStatus,
			Outcome:           outcome,
		}),
	}
	h.Events.Publish(orders.PartitionKey(n.ExternalPaymentID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventPaymentReconciled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
