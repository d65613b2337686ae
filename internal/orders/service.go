package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/amoblar/backoffice/internal/inventory"
	kafkax "github.com/amoblar/backoffice/internal/kafka"
)

// Store is the transactional order repository. Each method is one atomic unit
// of work; the service never composes partial mutations across calls.
type Store interface {
	CreateTx(ctx context.Context, customerID string, sellerID *string, items []ItemInput) (Order, []OrderLine, []StockMovement, error)
	TransitionTx(ctx context.Context, orderID string, target Status) (o Order, from Status, moves []StockMovement, err error)
	Get(ctx context.Context, orderID string) (Order, []OrderLine, error)
	GetStatus(ctx context.Context, orderID string) (Status, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
}

// Directory is the read-only customer/product boundary.
type Directory interface {
	CustomerExists(ctx context.Context, customerID string) (bool, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type StatusCache interface {
	SetStatus(ctx context.Context, orderID, status string) error
	GetStatus(ctx context.Context, orderID string) (string, error)
}

type CreateRequest struct {
	CustomerID string
	SellerID   *string
	Items      []ItemInput
}

type Service struct {
	Store     Store
	Directory Directory
	Cache     StatusCache

	Created       Publisher // order.created
	StatusChanged Publisher // order.status.changed
	StockMoves    Publisher // stock.adjusted

	Log  *zap.Logger
	Name string
}

// Create validates the request and runs the order unit of work. Validation
// failures never touch storage.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Order, []OrderLine, error) {
	if len(req.Items) == 0 {
		return Order{}, nil, ErrNoItems
	}
	seen := make(map[string]bool, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return Order{}, nil, &InvalidQuantityError{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		if seen[it.ProductID] {
			return Order{}, nil, fmt.Errorf("%w: %s", ErrDuplicateItem, it.ProductID)
		}
		seen[it.ProductID] = true
	}

	ok, err := s.Directory.CustomerExists(ctx, req.CustomerID)
	if err != nil {
		return Order{}, nil, err
	}
	if !ok {
		return Order{}, nil, ErrCustomerNotFound
	}

	o, lines, moves, err := s.Store.CreateTx(ctx, req.CustomerID, req.SellerID, req.Items)
	if err != nil {
		return Order{}, nil, err
	}

	s.cacheStatus(ctx, o.ID, o.Status)
	s.publishCreated(ctx, o, lines)
	s.publishStockMoves(ctx, o.ID, moves, inventory.ReasonSale)
	return o, lines, nil
}

// Transition moves an order to target, restoring stock when target is
// cancelled. Terminal states are absorbing; the repo rejects anything else.
// The published event carries the prior status the locked row reported, so
// concurrent transitions never produce a stale from.
func (s *Service) Transition(ctx context.Context, orderID string, target Status) (Order, error) {
	o, from, moves, err := s.Store.TransitionTx(ctx, orderID, target)
	if err != nil {
		return Order{}, err
	}

	s.cacheStatus(ctx, o.ID, o.Status)
	s.publishStatusChanged(ctx, o.ID, from, o.Status, len(moves) > 0)
	s.publishStockMoves(ctx, o.ID, moves, inventory.ReasonReturn)
	return o, nil
}

// Cancel is the DELETE /orders semantics of the old system: a status change
// with restitution, never a row delete.
func (s *Service) Cancel(ctx context.Context, orderID string) (Order, error) {
	return s.Transition(ctx, orderID, StatusCancelled)
}

func (s *Service) Get(ctx context.Context, orderID string) (Order, []OrderLine, error) {
	return s.Store.Get(ctx, orderID)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	return s.Store.List(ctx, f)
}

// GetStatus serves status polls from the cache when possible and backfills it
// on a miss.
func (s *Service) GetStatus(ctx context.Context, orderID string) (Status, error) {
	if s.Cache != nil {
		if v, err := s.Cache.GetStatus(ctx, orderID); err == nil && v != "" {
			return Status(v), nil
		}
	}
	st, err := s.Store.GetStatus(ctx, orderID)
	if err != nil {
		return "", err
	}
	s.cacheStatus(ctx, orderID, st)
	return st, nil
}

func (s *Service) cacheStatus(ctx context.Context, orderID string, st Status) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.SetStatus(ctx, orderID, string(st)); err != nil {
		s.Log.Warn("status cache write failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *Service) publishCreated(ctx context.Context, o Order, lines []OrderLine) {
	if s.Created == nil {
		return
	}
	items := make([]LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, LineItem{ProductID: l.ProductID, Quantity: l.Quantity, UnitPriceCents: l.UnitPriceCents})
	}
	s.publish(ctx, s.Created, EventOrderCreated, o.ID, PartitionKey(o.ID), OrderCreatedPayload{
		OrderID: o.ID, CustomerID: o.CustomerID, Lines: items, TotalCents: o.TotalCents,
	})
}

func (s *Service) publishStatusChanged(ctx context.Context, orderID string, from, to Status, restored bool) {
	if s.StatusChanged == nil {
		return
	}
	s.publish(ctx, s.StatusChanged, EventOrderStatusChanged, orderID, PartitionKey(orderID), OrderStatusChangedPayload{
		OrderID: orderID, From: from, To: to, StockRestored: restored,
	})
}

func (s *Service) publishStockMoves(ctx context.Context, orderID string, moves []StockMovement, reason string) {
	if s.StockMoves == nil {
		return
	}
	for _, m := range moves {
		s.publish(ctx, s.StockMoves, EventStockAdjusted, orderID, PartitionKey(m.ProductID), StockAdjustedPayload{
			ProductID: m.ProductID, Delta: m.Delta, QuantityOnHand: m.QuantityOnHand, Reason: reason,
		})
	}
}

func (s *Service) publish(ctx context.Context, p Publisher, eventType, correlationID string, key []byte, payload any) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Name,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(key, kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
