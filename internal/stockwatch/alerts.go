package stockwatch

import (
	"context"
	"errors"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/amoblar/backoffice/internal/inventory"
	kafkax "github.com/amoblar/backoffice/internal/kafka"
	"github.com/amoblar/backoffice/internal/orders"
	"github.com/amoblar/backoffice/internal/redisx"
)

type StockReader interface {
	Get(ctx context.Context, productID string) (inventory.StockRecord, error)
}

type Deduper interface {
	SetOnce(ctx context.Context, key string) (bool, error)
}

// AlertService watches stock movements and raises low-stock alerts. It is
// wired as the stock.adjusted consumer handler in cmd/stockwatch.
type AlertService struct {
	Stock       StockReader
	Dedup       Deduper
	Log         *zap.Logger
	ServiceName string
}

// HandleStockAdjusted is the consumer handler. Duplicate deliveries of the
// same event are dropped via the dedup marker; alerting twice is harmless but
// noisy.
func (s *AlertService) HandleStockAdjusted(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventStockAdjusted {
		return nil
	}

	if s.Dedup != nil {
		key := fmt.Sprintf(redisx.KeyEventDedup, s.ServiceName, env.EventID)
		if first, err := s.Dedup.SetOnce(ctx, key); err == nil && !first {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.StockAdjustedPayload](env.Payload)
	if err != nil {
		return err
	}

	rec, err := s.Stock.Get(ctx, p.ProductID)
	if errors.Is(err, inventory.ErrStockNotFound) {
		s.Log.Warn("stock event for unknown product", zap.String("product_id", p.ProductID))
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case rec.Depleted():
		s.Log.Warn("stock depleted",
			zap.String("product_id", rec.ProductID),
			zap.String("location", rec.Location),
			zap.String("reason", p.Reason))
	case rec.Low():
		s.Log.Warn("stock at or below reorder threshold",
			zap.String("product_id", rec.ProductID),
			zap.Int("quantity_on_hand", rec.QuantityOnHand),
			zap.Int("reorder_threshold", rec.ReorderThreshold),
			zap.String("reason", p.Reason))
	}
	return nil
}
