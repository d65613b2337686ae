package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/amoblar/backoffice/internal/inventory"
	kafkax "github.com/amoblar/backoffice/internal/kafka"
	"github.com/amoblar/backoffice/internal/orders"
)

type stockStore interface {
	Get(ctx context.Context, productID string) (inventory.StockRecord, error)
	List(ctx context.Context, lowOnly bool) ([]inventory.StockRecord, error)
	AdjustBy(ctx context.Context, productID string, delta int) (inventory.StockRecord, error)
	Alerts(ctx context.Context) (depleted, low []inventory.StockRecord, err error)
}

type InventoryHandler struct {
	Store    stockStore
	Producer orders.Publisher // stock.adjusted
	Service  string
}

type AdjustReq struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason,omitempty"`
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	r.Get("/inventory", h.list)
	r.Get("/inventory/alerts", h.alerts)
	r.Get("/inventory/{productID}", h.get)
	r.Patch("/inventory/{productID}/adjust", h.adjust)
}

func (h *InventoryHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	lowOnly := r.URL.Query().Get("low") == "true"
	out, err := h.Store.List(ctx, lowOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *InventoryHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, err := h.Store.Get(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *InventoryHandler) alerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	depleted, low, err := h.Store.Alerts(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"depleted":     depleted,
		"low_stock":    low,
		"total_alerts": len(depleted) + len(low),
	})
}

func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Delta == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delta must be non-zero"})
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = inventory.ReasonAdjustment
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Store.AdjustBy(ctx, chi.URLParam(r, "productID"), req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publishAdjusted(r, rec, req.Delta, reason)
	writeJSON(w, http.StatusOK, map[string]any{
		"stock":  rec,
		"delta":  req.Delta,
		"reason": reason,
	})
}

func (h *InventoryHandler) publishAdjusted(r *http.Request, rec inventory.StockRecord, delta int, reason string) {
	if h.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockAdjusted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       middleware.GetReqID(r.Context()),
		CorrelationID: rec.ProductID,
		Payload: kafkax.MustMarshal(orders.StockAdjustedPayload{
			ProductID:      rec.ProductID,
			Delta:          delta,
			QuantityOnHand: rec.QuantityOnHand,
			Reason:         reason,
		}),
	}
	h.Producer.Publish(orders.PartitionKey(rec.ProductID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockAdjusted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
