package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/amoblar/backoffice/internal/payments"
)

type webhookProcessor interface {
	HandleNotification(ctx context.Context, n payments.Notification) (payments.Result, error)
}

type notificationStore interface {
	Get(ctx context.Context, externalPaymentID string) (payments.Notification, error)
	List(ctx context.Context, f payments.ListFilter) ([]payments.Notification, error)
}

type PaymentsHandler struct {
	Processor webhookProcessor
	Provider  payments.ProviderClient
	Store     notificationStore
	Log       *zap.Logger
}

// WebhookReq is the provider's ping: the action plus the payment id. The full
// payment state is fetched from the provider API, never trusted from the body.
type WebhookReq struct {
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/payments/webhook", h.webhook)
	r.Get("/payments", h.list)
	r.Get("/payments/{id}", h.get)
}

func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Data.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid webhook payload"})
		return
	}
	if !strings.HasPrefix(req.Action, "payment.") {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ignored", "action": req.Action})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	detail, err := h.Provider.GetPayment(ctx, req.Data.ID)
	if errors.Is(err, payments.ErrPaymentNotFound) {
		// acknowledge so the provider stops retrying a payment we cannot see
		h.Log.Warn("webhook for unknown payment", zap.String("payment_id", req.Data.ID))
		writeJSON(w, http.StatusOK, map[string]string{
			"message":    "payment not found at provider",
			"payment_id": req.Data.ID,
		})
		return
	}
	if err != nil {
		h.Log.Error("provider lookup failed", zap.String("payment_id", req.Data.ID), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "provider lookup failed"})
		return
	}

	res, err := h.Processor.HandleNotification(ctx, payments.Notification{
		ExternalPaymentID: detail.ID,
		OrderID:           detail.OrderID,
		ExternalStatus:    detail.Status,
		AmountCents:       detail.AmountCents,
		PaymentMethod:     detail.Method,
	})
	if err != nil {
		// transient: nothing committed, the provider retry is safe
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *PaymentsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	n, err := h.Store.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *PaymentsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Store.List(ctx, payments.ListFilter{
		OrderID:        r.URL.Query().Get("order_id"),
		ExternalStatus: r.URL.Query().Get("status"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
