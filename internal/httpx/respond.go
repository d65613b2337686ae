package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/amoblar/backoffice/internal/directory"
	"github.com/amoblar/backoffice/internal/inventory"
	"github.com/amoblar/backoffice/internal/orders"
	"github.com/amoblar/backoffice/internal/payments"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), errorBody(err))
}

func httpStatus(err error) int {
	var (
		badQty     *orders.InvalidQuantityError
		noStock    *orders.InsufficientStockError
		badTransit *orders.InvalidTransitionError
	)
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, orders.ErrCustomerNotFound),
		errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, directory.ErrProductNotFound),
		errors.Is(err, inventory.ErrStockNotFound),
		errors.Is(err, payments.ErrNotificationNotFound):
		return http.StatusNotFound

	case errors.Is(err, orders.ErrNoItems),
		errors.Is(err, orders.ErrDuplicateItem),
		errors.As(err, &badQty):
		return http.StatusBadRequest

	case errors.As(err, &noStock),
		errors.As(err, &badTransit),
		errors.Is(err, inventory.ErrWouldGoNegative):
		return http.StatusConflict

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// errorBody keeps conflict errors actionable: the caller gets the numbers it
// needs to decide whether to retry with different input.
func errorBody(err error) map[string]any {
	body := map[string]any{"error": err.Error()}

	var noStock *orders.InsufficientStockError
	if errors.As(err, &noStock) {
		body["product_id"] = noStock.ProductID
		body["available"] = noStock.Available
		body["requested"] = noStock.Requested
	}
	var badTransit *orders.InvalidTransitionError
	if errors.As(err, &badTransit) {
		body["current_status"] = badTransit.From
		body["requested_status"] = badTransit.To
	}
	return body
}
