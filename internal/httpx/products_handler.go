package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amoblar/backoffice/internal/directory"
)

type productGetter interface {
	GetProduct(ctx context.Context, productID string) (directory.Product, error)
}

// ProductsHandler exposes the catalog lookups order entry needs: price and
// identity checks before items go into a draft order.
type ProductsHandler struct {
	Directory productGetter
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Get("/products/{id}", h.get)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Directory.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
