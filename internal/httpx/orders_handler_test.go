package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amoblar/backoffice/internal/orders"
)

type stubOrderService struct {
	createFn     func(ctx context.Context, req orders.CreateRequest) (orders.Order, []orders.OrderLine, error)
	transitionFn func(ctx context.Context, orderID string, target orders.Status) (orders.Order, error)
	getFn        func(ctx context.Context, orderID string) (orders.Order, []orders.OrderLine, error)
	statusFn     func(ctx context.Context, orderID string) (orders.Status, error)
	listFn       func(ctx context.Context, f orders.ListFilter) ([]orders.Order, error)
}

func (s *stubOrderService) Create(ctx context.Context, req orders.CreateRequest) (orders.Order, []orders.OrderLine, error) {
	return s.createFn(ctx, req)
}

func (s *stubOrderService) Transition(ctx context.Context, orderID string, target orders.Status) (orders.Order, error) {
	return s.transitionFn(ctx, orderID, target)
}

func (s *stubOrderService) Cancel(ctx context.Context, orderID string) (orders.Order, error) {
	return s.transitionFn(ctx, orderID, orders.StatusCancelled)
}

func (s *stubOrderService) Get(ctx context.Context, orderID string) (orders.Order, []orders.OrderLine, error) {
	return s.getFn(ctx, orderID)
}

func (s *stubOrderService) GetStatus(ctx context.Context, orderID string) (orders.Status, error) {
	return s.statusFn(ctx, orderID)
}

func (s *stubOrderService) List(ctx context.Context, f orders.ListFilter) ([]orders.Order, error) {
	return s.listFn(ctx, f)
}

func newOrdersRouter(svc orderService) http.Handler {
	r := NewRouter()
	(&OrdersHandler{Svc: svc}).Register(r)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrderEndpoint(t *testing.T) {
	svc := &stubOrderService{
		createFn: func(ctx context.Context, req orders.CreateRequest) (orders.Order, []orders.OrderLine, error) {
			o := orders.Order{ID: "o1", CustomerID: req.CustomerID, Status: orders.StatusPending, TotalCents: 90000}
			lines := []orders.OrderLine{{OrderID: "o1", ProductID: "sofa", Quantity: 2, UnitPriceCents: 45000}}
			return o, lines, nil
		},
	}
	h := newOrdersRouter(svc)

	rec := doJSON(t, h, http.MethodPost, "/orders", CreateOrderReq{
		CustomerID: "cust-1",
		Items:      []orders.ItemInput{{ProductID: "sofa", Quantity: 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp OrderResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Order.ID != "o1" || resp.Order.TotalCents != 90000 || len(resp.Lines) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreateOrderEndpoint_BadRequests(t *testing.T) {
	svc := &stubOrderService{
		createFn: func(ctx context.Context, req orders.CreateRequest) (orders.Order, []orders.OrderLine, error) {
			t.Error("service must not be called")
			return orders.Order{}, nil, nil
		},
	}
	h := newOrdersRouter(svc)

	for _, body := range []any{
		nil,
		CreateOrderReq{Items: []orders.ItemInput{{ProductID: "sofa", Quantity: 1}}},
		CreateOrderReq{CustomerID: "cust-1"},
	} {
		rec := doJSON(t, h, http.MethodPost, "/orders", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %+v: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestCreateOrderEndpoint_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient stock", &orders.InsufficientStockError{ProductID: "sofa", Available: 1, Requested: 2}, http.StatusConflict},
		{"unknown customer", orders.ErrCustomerNotFound, http.StatusNotFound},
		{"unknown product", orders.ErrProductNotFound, http.StatusNotFound},
		{"bad quantity", &orders.InvalidQuantityError{ProductID: "sofa", Quantity: -1}, http.StatusBadRequest},
	}
	for _, c := range cases {
		svc := &stubOrderService{
			createFn: func(ctx context.Context, req orders.CreateRequest) (orders.Order, []orders.OrderLine, error) {
				return orders.Order{}, nil, c.err
			},
		}
		rec := doJSON(t, newOrdersRouter(svc), http.MethodPost, "/orders", CreateOrderReq{
			CustomerID: "cust-1",
			Items:      []orders.ItemInput{{ProductID: "sofa", Quantity: 2}},
		})
		if rec.Code != c.want {
			t.Errorf("%s: status = %d, want %d", c.name, rec.Code, c.want)
		}
	}
}

func TestCreateOrderEndpoint_ConflictCarriesDetails(t *testing.T) {
	svc := &stubOrderService{
		createFn: func(ctx context.Context, req orders.CreateRequest) (orders.Order, []orders.OrderLine, error) {
			return orders.Order{}, nil, &orders.InsufficientStockError{ProductID: "sofa", Available: 1, Requested: 3}
		},
	}

	rec := doJSON(t, newOrdersRouter(svc), http.MethodPost, "/orders", CreateOrderReq{
		CustomerID: "cust-1",
		Items:      []orders.ItemInput{{ProductID: "sofa", Quantity: 3}},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["product_id"] != "sofa" || body["available"] != float64(1) || body["requested"] != float64(3) {
		t.Errorf("body = %v", body)
	}
}

func TestTransitionEndpoint(t *testing.T) {
	var gotTarget orders.Status
	svc := &stubOrderService{
		transitionFn: func(ctx context.Context, orderID string, target orders.Status) (orders.Order, error) {
			gotTarget = target
			return orders.Order{ID: orderID, Status: target}, nil
		},
	}

	rec := doJSON(t, newOrdersRouter(svc), http.MethodPatch, "/orders/o1/status", TransitionReq{Status: "processing"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotTarget != orders.StatusProcessing {
		t.Errorf("target = %s", gotTarget)
	}
}

func TestTransitionEndpoint_InvalidTransition(t *testing.T) {
	svc := &stubOrderService{
		transitionFn: func(ctx context.Context, orderID string, target orders.Status) (orders.Order, error) {
			return orders.Order{}, &orders.InvalidTransitionError{From: orders.StatusCompleted, To: target}
		},
	}

	rec := doJSON(t, newOrdersRouter(svc), http.MethodPatch, "/orders/o1/status", TransitionReq{Status: "cancelled"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["current_status"] != "completed" || body["requested_status"] != "cancelled" {
		t.Errorf("body = %v", body)
	}
}

func TestTransitionEndpoint_UnknownStatus(t *testing.T) {
	svc := &stubOrderService{
		transitionFn: func(ctx context.Context, orderID string, target orders.Status) (orders.Order, error) {
			t.Error("service must not be called")
			return orders.Order{}, nil
		},
	}

	rec := doJSON(t, newOrdersRouter(svc), http.MethodPatch, "/orders/o1/status", TransitionReq{Status: "shipped"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCancelEndpoint(t *testing.T) {
	var gotTarget orders.Status
	svc := &stubOrderService{
		transitionFn: func(ctx context.Context, orderID string, target orders.Status) (orders.Order, error) {
			gotTarget = target
			return orders.Order{ID: orderID, Status: target}, nil
		},
	}

	rec := doJSON(t, newOrdersRouter(svc), http.MethodDelete, "/orders/o1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotTarget != orders.StatusCancelled {
		t.Errorf("target = %s, want cancelled", gotTarget)
	}
}

func TestGetOrderEndpoint_NotFound(t *testing.T) {
	svc := &stubOrderService{
		getFn: func(ctx context.Context, orderID string) (orders.Order, []orders.OrderLine, error) {
			return orders.Order{}, nil, orders.ErrOrderNotFound
		},
	}

	rec := doJSON(t, newOrdersRouter(svc), http.MethodGet, "/orders/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetStatusEndpoint(t *testing.T) {
	svc := &stubOrderService{
		statusFn: func(ctx context.Context, orderID string) (orders.Status, error) {
			return orders.StatusProcessing, nil
		},
	}

	rec := doJSON(t, newOrdersRouter(svc), http.MethodGet, "/orders/o1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]orders.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != orders.StatusProcessing {
		t.Errorf("status = %s", body["status"])
	}
}

func TestListOrdersEndpoint_Filters(t *testing.T) {
	var gotFilter orders.ListFilter
	svc := &stubOrderService{
		listFn: func(ctx context.Context, f orders.ListFilter) ([]orders.Order, error) {
			gotFilter = f
			return []orders.Order{}, nil
		},
	}
	h := newOrdersRouter(svc)

	rec := doJSON(t, h, http.MethodGet, "/orders?customer_id=cust-1&status=pending", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotFilter.CustomerID != "cust-1" || gotFilter.Status != orders.StatusPending {
		t.Errorf("filter = %+v", gotFilter)
	}

	rec = doJSON(t, h, http.MethodGet, "/orders?status=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus status filter: code = %d, want 400", rec.Code)
	}
}
