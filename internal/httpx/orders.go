package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/orders"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	Create(ctx context.Context, in orders.CreateInput, idemKey string) (orders.Order, bool, error)
	Get(ctx context.Context, number string) (orders.Order, error)
	List(ctx context.Context, f orders.ListFilter) (orders.Page, error)
	UpdateStatus(ctx context.Context, number string, upd orders.StatusUpdate) (orders.Order, error)
}

type ordersHandler struct {
	svc OrderService
	err errorWriter
}

type createdOrder struct {
	OrderNumber string             `json:"orderNumber"`
	ID          string             `json:"id"`
	TotalAmount float64            `json:"totalAmount"`
	OrderStatus orders.OrderStatus `json:"orderStatus"`
}

type orderList struct {
	Success bool `json:"success"`
	orders.Page
}

func (h *ordersHandler) create(w http.ResponseWriter, r *http.Request) {
	var in orders.CreateInput
	if err := decode(w, r, &in); err != nil {
		h.err.write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, replayed, err := h.svc.Create(ctx, in, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	code := http.StatusCreated
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		code = http.StatusOK
	}
	writeData(w, code, "Order created successfully", createdOrder{
		OrderNumber: o.OrderNumber,
		ID:          o.ID,
		TotalAmount: o.TotalAmount,
		OrderStatus: o.OrderStatus,
	})
}

func (h *ordersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.svc.Get(ctx, chi.URLParam(r, "orderNumber"))
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", o)
}

func (h *ordersHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := orders.ListFilter{
		Status: orders.OrderStatus(q.Get("status")),
		Page:   atoi(q.Get("page")),
		Limit:  atoi(q.Get("limit")),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, err := h.svc.List(ctx, f)
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderList{Success: true, Page: page})
}

func (h *ordersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var upd orders.StatusUpdate
	if err := decode(w, r, &upd); err != nil {
		h.err.write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.svc.UpdateStatus(ctx, chi.URLParam(r, "orderNumber"), upd)
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Order status updated successfully", o)
}

// atoi treats junk as unset so the service defaults apply.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
