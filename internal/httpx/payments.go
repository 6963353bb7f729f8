package httpx

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"github.com/ariefcatur/go-cake-orders/internal/payments"
	"github.com/go-chi/chi/v5"
)

type PaymentService interface {
	Initiate(ctx context.Context, in payments.InitiateInput) (payments.Checkout, error)
	Refresh(ctx context.Context, checkoutRequestID string) (payments.State, error)
	HandleCallback(ctx context.Context, token string, body []byte) error
}

type paymentsHandler struct {
	svc PaymentService
	err errorWriter
}

// callbackAck is the body the gateway expects back from a result URL.
type callbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func (h *paymentsHandler) initiate(w http.ResponseWriter, r *http.Request) {
	var in payments.InitiateInput
	if err := decode(w, r, &in); err != nil {
		h.err.write(w, r, err)
		return
	}

	// token fetch + push, each bounded by the gateway client's own timeout
	ctx, cancel := context.WithTimeout(r.Context(), 40*time.Second)
	defer cancel()

	c, err := h.svc.Initiate(ctx, in)
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c.CustomerMessage, c)
}

func (h *paymentsHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	st, err := h.svc.Refresh(ctx, chi.URLParam(r, "checkoutRequestID"))
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", st)
}

func (h *paymentsHandler) callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		h.err.write(w, r, apperr.Validation("Invalid callback payload"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.svc.HandleCallback(ctx, chi.URLParam(r, "token"), body); err != nil {
		h.err.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, callbackAck{ResultCode: 0, ResultDesc: "Accepted"})
}
