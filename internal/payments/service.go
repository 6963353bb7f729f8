package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"github.com/ariefcatur/go-cake-orders/internal/metrics"
	"github.com/ariefcatur/go-cake-orders/internal/mpesa"
	"github.com/ariefcatur/go-cake-orders/internal/orders"
	"github.com/ariefcatur/go-cake-orders/internal/redisx"
	"github.com/ariefcatur/go-cake-orders/internal/validate"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFailed     = "failed"

	dedupScope = "mpesa-callback"
)

type Gateway interface {
	STKPush(ctx context.Context, p mpesa.PushRequest) (*mpesa.PushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResult, error)
}

// Orders is the part of the order coordinator payments drive.
type Orders interface {
	GetFresh(ctx context.Context, number string) (orders.Order, error)
	AttachCheckout(ctx context.Context, number, merchantRequestID, checkoutRequestID string) error
	GetByCheckoutID(ctx context.Context, checkoutRequestID string) (orders.Order, error)
	ResolvePayment(ctx context.Context, checkoutRequestID string, res orders.PaymentResult) (orders.Order, bool, error)
	AwaitingPayment(ctx context.Context, limit int) ([]orders.Order, error)
}

type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type InitiateInput struct {
	OrderNumber string `json:"orderNumber" validate:"required"`
	PhoneNumber string `json:"phoneNumber,omitempty" validate:"omitempty,kephone"`
}

type Checkout struct {
	OrderNumber       string `json:"orderNumber"`
	MerchantRequestID string `json:"merchantRequestId"`
	CheckoutRequestID string `json:"checkoutRequestId"`
	Amount            int64  `json:"amount"`
	State             string `json:"state"`
	CustomerMessage   string `json:"customerMessage,omitempty"`
}

type State struct {
	OrderNumber       string               `json:"orderNumber"`
	CheckoutRequestID string               `json:"checkoutRequestId"`
	PaymentStatus     orders.PaymentStatus `json:"paymentStatus"`
	State             string               `json:"state"`
	ResultCode        string               `json:"resultCode,omitempty"`
	ResultDesc        string               `json:"resultDesc,omitempty"`
}

func (s State) Terminal() bool { return s.State != StateProcessing }

type Service struct {
	Orders      Orders
	Gateway     Gateway
	Signer      *CallbackSigner
	CallbackURL string
	Dedup       Claimer
	Watcher     *Watcher
	Metrics     *metrics.Metrics
	Log         *zap.Logger
}

// Initiate sends the STK prompt for an order that is still awaiting payment.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (Checkout, error) {
	if err := validate.Struct(in); err != nil {
		return Checkout{}, err
	}
	o, err := s.Orders.GetFresh(ctx, in.OrderNumber)
	if err != nil {
		return Checkout{}, err
	}
	if o.PaymentStatus != orders.PaymentPending {
		return Checkout{}, apperr.Conflict(fmt.Sprintf("Order payment is already %s", o.PaymentStatus))
	}

	phone := in.PhoneNumber
	if phone == "" {
		phone = o.CustomerPhone
	}
	amount := decimal.NewFromFloat(o.TotalAmount).Ceil().IntPart()

	callback, err := s.callbackURL(o.OrderNumber)
	if err != nil {
		return Checkout{}, apperr.Internal("Failed to initiate payment", err)
	}

	res, err := s.Gateway.STKPush(ctx, mpesa.PushRequest{
		Phone:            phone,
		Amount:           amount,
		AccountReference: o.OrderNumber,
		Description:      "Cake order for " + o.CustomerName,
		CallbackURL:      callback,
	})
	if err != nil {
		s.Metrics.Payment("push", "error")
		s.Log.Error("stk push failed", zap.String("order_number", o.OrderNumber), zap.Error(err))
		return Checkout{}, gatewayErr(err)
	}
	if !res.Accepted() {
		s.Metrics.Payment("push", "rejected")
		s.Log.Warn("stk push rejected",
			zap.String("order_number", o.OrderNumber),
			zap.String("response_code", string(res.ResponseCode)),
			zap.String("response_description", res.ResponseDescription))
		msg := res.ResponseDescription
		if msg == "" {
			msg = "Payment request was not accepted"
		}
		return Checkout{}, apperr.Payment(msg)
	}

	if err := s.Orders.AttachCheckout(ctx, o.OrderNumber, res.MerchantRequestID, res.CheckoutRequestID); err != nil {
		return Checkout{}, err
	}
	s.Metrics.Payment("push", "accepted")
	s.Log.Info("stk push accepted",
		zap.String("order_number", o.OrderNumber),
		zap.String("checkout_request_id", res.CheckoutRequestID),
		zap.Int64("amount", amount))

	if s.Watcher != nil {
		s.Watcher.Watch(res.CheckoutRequestID)
	}
	return Checkout{
		OrderNumber:       o.OrderNumber,
		MerchantRequestID: res.MerchantRequestID,
		CheckoutRequestID: res.CheckoutRequestID,
		Amount:            amount,
		State:             StateProcessing,
		CustomerMessage:   res.CustomerMessage,
	}, nil
}

// Refresh queries the gateway once and applies a terminal answer. Orders
// that are already resolved are answered from the store without a gateway
// call, with the result code that resolved them.
func (s *Service) Refresh(ctx context.Context, checkoutRequestID string) (State, error) {
	o, err := s.Orders.GetByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return State{}, err
	}
	if o.PaymentStatus.Terminal() {
		return resolvedState(o), nil
	}

	res, err := s.Gateway.QueryStatus(ctx, checkoutRequestID)
	if err != nil {
		s.Metrics.Payment("query", "error")
		return State{}, gatewayErr(err)
	}
	code, desc := string(res.ResultCode), res.ResultDesc
	if res.Processing() {
		s.Metrics.Payment("query", "processing")
		st := stateOf(o, code, desc)
		st.State = StateProcessing
		return st, nil
	}

	status := orders.PaymentFailed
	if res.Succeeded() {
		status = orders.PaymentCompleted
	}
	o, _, err = s.Orders.ResolvePayment(ctx, checkoutRequestID, orders.PaymentResult{
		Status:     status,
		ResultCode: code,
		ResultDesc: desc,
	})
	if err != nil {
		return State{}, err
	}
	s.Metrics.Payment("query", string(o.PaymentStatus))
	return resolvedState(o), nil
}

// HandleCallback applies the gateway's asynchronous result. token must be the
// one minted for this order; repeats and late arrivals are no-ops.
func (s *Service) HandleCallback(ctx context.Context, token string, body []byte) error {
	orderNumber, err := s.Signer.Verify(token)
	if err != nil {
		s.Metrics.Payment("callback", "unauthenticated")
		return apperr.Unauthenticated("Invalid callback signature", err)
	}
	cb, err := mpesa.ParseSTKCallback(body)
	if err != nil {
		return apperr.Validation("Invalid callback payload")
	}
	o, err := s.Orders.GetByCheckoutID(ctx, cb.CheckoutRequestID)
	if err != nil {
		return err
	}
	if o.OrderNumber != orderNumber {
		s.Metrics.Payment("callback", "mismatch")
		s.Log.Warn("callback token does not match checkout",
			zap.String("token_order", orderNumber),
			zap.String("checkout_order", o.OrderNumber))
		return apperr.Forbidden("Callback does not match order")
	}
	if cb.ResultCode == mpesa.ResultCodeProcessing {
		return nil
	}

	key := fmt.Sprintf(redisx.KeyDedup, dedupScope, cb.CheckoutRequestID)
	claimed := false
	if s.Dedup != nil {
		first, err := s.Dedup.Claim(ctx, key, redisx.TTLDedup)
		switch {
		case err != nil:
			// the guarded update below still makes this safe
			s.Log.Warn("callback dedup unavailable", zap.Error(err))
		case !first:
			s.Metrics.Payment("callback", "duplicate")
			return nil
		default:
			claimed = true
		}
	}

	status := orders.PaymentFailed
	if cb.Succeeded() {
		status = orders.PaymentCompleted
	}
	_, changed, err := s.Orders.ResolvePayment(ctx, cb.CheckoutRequestID, orders.PaymentResult{
		Status:     status,
		Receipt:    cb.Receipt,
		ResultCode: cb.ResultCode,
		ResultDesc: cb.ResultDesc,
	})
	if err != nil {
		if claimed {
			_ = s.Dedup.Release(ctx, key)
		}
		return err
	}
	if !changed {
		s.Metrics.Payment("callback", "stale")
		return nil
	}
	s.Metrics.Payment("callback", string(status))
	return nil
}

func (s *Service) callbackURL(orderNumber string) (string, error) {
	if s.Signer == nil || s.CallbackURL == "" {
		return s.CallbackURL, nil
	}
	tok, err := s.Signer.Sign(orderNumber)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(s.CallbackURL, "/") + "/" + tok, nil
}

func stateOf(o orders.Order, code, desc string) State {
	st := State{
		OrderNumber:       o.OrderNumber,
		CheckoutRequestID: o.CheckoutRequestID,
		PaymentStatus:     o.PaymentStatus,
		ResultCode:        code,
		ResultDesc:        desc,
	}
	switch o.PaymentStatus {
	case orders.PaymentCompleted:
		st.State = StateCompleted
	case orders.PaymentFailed:
		st.State = StateFailed
	default:
		st.State = StateProcessing
	}
	return st
}

// resolvedState reports a terminal order with whatever code first resolved it,
// so repeated queries agree even when a callback won the race.
func resolvedState(o orders.Order) State {
	return stateOf(o, o.PaymentResultCode, o.PaymentResultDesc)
}

func gatewayErr(err error) error {
	var ge *mpesa.GatewayError
	if errors.As(err, &ge) {
		return apperr.Gateway("Payment failed, please try again", err)
	}
	return apperr.Internal("Payment failed, please try again", err)
}
