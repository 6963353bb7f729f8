package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"github.com/ariefcatur/go-cake-orders/internal/notify"
	"github.com/ariefcatur/go-cake-orders/internal/redisx"
	"github.com/ariefcatur/go-cake-orders/internal/validate"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxNumberAttempts = 5
	defaultLimit      = 20
	maxLimit          = 100
	defaultMethod     = "m-pesa"
	idemInFlight      = "pending:"
)

// Cache is the slice of redisx.Store the coordinator uses. Optional.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	SetJSONNX(ctx context.Context, key string, v any, ttl time.Duration) (bool, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
	SetStringNX(ctx context.Context, key, value string, ttl time.Duration) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type Notifier interface {
	Dispatch(ctx context.Context, eventType, key string, payload any)
}

type Service struct {
	Store    Store
	Cache    Cache
	Notifier Notifier
	Numbers  *NumberGenerator
	Log      *zap.Logger
	Now      func() time.Time
}

func NewService(store Store, cache Cache, n Notifier, log *zap.Logger) *Service {
	return &Service{Store: store, Cache: cache, Notifier: n, Numbers: NewNumberGenerator(), Log: log, Now: time.Now}
}

// Create persists a new pending/pending order. A non-empty idemKey makes
// repeated submissions return the first order instead of creating another.
func (s *Service) Create(ctx context.Context, in CreateInput, idemKey string) (Order, bool, error) {
	if err := validate.Struct(in); err != nil {
		return Order{}, false, err
	}

	var idemRedisKey string
	if idemKey != "" && s.Cache != nil {
		idemRedisKey = fmt.Sprintf(redisx.KeyIdemOrderCreate, idemKey)
		marker := idemInFlight + uuid.NewString()
		won, err := s.Cache.SetStringNX(ctx, idemRedisKey, marker, redisx.TTLIdempotency)
		switch {
		case err != nil:
			// redis down: create without the replay guarantee
			s.Log.Warn("idempotency unavailable", zap.String("key", idemKey), zap.Error(err))
			idemRedisKey = ""
		case strings.HasPrefix(won, idemInFlight) && won != marker:
			return Order{}, false, apperr.Conflict("A request with this Idempotency-Key is still in progress")
		case won != marker:
			o, err := s.Get(ctx, won)
			return o, true, err
		}
	}

	o, err := s.insert(ctx, in)
	if err != nil {
		if idemRedisKey != "" {
			_ = s.Cache.Del(ctx, idemRedisKey)
		}
		return Order{}, false, err
	}
	if idemRedisKey != "" {
		if err := s.Cache.SetString(ctx, idemRedisKey, o.OrderNumber, redisx.TTLIdempotency); err != nil {
			s.Log.Warn("idempotency record failed", zap.String("key", idemKey), zap.Error(err))
		}
	}

	s.cache(ctx, o)
	s.Notifier.Dispatch(ctx, notify.EventOrderCreated, o.OrderNumber, createdPayload(o))
	return o, false, nil
}

func (s *Service) insert(ctx context.Context, in CreateInput) (Order, error) {
	now := s.Now().UTC()
	method := in.PaymentMethod
	if method == "" {
		method = defaultMethod
	}
	o := Order{
		ID:              ulid.Make().String(),
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		ShippingAddress: in.ShippingAddress,
		Items:           in.Items,
		TotalAmount:     in.TotalAmount,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   method,
		OrderStatus:     StatusPending,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if sum := Subtotal(o.Items); !sum.Equal(decimal.NewFromFloat(o.TotalAmount)) {
		s.Log.Warn("order total differs from line items",
			zap.String("items_sum", sum.StringFixed(2)),
			zap.Float64("total_amount", o.TotalAmount))
	}

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		num, err := s.Numbers.Next()
		if err != nil {
			return Order{}, apperr.Internal("Failed to create order", err)
		}
		o.OrderNumber = num
		err = s.Store.Insert(ctx, &o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrDuplicateNumber) {
			return Order{}, apperr.Internal("Failed to create order", err)
		}
		s.Log.Info("order number collision, retrying", zap.String("order_number", num), zap.Int("attempt", attempt))
	}
	return Order{}, apperr.Internal("Failed to create order", ErrDuplicateNumber)
}

// Subtotal sums price*quantity without float drift.
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

func (s *Service) Get(ctx context.Context, number string) (Order, error) {
	var o Order
	if s.Cache != nil {
		if ok, err := s.Cache.GetJSON(ctx, fmt.Sprintf(redisx.KeyOrder, number), &o); err == nil && ok {
			return o, nil
		}
	}
	o, err := s.Store.GetByNumber(ctx, number)
	if err != nil {
		return Order{}, storeErr(err, "Failed to fetch order")
	}
	s.fill(ctx, o)
	return o, nil
}

// GetFresh reads the order from the database, skipping the cache.
func (s *Service) GetFresh(ctx context.Context, number string) (Order, error) {
	o, err := s.Store.GetByNumber(ctx, number)
	return o, storeErr(err, "Failed to fetch order")
}

func (s *Service) List(ctx context.Context, f ListFilter) (Page, error) {
	if f.Status != "" && !f.Status.Valid() {
		return Page{}, apperr.Validation("Validation error", apperr.FieldError{Field: "status", Message: "invalid order status"})
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	list, total, err := s.Store.List(ctx, f)
	if err != nil {
		return Page{}, apperr.Internal("Failed to fetch orders", err)
	}
	if list == nil {
		list = []Order{}
	}
	return Page{
		Orders: list,
		Pagination: Pagination{
			Total: total,
			Page:  f.Page,
			Limit: f.Limit,
			Pages: (total + f.Limit - 1) / f.Limit,
		},
	}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, number string, upd StatusUpdate) (Order, error) {
	var fields []apperr.FieldError
	if upd.OrderStatus != nil && !upd.OrderStatus.Valid() {
		fields = append(fields, apperr.FieldError{Field: "orderStatus", Message: "invalid order status"})
	}
	if upd.PaymentStatus != nil && !upd.PaymentStatus.Valid() {
		fields = append(fields, apperr.FieldError{Field: "paymentStatus", Message: "invalid payment status"})
	}
	if len(fields) > 0 {
		return Order{}, apperr.Validation("Validation error", fields...)
	}

	if upd.OrderStatus == nil && upd.PaymentStatus == nil {
		o, err := s.Store.GetByNumber(ctx, number)
		return o, storeErr(err, "Failed to update order status")
	}

	o, err := s.Store.UpdateStatus(ctx, number, upd)
	if err != nil {
		return Order{}, storeErr(err, "Failed to update order status")
	}
	s.cache(ctx, o)

	if upd.OrderStatus != nil && *upd.OrderStatus != StatusPending {
		s.Notifier.Dispatch(ctx, notify.EventOrderStatusChanged, o.OrderNumber, statusPayload(o))
	}
	return o, nil
}

// AttachCheckout ties a gateway checkout to the order so callbacks and polls can find it.
func (s *Service) AttachCheckout(ctx context.Context, number, merchantRequestID, checkoutRequestID string) error {
	o, err := s.Store.AttachCheckout(ctx, number, merchantRequestID, checkoutRequestID, s.Now().UTC())
	if errors.Is(err, ErrNotFound) {
		return apperr.Conflict("Order is not awaiting payment")
	}
	if err != nil {
		return apperr.Internal("Failed to record payment request", err)
	}
	s.cache(ctx, o)
	return nil
}

func (s *Service) GetByCheckoutID(ctx context.Context, checkoutRequestID string) (Order, error) {
	o, err := s.Store.GetByCheckoutID(ctx, checkoutRequestID)
	return o, storeErr(err, "Failed to fetch order")
}

// ResolvePayment moves a pending payment to completed or failed exactly once.
// Repeats report changed=false and never notify twice.
func (s *Service) ResolvePayment(ctx context.Context, checkoutRequestID string, res PaymentResult) (Order, bool, error) {
	status := res.Status
	if !status.Terminal() {
		return Order{}, false, apperr.Validation("Validation error", apperr.FieldError{Field: "paymentStatus", Message: "must be completed or failed"})
	}
	o, changed, err := s.Store.ResolvePayment(ctx, checkoutRequestID, res)
	if err != nil {
		return Order{}, false, storeErr(err, "Failed to resolve payment")
	}
	if !changed {
		return o, false, nil
	}
	s.cache(ctx, o)
	s.Log.Info("payment resolved",
		zap.String("order_number", o.OrderNumber),
		zap.String("checkout_request_id", checkoutRequestID),
		zap.String("payment_status", string(status)))
	if status == PaymentCompleted {
		s.Notifier.Dispatch(ctx, notify.EventPaymentCompleted, o.OrderNumber, paymentPayload(o))
	}
	return o, true, nil
}

func (s *Service) AwaitingPayment(ctx context.Context, limit int) ([]Order, error) {
	list, err := s.Store.ListAwaitingPayment(ctx, limit)
	if err != nil {
		return nil, apperr.Internal("Failed to list pending payments", err)
	}
	return list, nil
}

// cache overwrites the cached copy after a write. If that fails the entry is
// dropped so readers go back to the database.
func (s *Service) cache(ctx context.Context, o Order) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.SetJSON(ctx, fmt.Sprintf(redisx.KeyOrder, o.OrderNumber), o, redisx.TTLOrderCache); err != nil {
		s.Log.Debug("order cache write failed", zap.String("order_number", o.OrderNumber), zap.Error(err))
		s.invalidate(ctx, o.OrderNumber)
	}
}

// fill caches a row read from the database only when no entry exists, so a
// read that raced a write cannot replace the writer's newer copy.
func (s *Service) fill(ctx context.Context, o Order) {
	if s.Cache == nil {
		return
	}
	if _, err := s.Cache.SetJSONNX(ctx, fmt.Sprintf(redisx.KeyOrder, o.OrderNumber), o, redisx.TTLOrderCache); err != nil {
		s.Log.Debug("order cache fill failed", zap.String("order_number", o.OrderNumber), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, number string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Del(ctx, fmt.Sprintf(redisx.KeyOrder, number)); err != nil {
		s.Log.Warn("order cache invalidation failed", zap.String("order_number", number), zap.Error(err))
	}
}

func storeErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("Order not found")
	default:
		return apperr.Internal(msg, err)
	}
}
