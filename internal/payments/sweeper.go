package payments

import (
	"context"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/metrics"
	"github.com/ariefcatur/go-cake-orders/internal/orders"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepBatch = 50

// Sweeper reconciles payments nobody is watching any more: it re-queries
// them and fails the ones that stayed unresolved past MaxAge.
type Sweeper struct {
	Orders    Orders
	Refresher Refresher
	MaxAge    time.Duration
	Timeout   time.Duration
	Metrics   *metrics.Metrics
	Log       *zap.Logger
	Now       func() time.Time

	cron *cron.Cron
}

func NewSweeper(o Orders, r Refresher, maxAge time.Duration, m *metrics.Metrics, log *zap.Logger) *Sweeper {
	return &Sweeper{Orders: o, Refresher: r, MaxAge: maxAge, Timeout: 30 * time.Second, Metrics: m, Log: log, Now: time.Now}
}

// Start schedules Sweep with a cron spec such as "@every 1m".
func (s *Sweeper) Start(schedule string) error {
	logger := cronLogger{s.Log.Sugar()}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.Log.Warn("payment sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	return nil
}

func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep returns how many payments it moved to a terminal state.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	list, err := s.Orders.AwaitingPayment(ctx, sweepBatch)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, o := range list {
		st, err := s.Refresher.Refresh(ctx, o.CheckoutRequestID)
		if err != nil {
			s.Log.Warn("sweep refresh failed", zap.String("checkout_request_id", o.CheckoutRequestID), zap.Error(err))
		} else if st.Terminal() {
			resolved++
			continue
		}

		if !s.expired(o) {
			continue
		}
		_, changed, err := s.Orders.ResolvePayment(ctx, o.CheckoutRequestID, orders.PaymentResult{
			Status:     orders.PaymentFailed,
			ResultDesc: expiredDesc,
		})
		if err != nil {
			s.Log.Warn("expiring payment failed", zap.String("order_number", o.OrderNumber), zap.Error(err))
			continue
		}
		if changed {
			resolved++
			s.Metrics.Payment("sweep", "expired")
			s.Log.Info("payment expired", zap.String("order_number", o.OrderNumber))
		}
	}
	return resolved, nil
}

const expiredDesc = "Payment not confirmed in time"

func (s *Sweeper) expired(o orders.Order) bool {
	started := o.CreatedAt
	if o.PaymentRequestedAt != nil {
		started = *o.PaymentRequestedAt
	}
	return s.Now().Sub(started) > s.MaxAge
}

type cronLogger struct{ l *zap.SugaredLogger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
