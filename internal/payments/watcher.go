package payments

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"go.uber.org/zap"
)

type Refresher interface {
	Refresh(ctx context.Context, checkoutRequestID string) (State, error)
}

// Watcher polls the gateway for each accepted push until it resolves or the
// timeout passes. A timed-out payment stays pending for the sweeper.
type Watcher struct {
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
	log       *zap.Logger

	mu     sync.Mutex
	active map[string]struct{}
	closed bool
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWatcher(r Refresher, interval, timeout time.Duration, log *zap.Logger) *Watcher {
	base, cancel := context.WithCancel(context.Background())
	return &Watcher{
		refresher: r,
		interval:  interval,
		timeout:   timeout,
		log:       log,
		active:    map[string]struct{}{},
		base:      base,
		cancel:    cancel,
	}
}

// Watch starts polling checkoutRequestID. It returns false when the checkout
// is already being watched or the watcher is closed.
func (w *Watcher) Watch(checkoutRequestID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	if _, ok := w.active[checkoutRequestID]; ok {
		return false
	}
	w.active[checkoutRequestID] = struct{}{}
	w.wg.Add(1)
	go w.poll(checkoutRequestID)
	return true
}

func (w *Watcher) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.active)
}

func (w *Watcher) poll(id string) {
	defer w.wg.Done()
	defer func() {
		w.mu.Lock()
		delete(w.active, id)
		w.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(w.base, w.timeout)
	defer cancel()
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			if w.base.Err() == nil {
				w.log.Info("payment still pending after watch timeout", zap.String("checkout_request_id", id))
			}
			return
		case <-t.C:
			st, err := w.refresher.Refresh(ctx, id)
			if err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					return
				}
				w.log.Warn("payment status poll failed", zap.String("checkout_request_id", id), zap.Error(err))
				continue
			}
			if st.Terminal() {
				w.log.Info("payment resolved by poll",
					zap.String("checkout_request_id", id),
					zap.String("state", st.State))
				return
			}
		}
	}
}

// Close stops every poll and waits for them to return.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cancel()
	w.wg.Wait()
}
