package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/metrics"
	"github.com/ariefcatur/go-cake-orders/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Handler consumes notification events and sends the matching e-mail.
type Handler struct {
	Mailer      Mailer
	Dedup       Claimer
	Log         *zap.Logger
	Shop        string
	SendTimeout time.Duration
	Metrics     *metrics.Metrics
}

// Handle dipasang sebagai handler consumer.
func (h *Handler) Handle(ctx context.Context, m kafkago.Message) error {
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message: log and let the offset move on
		h.Log.Error("undecodable notification", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	email, err := Render(h.Shop, env)
	if err != nil {
		h.Log.Error("render notification", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if email == nil || email.To == "" {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	first, err := h.Dedup.Claim(ctx, dkey, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		h.Metrics.Notification(env.EventType, "duplicate")
		return nil
	}

	timeout := h.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := h.Mailer.Send(sendCtx, email.To, email.Subject, email.Body); err != nil {
		_ = h.Dedup.Release(ctx, dkey)
		h.Metrics.Notification(env.EventType, "send_failed")
		return fmt.Errorf("send %s to %s: %w", env.EventType, email.To, err)
	}
	h.Metrics.Notification(env.EventType, "sent")
	h.Log.Info("notification sent",
		zap.String("event_type", env.EventType),
		zap.String("correlation_id", env.CorrelationID))
	return nil
}
