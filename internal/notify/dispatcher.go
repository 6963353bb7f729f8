package notify

import (
	"context"
	"strconv"
	"time"

	kafkax "github.com/ariefcatur/go-cake-orders/internal/kafka"
	"github.com/ariefcatur/go-cake-orders/internal/metrics"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const eventVersion = 1

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

// Dispatcher hands notification events to the queue. It never fails the caller:
// a dropped notification is logged and counted, nothing more.
type Dispatcher struct {
	pub      Publisher
	producer string
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewDispatcher(pub Publisher, producer string, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{pub: pub, producer: producer, log: log, metrics: m}
}

func (d *Dispatcher) Dispatch(ctx context.Context, eventType, key string, payload any) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      d.producer,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: key,
		Payload:       kafkax.MustMarshal(payload),
	}
	err := d.pub.Publish([]byte(key), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(eventVersion))},
	)
	if err != nil {
		d.metrics.Notification(eventType, "dropped")
		d.log.Warn("notification dropped",
			zap.String("event_type", eventType),
			zap.String("key", key),
			zap.Error(err))
		return
	}
	d.metrics.Notification(eventType, "queued")
}
