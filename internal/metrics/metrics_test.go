package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsRoutePattern(t *testing.T) {
	m := New("cake-api")
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/orders/{orderNumber}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/ORD-1", nil))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET /orders/{orderNumber}", "404")))
}

func TestNilSafeCounters(t *testing.T) {
	var m *Metrics
	m.Payment("push", "ok")
	m.Notification("OrderCreated", "queued")

	m = New("test")
	m.Payment("push", "ok")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Payments.WithLabelValues("push", "ok")))
}
