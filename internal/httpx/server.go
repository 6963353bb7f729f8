package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/auth"
	"github.com/ariefcatur/go-cake-orders/internal/logging"
	"github.com/ariefcatur/go-cake-orders/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Deps struct {
	Orders   OrderService
	Payments PaymentService
	Catalog  CatalogService
	Contacts ContactService
	Users    UserService
	Gate     *auth.Gate
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	CORSOrigins []string
	// Checks back /readyz, keyed by dependency name.
	Checks map[string]func(context.Context) error
}

func NewRouter(d Deps) *chi.Mux {
	ew := errorWriter{log: d.Log}
	d.Gate.Fail = ew.write

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.Middleware(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(45 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Idempotent-Replayed"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", readiness(d.Checks, d.Log))

	oh := &ordersHandler{svc: d.Orders, err: ew}
	ph := &paymentsHandler{svc: d.Payments, err: ew}
	ch := &catalogHandler{svc: d.Catalog, err: ew}
	kh := &contactsHandler{svc: d.Contacts, err: ew}
	uh := &usersHandler{svc: d.Users, err: ew}

	admin := d.Gate.RequireAdmin
	authed := d.Gate.Authenticate

	r.Route("/orders", func(r chi.Router) {
		r.Post("/create", oh.create)
		r.Get("/{orderNumber}", oh.get)
		r.With(admin).Get("/", oh.list)
		r.With(admin).Put("/{orderNumber}/status", oh.updateStatus)
	})
	r.Route("/payments", func(r chi.Router) {
		r.Post("/stk-push", ph.initiate)
		r.Get("/{checkoutRequestID}/status", ph.status)
		r.Post("/mpesa/callback/{token}", ph.callback)
	})
	r.Route("/cakes", func(r chi.Router) {
		r.Get("/", ch.listCakes)
		r.Get("/{id}", ch.getCake)
		r.With(admin).Post("/", ch.createCake)
		r.With(admin).Put("/{id}", ch.updateCake)
		r.With(admin).Delete("/{id}", ch.deleteCake)
	})
	r.Route("/flavors", func(r chi.Router) {
		r.Get("/", ch.listFlavors)
		r.Get("/{slug}", ch.getFlavor)
		r.With(admin).Post("/", ch.createFlavor)
		r.With(admin).Put("/{id}", ch.updateFlavor)
		r.With(admin).Delete("/{id}", ch.deleteFlavor)
	})
	r.Route("/contacts", func(r chi.Router) {
		r.Post("/", kh.submit)
		r.With(admin).Get("/", kh.list)
		r.With(admin).Put("/{id}/status", kh.updateStatus)
	})
	r.Route("/auth", func(r chi.Router) {
		r.Get("/check-admin-availability", uh.availability)
		r.With(authed).Post("/register", uh.register)
		r.With(authed).Get("/users/{uid}", uh.get)
	})
	return r
}

// readiness reports each dependency as "ok" or "unavailable"; causes go to the log only.
func readiness(checks map[string]func(context.Context) error, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
				status[name] = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		writeJSON(w, code, status)
	}
}
