package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/auth"
	"github.com/ariefcatur/go-cake-orders/internal/catalog"
	"github.com/ariefcatur/go-cake-orders/internal/config"
	"github.com/ariefcatur/go-cake-orders/internal/contacts"
	"github.com/ariefcatur/go-cake-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-cake-orders/internal/kafka"
	"github.com/ariefcatur/go-cake-orders/internal/logging"
	"github.com/ariefcatur/go-cake-orders/internal/metrics"
	"github.com/ariefcatur/go-cake-orders/internal/mpesa"
	"github.com/ariefcatur/go-cake-orders/internal/notify"
	"github.com/ariefcatur/go-cake-orders/internal/orders"
	"github.com/ariefcatur/go-cake-orders/internal/payments"
	"github.com/ariefcatur/go-cake-orders/internal/postgres"
	"github.com/ariefcatur/go-cake-orders/internal/redisx"
	"github.com/ariefcatur/go-cake-orders/internal/users"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const callbackTokenTTL = 24 * time.Hour

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	kv := &redisx.Store{RDB: rdb}

	// Kafka producer buat notifikasi
	m := metrics.New(cfg.ServiceName)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.NotifyTopic, 1024, logger)
	prod.Start(ctx)
	dispatcher := notify.NewDispatcher(prod, cfg.ServiceName, logger, m)

	// Services
	orderSvc := orders.NewService(&orders.Repo{DB: db}, kv, dispatcher, logger)

	signer, err := callbackSigner(cfg.Payments.CallbackSecret, logger)
	if err != nil {
		logger.Fatal("callback signer", zap.Error(err))
	}
	paySvc := &payments.Service{
		Orders: orderSvc,
		Gateway: mpesa.NewClient(mpesa.Config{
			BaseURL:        cfg.Mpesa.BaseURL,
			ConsumerKey:    cfg.Mpesa.ConsumerKey,
			ConsumerSecret: cfg.Mpesa.ConsumerSecret,
			ShortCode:      cfg.Mpesa.ShortCode,
			Passkey:        cfg.Mpesa.Passkey,
			CallbackURL:    cfg.Mpesa.CallbackURL,
		}, nil),
		Signer:      signer,
		CallbackURL: cfg.Mpesa.CallbackURL,
		Dedup:       kv,
		Metrics:     m,
		Log:         logger,
	}
	watcher := payments.NewWatcher(paySvc, cfg.Payments.PollInterval, cfg.Payments.PollTimeout, logger)
	paySvc.Watcher = watcher

	sweeper := payments.NewSweeper(orderSvc, paySvc, cfg.Payments.MaxAge, m, logger)
	if err := sweeper.Start(cfg.Payments.SweepSchedule); err != nil {
		logger.Fatal("payment sweeper", zap.Error(err))
	}

	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Auth.JWKSURL, cfg.Auth.FirebaseProjectID)
	if err != nil {
		logger.Fatal("token verifier", zap.Error(err))
	}
	userSvc := users.NewService(&users.Repo{DB: db}, logger)
	gate := auth.NewGate(verifier, cfg.Auth.AdminEmails, logger)
	gate.Roles = userSvc

	router := httpx.NewRouter(httpx.Deps{
		Orders:      orderSvc,
		Payments:    paySvc,
		Catalog:     catalog.NewService(&catalog.Repo{DB: db}, logger),
		Contacts:    contacts.NewService(&contacts.Repo{DB: db}, dispatcher, logger),
		Users:       userSvc,
		Gate:        gate,
		Metrics:     m,
		Log:         logger,
		CORSOrigins: cfg.CORSOrigins,
		Checks: map[string]func(context.Context) error{
			"postgres": db.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	sweeper.Stop()
	watcher.Close()
	prod.Close()      // tutup inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}

// Without a configured secret, callback URLs only verify within this process lifetime.
func callbackSigner(secret string, logger *zap.Logger) (*payments.CallbackSigner, error) {
	if secret != "" {
		return payments.NewCallbackSigner([]byte(secret), callbackTokenTTL)
	}
	logger.Warn("CALLBACK_SIGNING_SECRET not set; using an ephemeral key")
	return payments.EphemeralSigner(callbackTokenTTL)
}
