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

	"github.com/ariefcatur/go-cake-orders/internal/config"
	kafkax "github.com/ariefcatur/go-cake-orders/internal/kafka"
	"github.com/ariefcatur/go-cake-orders/internal/logging"
	"github.com/ariefcatur/go-cake-orders/internal/metrics"
	"github.com/ariefcatur/go-cake-orders/internal/notify"
	"github.com/ariefcatur/go-cake-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis, buat dedup event yang ke-deliver ulang
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	m := metrics.New(cfg.ServiceName + "-notifier")
	h := &notify.Handler{
		Mailer:      notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From),
		Dedup:       &redisx.Store{RDB: rdb},
		Log:         logger,
		Shop:        cfg.ShopName,
		SendTimeout: 20 * time.Second,
		Metrics:     m,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifyGroup, cfg.NotifyTopic, cfg.NotifyWorkers, logger)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("notification consumer started",
			zap.String("group", cfg.NotifyGroup),
			zap.String("topic", cfg.NotifyTopic),
			zap.Int("workers", cfg.NotifyWorkers))
		return cons.Start(gctx, h.Handle)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("notifier exited", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("notifier stopped")
}
