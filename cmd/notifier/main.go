// cmd/notifier/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cosimani/rua-api-sub001/internal/channel/email"
	"github.com/cosimani/rua-api-sub001/internal/channel/whatsapp"
	"github.com/cosimani/rua-api-sub001/internal/common/config"
	"github.com/cosimani/rua-api-sub001/internal/common/database"
	commonhttp "github.com/cosimani/rua-api-sub001/internal/common/http"
	"github.com/cosimani/rua-api-sub001/internal/common/logger"
	"github.com/cosimani/rua-api-sub001/internal/common/observability"
	"github.com/cosimani/rua-api-sub001/internal/courses"
	"github.com/cosimani/rua-api-sub001/internal/credentials"
	"github.com/cosimani/rua-api-sub001/internal/directory"
	"github.com/cosimani/rua-api-sub001/internal/events"
	"github.com/cosimani/rua-api-sub001/internal/ledger"
	"github.com/cosimani/rua-api-sub001/internal/notification"
	"github.com/cosimani/rua-api-sub001/internal/orchestrator"
	"github.com/cosimani/rua-api-sub001/internal/settings"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notifier...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "PostgreSQL initialization")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis (best effort: events degrade gracefully) ---
	var publisher *events.Publisher
	rd, err := database.NewRedis(cfg.Database.Redis)
	if err == nil && rd.Ping(ctx) == nil {
		publisher = events.NewPublisher(rd.GetClient(), log)
		defer rd.Close()
		zapLog.Info("Redis connected successfully")
	} else {
		zapLog.Warn("redis unavailable, notification events disabled", zap.Error(err))
	}

	// --- Wire the messaging core ---
	db := pg.GetDB()
	dir := directory.New(db)
	store := notification.NewStore(db, dir, log)
	led := ledger.New()
	resolver := credentials.NewResolver(settings.NewStore(db))

	waClient := whatsapp.NewClient(
		cfg.WhatsApp.BaseURL,
		cfg.WhatsApp.Locale,
		commonhttp.NewClient(config.GetDuration(cfg.WhatsApp.Timeout)),
		log,
	)

	var emailSender orchestrator.EmailSender
	if cfg.Email.Enabled {
		sender, err := email.NewSender(ctx, cfg.Email.AWSRegion, cfg.Email.FromEmail, log)
		if err != nil {
			zapLog.Fatal("email sender init failed", zap.Error(err))
		}
		emailSender = sender
	}

	orch := orchestrator.New(db, store, led, resolver, dir, waClient, emailSender, publisher, obs, log)

	// --- Metrics endpoint ---
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
			zapLog.Info("metrics endpoint listening", zap.String("address", cfg.Metrics.Address))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zapLog.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	// --- Course-verification poller ---
	if cfg.Courses.Enabled {
		poller := courses.NewPoller(
			db,
			commonhttp.NewClient(config.GetDuration(cfg.Courses.Timeout)),
			cfg.Courses.BaseURL,
			time.Duration(cfg.Courses.Interval)*time.Second,
			config.GetDuration(cfg.Courses.ItemDelay),
			orch,
			log,
		)
		go poller.Run(ctx)
		zapLog.Info("course-verification poller started")
	}

	<-ctx.Done()
	zapLog.Info("Shutting down notifier...")
}
