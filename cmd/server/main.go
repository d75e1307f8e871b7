package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/api"
	"github.com/proofhub/proof-notify/internal/audit"
	"github.com/proofhub/proof-notify/internal/config"
	"github.com/proofhub/proof-notify/internal/credentials"
	"github.com/proofhub/proof-notify/internal/db"
	"github.com/proofhub/proof-notify/internal/metrics"
	"github.com/proofhub/proof-notify/internal/provider"
	"github.com/proofhub/proof-notify/internal/queue"
	"github.com/proofhub/proof-notify/internal/ratelimiter"
	"github.com/proofhub/proof-notify/internal/render"
	"github.com/proofhub/proof-notify/internal/repository"
	"github.com/proofhub/proof-notify/internal/service"
	"github.com/proofhub/proof-notify/internal/token"
	"github.com/proofhub/proof-notify/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.MigrationsSource, cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- repositories ----
	notifRepo := repository.NewPgNotificationRepository(pool)
	tokenRepo := repository.NewPgTokenRepository(pool)
	eventRepo := repository.NewPgAuthEventRepository(pool)
	directory := repository.NewPgDirectoryRepository(pool)
	templates := repository.NewPgTemplateRepository(pool)

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := queue.New(cfg.QueueSize)
	limiter := ratelimiter.New(cfg.SendRateLimit)

	var prov provider.Provider
	switch cfg.MailTransport {
	case "webhook":
		prov = provider.NewWebhookProvider(cfg.MailRelayURL, cfg.MailRelayTimeout)
	default:
		prov = provider.NewSMTPProvider(cfg.MailInsecureSkipVerify, logger)
	}
	logger.Info("mail transport selected", zap.String("transport", cfg.MailTransport))

	hasher, err := token.NewHasher(cfg.TokenHashKey)
	if err != nil {
		logger.Fatal("invalid token hash key", zap.Error(err))
	}
	tokens := token.NewManager(tokenRepo, hasher, token.Options{
		InviteTTL: cfg.InviteTTL,
		ResetTTL:  cfg.ResetTTL,
	}, m.TokenHooks(), logger)

	var publisher audit.Publisher
	if len(cfg.AuditKafkaBrokers) > 0 {
		publisher = audit.NewKafkaPublisher(cfg.AuditKafkaBrokers, cfg.AuditKafkaTopic, logger)
		logger.Info("audit mirror enabled",
			zap.Strings("brokers", cfg.AuditKafkaBrokers),
			zap.String("topic", cfg.AuditKafkaTopic),
		)
	}
	throttle := ratelimiter.NewLoginThrottle(cfg.LoginMaxAttempts, cfg.LoginAttemptWindow)
	recorder := audit.NewRecorder(eventRepo, publisher, throttle, m.AuditHooks(), logger)

	// ---- services ----
	resolver := credentials.NewResolver(directory, cfg.MailDefaults, logger)
	catalog := render.NewCatalog(cfg.DefaultSubjectTemplate, cfg.DefaultBodyTemplate)
	notifications := service.NewNotificationService(resolver, templates, catalog, notifRepo, q, m.NotificationHooks(), logger)
	access := service.NewAccessService(tokens, notifications, directory, recorder, service.AccessOptions{
		PublicBaseURL: cfg.PublicBaseURL,
		CompanyName:   cfg.CompanyName,
	}, logger)
	smtpCheck := service.NewSMTPCheckService(resolver, directory, prov, cfg.SMTPTestTimeout, logger)

	// ---- worker pool ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	onSent, onFailed := m.WorkerHooks()
	workers := worker.NewPool(cfg, q, notifRepo, prov, limiter, logger, worker.MetricHooks{
		OnSent:   onSent,
		OnFailed: onFailed,
	})
	workers.Start(workerCtx)

	stale := worker.NewStaleMonitor(notifRepo, cfg.StaleQueuedAfter, cfg.StaleCheckInterval, m.StaleHook(), logger)
	go stale.Run(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(api.Deps{
		Notifications: notifications,
		Access:        access,
		SMTPCheck:     smtpCheck,
		Tokens:        tokens,
		Recorder:      recorder,
		Queue:         q,
		Workers:       workers.Size(),
		QueueDepth:    m.QueueDepth,
		DB:            pool,
		Gatherer:      reg,
	}, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Refuse new jobs, then stop workers picking up queued ones.
	q.Close()
	cancelWorkers()

	// 3. Wait for in-flight sends, bounded by the shutdown timeout.
	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("workers did not finish before shutdown timeout")
	}

	// 4. Jobs still on the queue were never attempted; their rows stay queued
	// and surface through the stale monitor on the next start.
	if abandoned := q.Drain(); len(abandoned) > 0 {
		ids := make([]string, len(abandoned))
		for i, j := range abandoned {
			ids[i] = j.RecordID
		}
		logger.Warn("abandoned queued notifications", zap.Int("count", len(ids)), zap.Strings("notification_ids", ids))
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("audit publisher close error", zap.Error(err))
		}
	}

	logger.Info("server stopped cleanly")
}
