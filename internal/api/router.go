package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/api/handler"
	apimw "github.com/proofhub/proof-notify/internal/api/middleware"
	"github.com/proofhub/proof-notify/internal/audit"
	"github.com/proofhub/proof-notify/internal/queue"
	"github.com/proofhub/proof-notify/internal/service"
	"github.com/proofhub/proof-notify/internal/token"
)

// Deps collects everything the HTTP surface needs.
type Deps struct {
	Notifications *service.NotificationService
	Access        *service.AccessService
	SMTPCheck     *service.SMTPCheckService
	Tokens        *token.Manager
	Recorder      *audit.Recorder
	Queue         *queue.Queue
	Workers       int
	// QueueDepth is refreshed by the JSON metrics endpoint. Optional.
	QueueDepth prometheus.Gauge
	DB         handler.Pinger
	Gatherer   prometheus.Gatherer
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(d Deps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)            // recover panics, return 500
	r.Use(chimw.RealIP)               // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)        // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	nh := handler.NewNotificationHandler(d.Notifications, logger)
	th := handler.NewTokenHandler(d.Tokens, logger)
	ah := handler.NewAccessHandler(d.Access, d.Recorder, logger)
	ph := handler.NewPrincipalHandler(d.SMTPCheck, logger)
	mh := handler.NewMetricsHandler(d.Queue, d.Workers, d.QueueDepth)
	hh := handler.NewHealthHandler(d.DB)

	// --- routes ---
	r.Get("/health", hh.Health)

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/notifications", nh.Create)
		r.Get("/notifications", nh.List)
		r.Get("/notifications/{id}", nh.GetByID)
		r.Post("/notifications/{id}/resend", nh.Resend)

		r.Post("/tokens", th.Issue)
		r.Post("/tokens/validate", th.Validate)
		r.Post("/tokens/consume", th.Consume)
		r.Get("/tokens/status", th.Status)

		r.Post("/invites", ah.Invite)
		r.Post("/invites/accept", ah.AcceptInvite)
		r.Post("/password-resets", ah.RequestReset)
		r.Post("/password-resets/complete", ah.CompleteReset)

		r.Post("/login-events", ah.LoginEvent)
		r.Get("/login-throttle", ah.LoginThrottle)
		r.Get("/auth-events", ah.Events)

		r.Post("/principals/{id}/smtp-test", ph.SMTPTest)

		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
