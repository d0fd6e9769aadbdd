package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/himmelstrup/timepush/internal/config"
	"github.com/himmelstrup/timepush/internal/handler"
	"github.com/himmelstrup/timepush/internal/metrics"
	"github.com/himmelstrup/timepush/internal/middleware"
	"github.com/himmelstrup/timepush/internal/push"
	"github.com/himmelstrup/timepush/internal/reminder"
	"github.com/himmelstrup/timepush/internal/store"
	ws "github.com/himmelstrup/timepush/internal/websocket"
)

type Server struct {
	db          *sql.DB
	cfg         *config.Config
	hub         *ws.Hub
	pushService *push.Service
	runner      *reminder.Runner
	scheduler   *reminder.Scheduler
	rateLimiter *middleware.RateLimiter
	metrics     *metrics.Provider
	metricsMW   func(http.Handler) http.Handler
	reminderH   *handler.ReminderHandler
	pushH       *handler.PushHandler
	logger      *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	pushSvc, err := NewPushService(cfg, logger)
	if err != nil {
		return nil, err
	}

	observers := []reminder.Observer{ws.NewFeed(hub)}

	var provider *metrics.Provider
	metricsMW := func(next http.Handler) http.Handler { return next }
	if cfg.MetricsEnabled {
		provider, err = metrics.NewProvider()
		if err != nil {
			return nil, fmt.Errorf("metrics provider: %w", err)
		}
		deliveries, err := metrics.NewDeliveryMetrics(provider.MeterProvider(), cfg.MetricsNamespace)
		if err != nil {
			return nil, fmt.Errorf("delivery metrics: %w", err)
		}
		observers = append(observers, deliveries)
		metricsMW, err = metrics.HTTPMiddleware(provider.MeterProvider(), cfg.MetricsNamespace)
		if err != nil {
			return nil, fmt.Errorf("http metrics: %w", err)
		}
	}

	runner := NewReminderRunner(db, pushSvc, cfg, logger, observers...)

	var sched *reminder.Scheduler
	if cfg.ReminderSchedulerEnabled {
		sched = reminder.NewScheduler(runner, cfg.ReminderHourUTC, logger)
	}

	return &Server{
		db:          db,
		cfg:         cfg,
		hub:         hub,
		pushService: pushSvc,
		runner:      runner,
		scheduler:   sched,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst),
		metrics:     provider,
		metricsMW:   metricsMW,
		reminderH:   handler.NewReminderHandler(runner, logger.With("component", "reminder_handler")),
		pushH: handler.NewPushHandler(store.NewUserStore(db), store.NewPushStore(db), pushSvc, hub,
			logger.With("component", "push_handler")),
		logger: logger,
	}, nil
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Runner returns the reminder runner.
func (s *Server) Runner() *reminder.Runner {
	return s.runner
}

// Start launches background work: the reminder scheduler when enabled.
func (s *Server) Start(ctx context.Context) {
	if s.scheduler != nil {
		s.scheduler.Start(ctx)
	}
}

// Shutdown stops background work and flushes metrics.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.metrics != nil {
		return s.metrics.Shutdown(ctx)
	}
	return nil
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Service routes
	protected := middleware.RequireServiceKey(s.cfg.ServiceKey)
	limited := middleware.RateLimit(s.rateLimiter, middleware.RealIP)

	mux.Handle("POST /api/reminders/run", protected(http.HandlerFunc(s.reminderH.Run)))
	mux.Handle("POST /api/push/test", limited(protected(http.HandlerFunc(s.reminderH.TestSend))))

	mux.Handle("PUT /api/users/{id}/subscription", limited(protected(http.HandlerFunc(s.pushH.PutSubscription))))
	mux.Handle("GET /api/users/{id}/subscription", protected(http.HandlerFunc(s.pushH.GetSubscription)))
	mux.Handle("DELETE /api/users/{id}/subscription", protected(http.HandlerFunc(s.pushH.DeleteSubscription)))

	// WebSocket
	mux.Handle("GET /ws", protected(ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"), s.cfg.WSOriginPatterns)))

	// Metrics read r.Pattern after the mux has matched, so they wrap the mux directly.
	return middleware.RequestLogger(s.logger.With("component", "http"))(s.metricsMW(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

