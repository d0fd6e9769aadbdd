package server

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/himmelstrup/timepush/internal/config"
	"github.com/himmelstrup/timepush/internal/push"
	"github.com/himmelstrup/timepush/internal/reminder"
	"github.com/himmelstrup/timepush/internal/store"
	"github.com/himmelstrup/timepush/internal/webpush"
)

// NewPushService builds the process-wide push service from configuration.
func NewPushService(cfg *config.Config, logger *slog.Logger) (*push.Service, error) {
	return push.NewService(cfg.VAPIDKeys(), logger,
		webpush.WithHTTPClient(&http.Client{Timeout: cfg.PushTimeout}),
		webpush.WithTTL(cfg.PushTTL),
	)
}

// NewReminderRunner wires a reminder runner to the SQLite stores.
func NewReminderRunner(db *sql.DB, svc *push.Service, cfg *config.Config, logger *slog.Logger, observers ...reminder.Observer) *reminder.Runner {
	stores := reminder.Stores{
		Users:         store.NewUserStore(db),
		Subscriptions: store.NewPushStore(db),
		TimeLogs:      store.NewTimeLogStore(db),
		Deliveries:    store.NewDeliveryStore(db),
	}

	opts := []reminder.Option{
		reminder.WithThreshold(cfg.ReminderThresholdHours),
		reminder.WithDedupe(cfg.ReminderDedupe),
		reminder.WithCleanupStale(cfg.ReminderCleanupStale),
	}
	for _, o := range observers {
		opts = append(opts, reminder.WithObserver(o))
	}
	return reminder.NewRunner(stores, svc, logger, opts...)
}
