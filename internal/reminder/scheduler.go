package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper runs one reminder sweep.
type Sweeper interface {
	Run(ctx context.Context) (*Report, error)
}

// Scheduler fires a sweep once per weekday at a fixed UTC hour. Holidays are
// left to the sweep itself.
type Scheduler struct {
	mu       sync.RWMutex
	sweeper  Sweeper
	logger   *slog.Logger
	hour     int
	interval time.Duration
	now      func() time.Time
	lastRun  string
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a scheduler firing at hour (0-23, UTC).
func NewScheduler(sweeper Sweeper, hour int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		logger:   logger.With("component", "scheduler"),
		hour:     hour,
		interval: time.Minute,
		now:      time.Now,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("reminder scheduler started", "hour_utc", s.hour)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler, waiting for a running sweep.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// due reports whether a sweep should fire at now, given the date of the
// last one.
func (s *Scheduler) due(now time.Time) bool {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return now.Hour() == s.hour && now.Format(dateLayout) != s.lastRun
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()
	if !s.due(now) {
		return
	}
	s.lastRun = now.Format(dateLayout)

	report, err := s.sweeper.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled reminder sweep", "error", err)
		return
	}
	s.logger.Info("scheduled reminder sweep",
		"date", report.Date,
		"sent", report.NotificationsSent,
		"failed", report.NotificationsFailed,
	)
}
