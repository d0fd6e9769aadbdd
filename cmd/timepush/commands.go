package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/himmelstrup/timepush/internal/config"
	"github.com/himmelstrup/timepush/internal/database"
	"github.com/himmelstrup/timepush/internal/logging"
	"github.com/himmelstrup/timepush/internal/push"
	"github.com/himmelstrup/timepush/internal/server"
)

const (
	cleanupInterval = time.Hour
	limiterMaxIdle  = 30 * time.Minute
)

func runServe(ctx context.Context) error {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	srv, err := server.New(db, cfg, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// A sweep over many users runs inside one trigger request.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv.Start(ctx)

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup(limiterMaxIdle)
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("timepush starting", "addr", httpServer.Addr, "scheduler", cfg.ReminderSchedulerEnabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return srv.Shutdown(shutdownCtx)
}

func runReminders(ctx context.Context, out io.Writer, date string) error {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	var day time.Time
	if date != "" {
		var err error
		day, err = time.Parse(time.DateOnly, date)
		if err != nil {
			return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
		}
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	svc, err := server.NewPushService(cfg, logger)
	if err != nil {
		return err
	}
	runner := server.NewReminderRunner(db, svc, cfg, logger)

	if day.IsZero() {
		report, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, report)
	}
	report, err := runner.RunFor(ctx, day)
	if err != nil {
		return err
	}
	return printJSON(out, report)
}

func runTestSend(ctx context.Context, out io.Writer, userID string) error {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	svc, err := server.NewPushService(cfg, logger)
	if err != nil {
		return err
	}

	report, err := server.NewReminderRunner(db, svc, cfg, logger).TestSend(ctx, userID)
	if err != nil {
		return err
	}
	return printJSON(out, report)
}

func runGenerateVAPIDKeys(out io.Writer) error {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", pub, priv)
	return err
}

func runMigrate(out io.Writer) error {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	version, err := database.Version(db)
	if err != nil {
		return err
	}
	slog.Info("migrations applied", "db", cfg.DBPath, "version", version)
	_, err = fmt.Fprintf(out, "schema version %d\n", version)
	return err
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
