// Package config loads settings from the environment, optionally seeded from
// the nearest .env file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
	validation "github.com/jellydator/validation"

	"github.com/himmelstrup/timepush/internal/webpush"
)

const DefaultVAPIDSubject = "mailto:admin@himmelstrup.dk"

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	DBPath     string
	ServiceKey string

	ServerPort int
	LogLevel   string

	PushTimeout time.Duration
	PushTTL     time.Duration

	ReminderHourUTC          int
	ReminderThresholdHours   float64
	ReminderSchedulerEnabled bool
	ReminderDedupe           bool
	ReminderCleanupStale     bool

	MetricsEnabled   bool
	MetricsNamespace string

	RateLimitRequestsPerSec float64
	RateLimitBurst          int

	WSOriginPatterns []string
}

// Load reads the configuration. It never fails; call Validate before use.
func Load() *Config {
	loadDotEnv()

	return &Config{
		VAPIDPublicKey:  env.GetString("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: env.GetString("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    env.GetString("VAPID_SUBJECT", DefaultVAPIDSubject),

		DBPath:     env.GetString("DB_PATH", "timepush.db"),
		ServiceKey: env.GetString("SERVICE_KEY", ""),

		ServerPort: env.GetInt("SERVER_PORT", 8080),
		LogLevel:   env.GetString("LOG_LEVEL", "info"),

		PushTimeout: env.GetDuration("PUSH_TIMEOUT_SECONDS", 10, time.Second),
		PushTTL:     env.GetDuration("PUSH_TTL_SECONDS", 86400, time.Second),

		ReminderHourUTC:          env.GetInt("REMINDER_HOUR_UTC", 16),
		ReminderThresholdHours:   env.GetFloat64("REMINDER_THRESHOLD_HOURS", 6),
		ReminderSchedulerEnabled: env.GetBool("REMINDER_SCHEDULER_ENABLED", false),
		ReminderDedupe:           env.GetBool("REMINDER_DEDUPE", false),
		ReminderCleanupStale:     env.GetBool("REMINDER_CLEANUP_STALE", false),

		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "timepush"),

		RateLimitRequestsPerSec: env.GetFloat64("RATE_LIMIT_RPS", 1),
		RateLimitBurst:          env.GetInt("RATE_LIMIT_BURST", 5),

		WSOriginPatterns: splitList(env.GetString("WS_ORIGIN_PATTERNS", "")),
	}
}

// VAPIDKeys returns the configured VAPID identity.
func (c *Config) VAPIDKeys() webpush.KeyPair {
	return webpush.KeyPair{
		PublicKey:  c.VAPIDPublicKey,
		PrivateKey: c.VAPIDPrivateKey,
		Subject:    c.VAPIDSubject,
	}
}

// Validate checks what every command needs: VAPID keys and sane ranges.
func (c *Config) Validate() error {
	var missing []string
	if c.VAPIDPublicKey == "" {
		missing = append(missing, "VAPID_PUBLIC_KEY")
	}
	if c.VAPIDPrivateKey == "" {
		missing = append(missing, "VAPID_PRIVATE_KEY")
	}
	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}
	return c.validateRanges()
}

// ValidateServer additionally requires the service key guarding the HTTP API.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ServiceKey == "" {
		return &MissingError{Vars: []string{"SERVICE_KEY"}}
	}
	return nil
}

// validateRanges checks bounds. Min skips zero values, so fields that must be
// non-zero also carry Required.
func (c *Config) validateRanges() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.VAPIDSubject, validation.Required, validation.By(contactURI)),
		validation.Field(&c.DBPath, validation.Required),
		validation.Field(&c.ServerPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.PushTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.PushTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.ReminderHourUTC, validation.Min(0), validation.Max(23)),
		validation.Field(&c.ReminderThresholdHours, validation.Min(0.0), validation.Max(24.0)),
		validation.Field(&c.RateLimitRequestsPerSec, validation.Required, validation.Min(0.0)),
		validation.Field(&c.RateLimitBurst, validation.Required, validation.Min(1)),
	)
}

func contactURI(value any) error {
	s, _ := value.(string)
	if s == "" || strings.HasPrefix(s, "mailto:") || strings.HasPrefix(s, "https://") {
		return nil
	}
	return validation.NewError("validation_contact_uri", "must be a mailto: or https: URI")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadDotEnv loads the first .env file found walking up from the working
// directory. Variables already set in the environment win.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
