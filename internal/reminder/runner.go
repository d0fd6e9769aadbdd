package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/himmelstrup/timepush/internal/model"
	"github.com/himmelstrup/timepush/internal/push"
	"github.com/himmelstrup/timepush/internal/webpush"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrNoSubscriptions = errors.New("user has no push subscriptions")
)

const (
	TriggerSweep = "sweep"
	TriggerTest  = "test"

	dateLayout = "2006-01-02"

	// deliveryRetention bounds how long reminder records are kept.
	deliveryRetention = 90
)

type Users interface {
	ListActive() ([]model.User, error)
	GetByID(id string) (*model.User, error)
}

type Subscriptions interface {
	ListByUser(userID string) ([]model.PushSubscription, error)
	DeleteByID(id int64) error
}

type TimeLogs interface {
	ListForDay(userID string, day time.Time) ([]model.TimeLog, error)
}

type Deliveries interface {
	Record(userID, date string, sentAt time.Time) error
	WasSent(userID, date string) (bool, error)
	CleanupBefore(date string) error
}

// Sender delivers a notification to a subscription as stored in the database.
type Sender interface {
	SendStored(ctx context.Context, raw json.RawMessage, n webpush.Notification) (webpush.Subscription, webpush.Outcome)
}

// Stores groups the datastore access a Runner needs.
type Stores struct {
	Users         Users
	Subscriptions Subscriptions
	TimeLogs      TimeLogs
	Deliveries    Deliveries
}

// Delivery describes one send attempt, as passed to observers.
type Delivery struct {
	Trigger  string
	UserID   string
	Endpoint string
	Outcome  webpush.Outcome
}

// Observer is notified of every send attempt and every finished run.
type Observer interface {
	Delivery(ctx context.Context, d Delivery)
	RunFinished(ctx context.Context, trigger string, elapsed time.Duration)
}

// Report summarizes one reminder sweep.
type Report struct {
	Date                string       `json:"date"`
	IsWorkday           bool         `json:"isWorkday"`
	UsersProcessed      int          `json:"usersProcessed"`
	NotificationsSent   int          `json:"notificationsSent"`
	NotificationsFailed int          `json:"notificationsFailed"`
	Errors              []string     `json:"errors,omitempty"`
	Message             string       `json:"message,omitempty"`
	Users               []UserResult `json:"users,omitempty"`
}

// UserResult is the per-user detail of a sweep.
type UserResult struct {
	UserID        string               `json:"userId"`
	Name          string               `json:"name"`
	TotalHours    float64              `json:"totalHours"`
	LogsCount     int                  `json:"logsCount"`
	NeedsReminder bool                 `json:"needsReminder"`
	Subscriptions int                  `json:"subscriptions"`
	Sent          int                  `json:"sent"`
	Skipped       string               `json:"skipped,omitempty"`
	Error         string               `json:"error,omitempty"`
	Results       []SubscriptionResult `json:"results,omitempty"`
}

// SubscriptionResult is the outcome for one subscription. Endpoint is
// truncated for display.
type SubscriptionResult struct {
	Endpoint string          `json:"endpoint"`
	Outcome  webpush.Outcome `json:"outcome"`
	Removed  bool            `json:"removed,omitempty"`
}

// TestReport summarizes one test send.
type TestReport struct {
	UserID              string               `json:"userId"`
	Name                string               `json:"name"`
	NotificationsSent   int                  `json:"notificationsSent"`
	NotificationsFailed int                  `json:"notificationsFailed"`
	Errors              []string             `json:"errors,omitempty"`
	Results             []SubscriptionResult `json:"results"`
}

// Runner executes reminder sweeps and test sends. Users and their
// subscriptions are processed sequentially; a failed send never stops the
// run.
type Runner struct {
	stores       Stores
	sender       Sender
	logger       *slog.Logger
	threshold    float64
	dedupe       bool
	cleanupStale bool
	now          func() time.Time
	observers    []Observer
}

type Option func(*Runner)

// WithThreshold sets the hours below which a user is reminded.
func WithThreshold(hours float64) Option {
	return func(r *Runner) {
		r.threshold = hours
	}
}

// WithDedupe skips users already reminded on the processed date.
func WithDedupe(enabled bool) Option {
	return func(r *Runner) {
		r.dedupe = enabled
	}
}

// WithCleanupStale deletes subscriptions that the push service reports as
// gone, or that cannot be parsed, after a sweep sends to them.
func WithCleanupStale(enabled bool) Option {
	return func(r *Runner) {
		r.cleanupStale = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

func WithObserver(o Observer) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, o)
	}
}

func NewRunner(stores Stores, sender Sender, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		stores:    stores,
		sender:    sender,
		logger:    logger.With("component", "reminder"),
		threshold: DefaultThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sweeps the current UTC day.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	return r.RunFor(ctx, r.now().UTC())
}

// RunFor sweeps the calendar day of date. Only a failure to list users is
// returned as an error; everything else is recorded in the report.
func (r *Runner) RunFor(ctx context.Context, date time.Time) (*Report, error) {
	start := time.Now()
	defer func() { r.runFinished(ctx, TriggerSweep, time.Since(start)) }()

	day := date.Format(dateLayout)
	report := &Report{Date: day, IsWorkday: IsWorkday(date)}

	if !report.IsWorkday {
		report.Message = "not a workday"
		r.logger.Info("reminder sweep skipped", "date", day, "reason", report.Message)
		return report, nil
	}

	users, err := r.stores.Users.ListActive()
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := r.sweepUser(ctx, u, date, day, report)
		report.UsersProcessed++
		report.Users = append(report.Users, result)
	}

	if r.stores.Deliveries != nil {
		cutoff := date.AddDate(0, 0, -deliveryRetention).Format(dateLayout)
		if err := r.stores.Deliveries.CleanupBefore(cutoff); err != nil {
			r.logger.Warn("cleanup reminder deliveries", "error", err)
		}
	}

	r.logger.Info("reminder sweep finished",
		"date", day,
		"users", report.UsersProcessed,
		"sent", report.NotificationsSent,
		"failed", report.NotificationsFailed,
	)
	return report, nil
}

func (r *Runner) sweepUser(ctx context.Context, u model.User, date time.Time, day string, report *Report) UserResult {
	result := UserResult{UserID: u.ID, Name: u.Name}
	fail := func(err error) UserResult {
		result.Error = err.Error()
		report.Errors = append(report.Errors, fmt.Sprintf("user %s: %v", u.Name, err))
		r.logger.Error("reminder sweep user", "user_id", u.ID, "error", err)
		return result
	}

	logs, err := r.stores.TimeLogs.ListForDay(u.ID, date)
	if err != nil {
		return fail(fmt.Errorf("list time logs: %w", err))
	}
	result.LogsCount = len(logs)
	result.TotalHours = model.TotalHours(logs)
	result.NeedsReminder = NeedsReminder(result.TotalHours, r.threshold)
	if !result.NeedsReminder {
		result.Skipped = "enough hours logged"
		return result
	}

	if r.dedupe && r.stores.Deliveries != nil {
		sent, err := r.stores.Deliveries.WasSent(u.ID, day)
		if err != nil {
			return fail(fmt.Errorf("check reminder delivery: %w", err))
		}
		if sent {
			result.Skipped = "already reminded"
			return result
		}
	}

	subs, err := r.stores.Subscriptions.ListByUser(u.ID)
	if err != nil {
		return fail(fmt.Errorf("list subscriptions: %w", err))
	}
	result.Subscriptions = len(subs)
	if len(subs) == 0 {
		result.Skipped = "no subscriptions"
		return result
	}

	n := ReminderNotification(result.TotalHours)
	for _, s := range subs {
		sr := r.send(ctx, TriggerSweep, u, s, n)
		if sr.Outcome.Delivered() {
			result.Sent++
			report.NotificationsSent++
		} else {
			report.NotificationsFailed++
			report.Errors = append(report.Errors, describeFailure(u, sr))
			if r.cleanupStale && sr.Outcome.Stale() {
				if err := r.stores.Subscriptions.DeleteByID(s.ID); err != nil {
					r.logger.Warn("delete stale subscription", "user_id", u.ID, "error", err)
				} else {
					sr.Removed = true
					r.logger.Info("deleted stale subscription", "user_id", u.ID, "endpoint", sr.Endpoint)
				}
			}
		}
		result.Results = append(result.Results, sr)
	}

	if result.Sent > 0 && r.stores.Deliveries != nil {
		if err := r.stores.Deliveries.Record(u.ID, day, r.now()); err != nil {
			r.logger.Warn("record reminder delivery", "user_id", u.ID, "error", err)
		}
	}
	return result
}

// TestSend sends the test notification to every subscription of userID,
// regardless of calendar or logged hours.
func (r *Runner) TestSend(ctx context.Context, userID string) (*TestReport, error) {
	start := time.Now()
	defer func() { r.runFinished(ctx, TriggerTest, time.Since(start)) }()

	u, err := r.stores.Users.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil || !u.IsActive {
		return nil, ErrUserNotFound
	}

	subs, err := r.stores.Subscriptions.ListByUser(u.ID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil, ErrNoSubscriptions
	}

	report := &TestReport{UserID: u.ID, Name: u.Name, Results: make([]SubscriptionResult, 0, len(subs))}
	n := TestNotification(u.Name)
	for _, s := range subs {
		sr := r.send(ctx, TriggerTest, *u, s, n)
		if sr.Outcome.Delivered() {
			report.NotificationsSent++
		} else {
			report.NotificationsFailed++
			report.Errors = append(report.Errors, describeFailure(*u, sr))
		}
		report.Results = append(report.Results, sr)
	}

	r.logger.Info("test send finished",
		"user_id", u.ID,
		"sent", report.NotificationsSent,
		"failed", report.NotificationsFailed,
	)
	return report, nil
}

func (r *Runner) send(ctx context.Context, trigger string, u model.User, s model.PushSubscription, n webpush.Notification) SubscriptionResult {
	sub, outcome := r.sender.SendStored(ctx, s.Subscription, n)
	sr := SubscriptionResult{Endpoint: push.TruncateEndpoint(sub.Endpoint), Outcome: outcome}
	for _, o := range r.observers {
		o.Delivery(ctx, Delivery{Trigger: trigger, UserID: u.ID, Endpoint: sub.Endpoint, Outcome: outcome})
	}
	return sr
}

func (r *Runner) runFinished(ctx context.Context, trigger string, elapsed time.Duration) {
	for _, o := range r.observers {
		o.RunFinished(ctx, trigger, elapsed)
	}
}

func describeFailure(u model.User, sr SubscriptionResult) string {
	if sr.Outcome.Kind == webpush.Rejected {
		return fmt.Sprintf("user %s (%s): rejected with status %d: %s", u.Name, sr.Endpoint, sr.Outcome.Status, sr.Outcome.Message)
	}
	return fmt.Sprintf("user %s (%s): %s", u.Name, sr.Endpoint, sr.Outcome.Message)
}
