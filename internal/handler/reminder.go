package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/jellydator/validation"

	"github.com/himmelstrup/timepush/internal/reminder"
)

// ReminderRunner is the part of reminder.Runner the HTTP layer drives.
type ReminderRunner interface {
	Run(ctx context.Context) (*reminder.Report, error)
	TestSend(ctx context.Context, userID string) (*reminder.TestReport, error)
}

type ReminderHandler struct {
	runner ReminderRunner
	logger *slog.Logger
}

func NewReminderHandler(runner ReminderRunner, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{runner: runner, logger: logger}
}

// Run handles POST /api/reminders/run
func (h *ReminderHandler) Run(w http.ResponseWriter, r *http.Request) {
	// A dropped trigger connection must not abort a half-finished sweep.
	report, err := h.runner.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		h.logger.Error("reminder run", "error", err)
		writeError(w, http.StatusInternalServerError, "reminder run failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type testSendRequest struct {
	UserID string `json:"userId"`
}

func (req *testSendRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.UserID,
			validation.Required.Error("userId is required"),
			validation.Length(1, 64).Error("userId must be at most 64 characters"),
		),
	)
}

// TestSend handles POST /api/push/test
func (h *ReminderHandler) TestSend(w http.ResponseWriter, r *http.Request) {
	var req testSendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.runner.TestSend(context.WithoutCancel(r.Context()), req.UserID)
	switch {
	case errors.Is(err, reminder.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
		return
	case errors.Is(err, reminder.ErrNoSubscriptions):
		writeError(w, http.StatusNotFound, "no push subscriptions found for user")
		return
	case err != nil:
		h.logger.Error("test send", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "test send failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
