package handler

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/himmelstrup/timepush/internal/database"
	"github.com/himmelstrup/timepush/internal/model"
	"github.com/himmelstrup/timepush/internal/reminder"
	"github.com/himmelstrup/timepush/internal/store"
	"github.com/himmelstrup/timepush/internal/webpush"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

type fakeRunner struct {
	report     *reminder.Report
	testReport *reminder.TestReport
	err        error
	gotUser    string
	ctxErr     error
}

func (f *fakeRunner) Run(ctx context.Context) (*reminder.Report, error) {
	f.ctxErr = ctx.Err()
	return f.report, f.err
}

func (f *fakeRunner) TestSend(ctx context.Context, userID string) (*reminder.TestReport, error) {
	f.gotUser = userID
	return f.testReport, f.err
}

func TestReminderRun(t *testing.T) {
	runner := &fakeRunner{report: &reminder.Report{
		Date:              "2025-03-04",
		IsWorkday:         true,
		UsersProcessed:    2,
		NotificationsSent: 1,
	}}
	h := NewReminderHandler(runner, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/reminders/run", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, runner.ctxErr, "run must survive client disconnect")

	var got map[string]any
	decodeBody(t, rec, &got)
	assert.Equal(t, "2025-03-04", got["date"])
	assert.Equal(t, true, got["isWorkday"])
	assert.Equal(t, float64(2), got["usersProcessed"])
	assert.Equal(t, float64(1), got["notificationsSent"])
	assert.Equal(t, float64(0), got["notificationsFailed"])
}

func TestReminderRunError(t *testing.T) {
	h := NewReminderHandler(&fakeRunner{err: errors.New("db down")}, discardLogger())

	rec := httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/reminders/run", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestTestSend(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "ok", body: `{"userId":"u-1"}`, wantStatus: http.StatusOK},
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest, wantError: "invalid JSON"},
		{name: "missing user", body: `{}`, wantStatus: http.StatusBadRequest, wantError: "userId is required"},
		{name: "too long", body: `{"userId":"` + strings.Repeat("x", 65) + `"}`, wantStatus: http.StatusBadRequest, wantError: "at most 64"},
		{name: "unknown user", body: `{"userId":"u-1"}`, err: reminder.ErrUserNotFound, wantStatus: http.StatusNotFound, wantError: "user not found"},
		{name: "no subscriptions", body: `{"userId":"u-1"}`, err: reminder.ErrNoSubscriptions, wantStatus: http.StatusNotFound, wantError: "no push subscriptions"},
		{name: "store failure", body: `{"userId":"u-1"}`, err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantError: "test send failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{
				testReport: &reminder.TestReport{UserID: "u-1", Name: "Mette", NotificationsSent: 1},
				err:        tt.err,
			}
			h := NewReminderHandler(runner, discardLogger())

			rec := httptest.NewRecorder()
			h.TestSend(rec, httptest.NewRequest(http.MethodPost, "/api/push/test", strings.NewReader(tt.body)))

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			var got map[string]any
			decodeBody(t, rec, &got)
			if tt.wantError != "" {
				assert.Contains(t, got["error"], tt.wantError)
				return
			}
			assert.Equal(t, "u-1", runner.gotUser)
			assert.Equal(t, "Mette", got["name"])
			assert.Equal(t, float64(1), got["notificationsSent"])
		})
	}
}

type staticKey string

func (k staticKey) VAPIDPublicKey() string { return string(k) }

type pushFixture struct {
	db      *sql.DB
	handler *PushHandler
	mux     *http.ServeMux
	userID  string
}

func newPushFixture(t *testing.T) *pushFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	u, err := users.Create("Mette", "mette@example.com")
	require.NoError(t, err)

	h := NewPushHandler(users, store.NewPushStore(db), staticKey("BPUB"), nil, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/push/vapid-key", h.GetVAPIDKey)
	mux.HandleFunc("PUT /api/users/{id}/subscription", h.PutSubscription)
	mux.HandleFunc("GET /api/users/{id}/subscription", h.GetSubscription)
	mux.HandleFunc("DELETE /api/users/{id}/subscription", h.DeleteSubscription)
	return &pushFixture{db: db, handler: h, mux: mux, userID: u.ID}
}

func (f *pushFixture) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func subscriptionJSON(t *testing.T, endpoint string) string {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	b, err := json.Marshal(webpush.Subscription{
		Endpoint: endpoint,
		Keys: webpush.Keys{
			P256dh: webpush.Encode(priv.PublicKey().Bytes()),
			Auth:   webpush.Encode(auth),
		},
	})
	require.NoError(t, err)
	return string(b)
}

func TestGetVAPIDKey(t *testing.T) {
	f := newPushFixture(t)
	rec := f.do(http.MethodGet, "/api/push/vapid-key", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"publicKey":"BPUB"}`, rec.Body.String())
}

func TestSubscriptionLifecycle(t *testing.T) {
	f := newPushFixture(t)
	path := "/api/users/" + f.userID + "/subscription"

	rec := f.do(http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	first := subscriptionJSON(t, "https://fcm.googleapis.com/fcm/send/first")
	rec = f.do(http.MethodPut, path, first)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	second := subscriptionJSON(t, "https://updates.push.services.mozilla.com/wpush/v2/second")
	rec = f.do(http.MethodPut, path, second)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.PushSubscription
	decodeBody(t, rec, &got)
	assert.Equal(t, f.userID, got.UserID)
	assert.JSONEq(t, second, string(got.Subscription), "latest subscription wins")

	rec = f.do(http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutSubscriptionNormalizesStringEncoding(t *testing.T) {
	f := newPushFixture(t)
	obj := subscriptionJSON(t, "https://fcm.googleapis.com/fcm/send/abc")
	wrapped, err := json.Marshal(obj)
	require.NoError(t, err)

	rec := f.do(http.MethodPut, "/api/users/"+f.userID+"/subscription", string(wrapped))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got model.PushSubscription
	decodeBody(t, rec, &got)
	assert.JSONEq(t, obj, string(got.Subscription))
}

func TestPutSubscriptionRejects(t *testing.T) {
	f := newPushFixture(t)
	valid := subscriptionJSON(t, "https://fcm.googleapis.com/fcm/send/abc")

	tests := []struct {
		name       string
		user       string
		body       string
		wantStatus int
	}{
		{name: "not json", user: f.userID, body: "nope", wantStatus: http.StatusBadRequest},
		{name: "array", user: f.userID, body: "[]", wantStatus: http.StatusBadRequest},
		{name: "missing keys", user: f.userID, body: `{"endpoint":"https://fcm.googleapis.com/x"}`, wantStatus: http.StatusBadRequest},
		{name: "short auth", user: f.userID, body: `{"endpoint":"https://fcm.googleapis.com/x","keys":{"p256dh":"AAAA","auth":"AAAA"}}`, wantStatus: http.StatusBadRequest},
		{name: "unknown user", user: "missing", body: valid, wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPut, "/api/users/"+tt.user+"/subscription", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	sub, err := store.NewPushStore(f.db).GetByUser(f.userID)
	require.NoError(t, err)
	assert.Nil(t, sub, "rejected bodies are never stored")
}

func TestGetSubscriptionUnknownUser(t *testing.T) {
	f := newPushFixture(t)
	rec := f.do(http.MethodGet, "/api/users/missing/subscription", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "user not found")
}
