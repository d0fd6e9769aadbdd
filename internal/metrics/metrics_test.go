package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/himmelstrup/timepush/internal/reminder"
	"github.com/himmelstrup/timepush/internal/webpush"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertMetricLine matches a Prometheus sample by name, a partial label
// pattern and value, tolerating the OTel scope labels the exporter adds.
func assertMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func scrape(t *testing.T, p *Provider) string {
	t.Helper()
	w := httptest.NewRecorder()
	p.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestProviderShutdown(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)
	assert.NotNil(t, p.MeterProvider())
	assert.NoError(t, p.Shutdown(context.Background()))

	assert.NoError(t, (&Provider{}).Shutdown(context.Background()))
}

func TestDeliveryMetrics(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	dm, err := NewDeliveryMetrics(p.MeterProvider(), "timepush")
	require.NoError(t, err)

	var _ reminder.Observer = dm

	ctx := context.Background()
	dm.Delivery(ctx, reminder.Delivery{Trigger: reminder.TriggerSweep, Outcome: webpush.Outcome{Kind: webpush.Delivered}})
	dm.Delivery(ctx, reminder.Delivery{Trigger: reminder.TriggerSweep, Outcome: webpush.Outcome{Kind: webpush.Delivered}})
	dm.Delivery(ctx, reminder.Delivery{Trigger: reminder.TriggerSweep, Outcome: webpush.Outcome{Kind: webpush.Rejected, Status: 410}})
	dm.Delivery(ctx, reminder.Delivery{Trigger: reminder.TriggerTest, Outcome: webpush.Outcome{Kind: webpush.Failed}})
	dm.RunFinished(ctx, reminder.TriggerSweep, 250*time.Millisecond)

	out := scrape(t, p)
	assertMetricLine(t, out, `timepush_deliveries_total`, `outcome="delivered".*trigger="sweep"`, `2`)
	assertMetricLine(t, out, `timepush_deliveries_total`, `outcome="rejected".*trigger="sweep"`, `1`)
	assertMetricLine(t, out, `timepush_deliveries_total`, `outcome="failed".*trigger="test"`, `1`)
	assertMetricLine(t, out, `timepush_run_duration_seconds_count`, `trigger="sweep"`, `1`)
}

func TestHTTPMiddleware(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	mw, err := HTTPMiddleware(p.MeterProvider(), "timepush")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/{id}/subscription", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := mw(mux)

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/"+id+"/subscription", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	out := scrape(t, p)
	assertMetricLine(t, out, `timepush_http_requests_total`, `route="GET /api/users/\{id\}/subscription".*status_code="404"`, `2`)
}
