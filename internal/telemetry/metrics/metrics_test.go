package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSession_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSession(reg)

	m.Login(OutcomeSuccess)
	m.Login(OutcomeRejected)
	m.Login(OutcomeSuccess)
	m.Refresh(true)
	m.Refresh(false)
	m.Redirect()
	m.Queued()
	m.Queued()
	m.Logout()
	m.SetAuthenticated(true)

	if got := testutil.ToFloat64(m.Logins.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Errorf("logins success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Refreshes.WithLabelValues(OutcomeError)); got != 1 {
		t.Errorf("refresh errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Redirects); got != 1 {
		t.Errorf("redirects = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueuedRequests); got != 2 {
		t.Errorf("queued = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Authenticated); got != 1 {
		t.Errorf("authenticated = %v, want 1", got)
	}
	m.SetAuthenticated(false)
	if got := testutil.ToFloat64(m.Authenticated); got != 0 {
		t.Errorf("authenticated = %v, want 0", got)
	}
}

func TestSession_Nil(t *testing.T) {
	var m *Session
	// Should not panic
	m.Login(OutcomeSuccess)
	m.Logout()
	m.Refresh(true)
	m.Redirect()
	m.Queued()
	m.SetAuthenticated(true)
}

func TestHandler_ExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg)
	h.Observe("/api/reminders", "GET", 200, 0.01)
	h.Observe("", "GET", 404, 0.001)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`remindme_http_requests_total{method="GET",route="/api/reminders",status="200"} 1`,
		`route="unmatched"`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
