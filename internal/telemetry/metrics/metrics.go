// Package metrics holds the Prometheus collectors for the session manager and the dev backend.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "remindme"

// Login outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Session counts session lifecycle transitions and requests parked behind a refresh.
// A nil *Session is valid and records nothing.
type Session struct {
	Logins         *prometheus.CounterVec
	Logouts        prometheus.Counter
	Refreshes      *prometheus.CounterVec
	Redirects      prometheus.Counter
	QueuedRequests prometheus.Counter
	Authenticated  prometheus.Gauge
}

// NewSession creates the session collectors and registers them with reg. A nil reg skips registration.
func NewSession(reg prometheus.Registerer) *Session {
	m := &Session{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		Logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "logouts_total",
			Help: "Explicit logouts.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "refreshes_total",
			Help: "Refresh attempts by outcome.",
		}, []string{"outcome"}),
		Redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "login_redirects_total",
			Help: "Redirects to the login screen after the session ended.",
		}),
		QueuedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "queued_requests_total",
			Help: "Requests that waited on an in-flight refresh or teardown.",
		}),
		Authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session", Name: "authenticated",
			Help: "1 while a session is installed, else 0.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Logins, m.Logouts, m.Refreshes, m.Redirects, m.QueuedRequests, m.Authenticated)
	}
	return m
}

func (m *Session) Login(outcome string) {
	if m != nil {
		m.Logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Session) Logout() {
	if m != nil {
		m.Logouts.Inc()
	}
}

func (m *Session) Refresh(ok bool) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeError
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

func (m *Session) Redirect() {
	if m != nil {
		m.Redirects.Inc()
	}
}

func (m *Session) Queued() {
	if m != nil {
		m.QueuedRequests.Inc()
	}
}

// SetAuthenticated flips the authenticated gauge.
func (m *Session) SetAuthenticated(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.Authenticated.Set(1)
	} else {
		m.Authenticated.Set(0)
	}
}

// HTTP counts requests served by the dev backend.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTP creates the HTTP collectors and registers them with reg. A nil reg skips registration.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	m := &HTTP{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration)
	}
	return m
}

// Observe records one served request.
func (m *HTTP) Observe(route, method string, status int, seconds float64) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.Duration.WithLabelValues(route, method).Observe(seconds)
}

// Handler returns the /metrics handler for g, or the default gatherer when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
