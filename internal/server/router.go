// Package server wires the HTTP routes of the development backend: the auth endpoints,
// reminders and API keys (in memory), health, metrics and the dev-only verification-code lookup.
package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"remindme/internal/api"
	"remindme/internal/health"
	identityhandler "remindme/internal/identity/handler"
	identityservice "remindme/internal/identity/service"
	"remindme/internal/server/middleware"
	"remindme/internal/telemetry"
	"remindme/internal/telemetry/metrics"
	"remindme/internal/verification"
)

// Deps holds the dependencies of the router.
type Deps struct {
	// Auth is the auth service for register, verify, login, refresh and logout. Required.
	Auth *identityservice.AuthService
	// Codes enables GET /dev/verification-code when non-nil. Leave nil in production.
	Codes verification.Store
	// Health backs GET /health. If nil, /health reports ok with no checks.
	Health *health.Checker
	// Metrics records per-route request metrics. If nil, requests are not measured.
	Metrics *metrics.HTTP
	// Gatherer is served on GET /metrics. If nil, the default Prometheus gatherer is served.
	Gatherer prometheus.Gatherer
	// Emitter receives an http_request event per request. If nil, no events are emitted.
	Emitter telemetry.EventEmitter
	// TracerProvider creates server spans. If nil, the global provider is used.
	TracerProvider trace.TracerProvider
	// Now is the clock for reminder validation. Defaults to time.Now.
	Now func() time.Time
}

// NewRouter returns the gin engine serving the backend API consumed by remindctl.
func NewRouter(deps Deps) *gin.Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	checker := deps.Health
	if checker == nil {
		checker = health.NewChecker(0)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing(deps.TracerProvider))
	r.Use(middleware.Logging())
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.Telemetry(deps.Emitter, map[string]bool{"/health": true, "/metrics": true}))

	r.GET("/health", health.Handler(checker))
	r.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))

	requireAuth := middleware.Auth(deps.Auth)
	apiGroup := r.Group("/api")
	var dev *gin.RouterGroup
	if deps.Codes != nil {
		dev = r.Group("/dev")
	}
	identityhandler.NewHandler(deps.Auth, deps.Codes).RegisterRoutes(apiGroup, requireAuth, dev)

	reminders := newReminderStore(now)
	keys := newKeyStore(now)
	protected := r.Group("", requireAuth)
	protected.GET(api.PathReminders, reminders.list)
	protected.POST(api.PathReminders, reminders.create)
	protected.GET(api.PathKeys, keys.list)
	protected.POST(api.PathKeys, keys.create)
	protected.DELETE(api.PathKeys+"/:id", keys.revoke)

	return r
}
