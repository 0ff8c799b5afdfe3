package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"remindme/internal/telemetry"
)

// EventHTTPRequest is the event type emitted for each served request.
const EventHTTPRequest = "http_request"

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// Telemetry returns a middleware that emits a telemetry event after each request.
// Best-effort: failures are logged and do not fail the request. If emitter is nil, the middleware no-ops.
// skipRoutes is the set of route templates to not emit (e.g. /health).
func Telemetry(emitter telemetry.EventEmitter, skipRoutes map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if emitter == nil || skipRoutes[route] {
			return
		}
		meta := httpRequestMetadata{
			Method:     c.Request.Method,
			Route:      route,
			StatusCode: c.Writer.Status(),
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   c.ClientIP(),
		}
		metaJSON, _ := json.Marshal(meta)
		userID, _ := GetUserID(c.Request.Context())
		telemetry.EmitAsync(emitter, &telemetry.Event{
			UserID:    userID,
			EventType: EventHTTPRequest,
			Source:    "devapi",
			Metadata:  metaJSON,
		})
	}
}
