package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"remindme/internal/telemetry/metrics"
)

// Metrics records request count and latency per route template.
func Metrics(m *metrics.HTTP) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.Observe(c.FullPath(), c.Request.Method, c.Writer.Status(), time.Since(start).Seconds())
	}
}
