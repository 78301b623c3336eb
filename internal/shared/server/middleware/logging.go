package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"mailmerge-backend/internal/shared/telemetry"
)

// Context keys handlers set so the request log can correlate them.
const (
	BatchIDKey  = "batchId"
	FileNameKey = "fileName"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if batchID := c.GetString(BatchIDKey); batchID != "" {
			fields["batch_id"] = batchID
		}
		if name := c.GetString(FileNameKey); name != "" {
			fields["file_name"] = name
		}
		telemetry.Info("request.complete", fields)
	}
}
