package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rivergarden/training-portal/internal/platform/ctxutil"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			fields = append(fields, "trace_id", td.TraceID, "request_id", td.RequestID)
		}
		// Logger hashes the subject.
		if sess := ctxutil.GetSession(c.Request.Context()); sess != nil {
			fields = append(fields, "subject", sess.Subject)
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, "player_session_id", id)
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
