package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"readiness-workers/internal/common/logger"
	"readiness-workers/internal/common/metrics"
)

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		duration := time.Since(start)
		metrics.HTTPRequestDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).
			Observe(duration.Seconds())

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"durationMs": duration.Milliseconds(),
			"clientIp":   c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}
		if status >= http.StatusInternalServerError {
			log.Error("request failed", fields)
			return
		}
		log.Debug("request served", fields)
	}
}

func recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panicked", map[string]interface{}{
					"path":  c.Request.URL.Path,
					"panic": fmt.Sprintf("%v", r),
				})
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{"code": "INTERNAL_ERROR", "message": "Unexpected error"},
				})
			}
		}()
		c.Next()
	}
}

func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
