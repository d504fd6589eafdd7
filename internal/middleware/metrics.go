package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lunia-systems/lunia-console/internal/pkg/metrics"
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.LocalRequests.WithLabelValues(route).Observe(duration)
	}
}
