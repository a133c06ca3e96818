package observability

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PrometheusHandler serves the metrics registry, or 503 until telemetry is set up
func PrometheusHandler(handler http.Handler) gin.HandlerFunc {
	if handler == nil {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"data":    gin.H{"message": "metrics are not available", "error": "metrics_unavailable"},
			})
		}
	}
	return gin.WrapH(handler)
}
