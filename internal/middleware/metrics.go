package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"stakereferral/pkg/metrics"
)

// Metrics counts requests by route template and status code. Unmatched
// routes are grouped under "unmatched".
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
