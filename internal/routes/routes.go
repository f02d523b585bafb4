package routes

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stakereferral/internal/handlers"
	"stakereferral/internal/middleware"
)

// Options configures optional router features
type Options struct {
	// Events is mounted at /ws/events when set.
	Events http.Handler
	// RateLimit enables per-caller rate limiting when set.
	RateLimit *middleware.RateLimiterConfig
	// Context bounds background router work such as limiter cleanup.
	// Nil runs it for the life of the process.
	Context context.Context
}

// allowedOrigins reads ALLOWED_ORIGINS, a comma-separated list such as
// "http://localhost:3000,http://localhost:3001"
func allowedOrigins() map[string]bool {
	out := make(map[string]bool)
	for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			out[trimmed] = true
		}
	}
	return out
}

func cors(origins map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.Request.Header.Get("Origin"); origins[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		// 确保包含所有必要的请求头
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, Origin, Cache-Control, X-Requested-With, "+
			handlers.HeaderCaller+", "+handlers.HeaderOperatorIndex+", "+handlers.HeaderOperatorProof)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.Metrics(), cors(allowedOrigins()))

	r.GET("/health", handlers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if opts.Events != nil {
		r.GET("/ws/events", gin.WrapH(opts.Events))
	}

	if opts.RateLimit != nil {
		ctx := opts.Context
		if ctx == nil {
			ctx = context.Background()
		}
		r.Use(middleware.RateLimiterMiddleware(ctx, *opts.RateLimit))
	}

	SetupRegistryRoutes(r)
	SetupPartnerRoutes(r)
	SetupProxyRoutes(r)
	SetupTokenAccountRoutes(r)

	return r
}
