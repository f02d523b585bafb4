package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"stakereferral/pkg/metrics"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func get(r http.Handler, caller string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiterKeysByCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRouter(RateLimiterMiddleware(ctx, RateLimiterConfig{RequestsPerSecond: 0.001, Burst: 1, KeyHeader: "X-Caller"}))

	assert.Equal(t, http.StatusOK, get(r, "alice"))
	assert.Equal(t, http.StatusTooManyRequests, get(r, "alice"))
	assert.Equal(t, http.StatusOK, get(r, "bob"))
	// no header falls back to the client IP
	assert.Equal(t, http.StatusOK, get(r, ""))
	assert.Equal(t, http.StatusTooManyRequests, get(r, ""))
}

func TestRotatingCallerHeaderSharesIPBudget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRouter(RateLimiterMiddleware(ctx, RateLimiterConfig{
		RequestsPerSecond: 0.001,
		Burst:             1,
		KeyHeader:         "X-Caller",
		CallersPerIP:      2,
	}))

	assert.Equal(t, http.StatusOK, get(r, "caller-1"))
	assert.Equal(t, http.StatusOK, get(r, "caller-2"))
	for i := 3; i < 10; i++ {
		assert.Equal(t, http.StatusTooManyRequests, get(r, fmt.Sprintf("caller-%d", i)))
	}
}

func TestRotatingCallersDoNotGrowVisitors(t *testing.T) {
	m := newLimiterMap(RateLimiterConfig{RequestsPerSecond: 0.001, Burst: 1, KeyHeader: "X-Caller", CallersPerIP: 2})
	r := newRouter(m.handler())
	for i := 0; i < 20; i++ {
		get(r, fmt.Sprintf("caller-%d", i))
	}
	// the aggregate limiter plus the two callers it admitted
	assert.Len(t, m.visitors, 3)
}

func TestCleanupStopsWithContext(t *testing.T) {
	m := newLimiterMap(RateLimiterConfig{RequestsPerSecond: 1})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.cleanup(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not return after cancel")
	}
}

func TestLimiterEviction(t *testing.T) {
	m := newLimiterMap(RateLimiterConfig{RequestsPerSecond: 1})
	now := time.Now()
	m.get("old", now.Add(-2*idleLimiterTTL))
	m.get("fresh", now)

	assert.Equal(t, 1, m.evict(now))
	assert.Len(t, m.visitors, 1)
	assert.Contains(t, m.visitors, "fresh")
}

func TestMetricsCountsRoutes(t *testing.T) {
	r := newRouter(Metrics())
	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("/ping", "200"))
	get(r, "")
	get(r, "")
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("/ping", "200")))
}
