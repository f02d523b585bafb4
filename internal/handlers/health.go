package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stakereferral/internal/referral"
	solanakit "stakereferral/pkg/solana"
)

const rpcCheckTimeout = 3 * time.Second

// Health checks the store and, when configured, the RPC endpoints
func Health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}

	if err := Accounts.Atomic(c.Request.Context(), func(referral.Tx) error { return nil }); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["store"] = err.Error()
	}
	if len(RPCEndpoints) > 0 {
		results := solanakit.CheckRPCList(c.Request.Context(), RPCEndpoints, rpcCheckTimeout)
		body["rpc"] = results
		if !solanakit.AllHealthy(results) {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}
