package routes

import (
	"github.com/gin-gonic/gin"

	"stakereferral/internal/handlers"
)

// SetupProxyRoutes sets up the staking operation proxy routes
func SetupProxyRoutes(r *gin.Engine) {
	proxy := r.Group("/proxy")
	{
		proxy.POST("/deposit", handlers.ProxyDeposit)
		proxy.POST("/deposit-stake-account", handlers.ProxyDepositStakeAccount)
		proxy.POST("/liquid-unstake", handlers.ProxyLiquidUnstake)
		proxy.POST("/order-unstake", handlers.ProxyOrderUnstake)
	}
}
