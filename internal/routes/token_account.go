package routes

import (
	"github.com/gin-gonic/gin"

	"stakereferral/internal/handlers"
)

// SetupTokenAccountRoutes sets up the ledger account routes
func SetupTokenAccountRoutes(r *gin.Engine) {
	tokenAccount := r.Group("/token-account")
	{
		tokenAccount.GET("", handlers.ListTokenAccounts)
		tokenAccount.GET("/:address", handlers.GetTokenAccount)
		tokenAccount.POST("", handlers.CreateTokenAccount)
		tokenAccount.PUT("/:address/delegate", handlers.ApproveDelegate)
	}
}
