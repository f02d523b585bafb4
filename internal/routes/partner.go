package routes

import (
	"github.com/gin-gonic/gin"

	"stakereferral/internal/handlers"
)

// SetupPartnerRoutes sets up partner management and settlement routes
func SetupPartnerRoutes(r *gin.Engine) {
	partner := r.Group("/partners")
	{
		partner.GET("", handlers.ListPartners)
		partner.GET("/due", handlers.ListDuePartners)
		partner.POST("", handlers.CreatePartner)
		partner.GET("/:partner", handlers.GetPartner)
		partner.PUT("/:partner", handlers.UpdatePartner)
		partner.DELETE("/:partner", handlers.DeletePartner)
		partner.PUT("/:partner/pause", handlers.SetPartnerPause)
		partner.PUT("/:partner/tier", handlers.SetPartnerTier)
		partner.GET("/:partner/operations", handlers.ListPartnerOperations)
		partner.GET("/:partner/settlements", handlers.ListPartnerSettlements)
		partner.POST("/:partner/settle", handlers.SettlePartner)
		partner.POST("/:partner/reset-delayed-unstake", handlers.ResetDelayedUnstake)
	}

	r.POST("/settle/due", handlers.SettleDue)
}
