package routes

import (
	"github.com/gin-gonic/gin"

	"stakereferral/internal/handlers"
)

// SetupRegistryRoutes sets up the global registry routes
func SetupRegistryRoutes(r *gin.Engine) {
	registry := r.Group("/registry")
	{
		registry.GET("", handlers.GetRegistry)
		registry.POST("", handlers.InitializeRegistry)
		registry.GET("/verify", handlers.VerifyCaller)
		registry.PUT("/admin", handlers.SetAdmin)
		registry.PUT("/foremen", handlers.SetForemen)
		registry.PUT("/operator-root", handlers.SetOperatorRoot)
	}
}
