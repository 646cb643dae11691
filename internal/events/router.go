package events

import (
	"attendly/internal/shared/config"
	"attendly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupEventRoutes(router *gin.RouterGroup, cfg *config.Config, controller Controller) {
	// Public routes - anyone can view events
	publicEvents := router.Group("/events")
	{
		publicEvents.GET("", controller.GetAllEvents) // GET /api/v1/events
		publicEvents.GET("/:id", controller.GetEvent) // GET /api/v1/events/:id
	}

	// Admin routes - capacity and waitlist configuration
	adminEvents := router.Group("/admin/events")
	adminEvents.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		adminEvents.POST("", controller.CreateEvent)       // POST /api/v1/admin/events
		adminEvents.PATCH("/:id", controller.UpdateEvent)  // PATCH /api/v1/admin/events/:id
		adminEvents.GET("/:id", controller.GetEvent)       // GET /api/v1/admin/events/:id
	}
}
