package admission

import (
	"attendly/internal/shared/config"
	"attendly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupAdmissionRoutes(router *gin.RouterGroup, cfg *config.Config, controller *Controller) {
	auth := middleware.JWTAuthWithConfig(cfg)

	events := router.Group("/events")
	{
		events.GET("/:id/capacity", controller.GetCapacity)          // public
		events.POST("/:id/registrations", auth, controller.Register) // register
	}

	registrations := router.Group("/registrations")
	registrations.Use(auth)
	{
		registrations.GET("/:id", controller.GetRegistration) // owner or admin
		registrations.DELETE("/:id", controller.Remove)       // owner or admin
	}

	adminWaitlist := router.Group("/admin/events/:id/waitlist")
	adminWaitlist.Use(auth, middleware.RequireAdmin())
	{
		adminWaitlist.GET("", controller.GetWaitlist)
		adminWaitlist.POST("/promote", controller.PromoteNext)
		adminWaitlist.GET("/verify", controller.VerifyWaitlist)
		adminWaitlist.POST("/repair", controller.RepairWaitlist)
	}
}
