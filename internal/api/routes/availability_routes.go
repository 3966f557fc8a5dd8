package routes

import (
	"github.com/42cats/crime-cat-sub002/internal/api/handlers"
	"github.com/42cats/crime-cat-sub002/internal/api/middleware"
	"github.com/gin-gonic/gin"
)

// AvailabilityRoutes handles the setup of availability-related routes
type AvailabilityRoutes struct {
	handler *handlers.AvailabilityHandler
}

// NewAvailabilityRoutes creates a new AvailabilityRoutes instance
func NewAvailabilityRoutes(handler *handlers.AvailabilityHandler) *AvailabilityRoutes {
	return &AvailabilityRoutes{handler: handler}
}

// RegisterRoutes registers all availability-related routes
func (ar *AvailabilityRoutes) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/availability")
	group.Use(middleware.IdentityMiddleware())

	subs := group.Group("/subscriptions")
	{
		subs.POST("", ar.handler.CreateSubscription)
		subs.GET("", ar.handler.ListSubscriptions)
		subs.PUT("/:id", ar.handler.UpdateSubscription)
		subs.DELETE("/:id", ar.handler.DeactivateSubscription)
	}
	group.POST("/sync", ar.handler.SyncCalendars)

	blocked := group.Group("/blocked")
	{
		blocked.POST("", ar.handler.SetBlocked)
		blocked.DELETE("", ar.handler.ClearBlocked)
		blocked.POST("/range", ar.handler.SetBlockedRange)
		blocked.GET("", ar.handler.ListBlocked)
	}

	group.GET("", ar.handler.GetAvailability)
}
