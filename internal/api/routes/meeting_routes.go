package routes

import (
	"github.com/42cats/crime-cat-sub002/internal/api/handlers"
	"github.com/42cats/crime-cat-sub002/internal/api/middleware"
	"github.com/gin-gonic/gin"
)

// MeetingRoutes handles the setup of meeting-recommendation routes
type MeetingRoutes struct {
	handler *handlers.MeetingHandler
}

// NewMeetingRoutes creates a new MeetingRoutes instance
func NewMeetingRoutes(handler *handlers.MeetingHandler) *MeetingRoutes {
	return &MeetingRoutes{handler: handler}
}

// RegisterRoutes registers all meeting-related routes
func (mr *MeetingRoutes) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/meetings")
	group.Use(middleware.IdentityMiddleware())

	group.POST("/:id/recommendations", mr.handler.Recommend)
	group.GET("/:id/recommendations", mr.handler.ListRecommendations)
	group.POST("/:id/recommendations/select", mr.handler.SelectSlot)
	group.DELETE("/:id/recommendations/select", mr.handler.ClearSelection)
	group.POST("/:id/participants/changed", mr.handler.ParticipantsChanged)
}
