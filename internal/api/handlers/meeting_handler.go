package handlers

import (
	"net/http"

	"github.com/42cats/crime-cat-sub002/internal/api/dto"
	"github.com/42cats/crime-cat-sub002/internal/domain/meeting"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MeetingHandler handles HTTP requests for meeting-time recommendation
type MeetingHandler struct {
	service meeting.Service
}

// NewMeetingHandler creates a new meeting handler instance
func NewMeetingHandler(service meeting.Service) *MeetingHandler {
	return &MeetingHandler{service: service}
}

// Recommend recomputes and returns an event's recommended slots
func (h *MeetingHandler) Recommend(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event ID"})
		return
	}

	var req dto.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slots, err := h.service.Recommend(c.Request.Context(), req.ToMeetingRequest(eventID))
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.RecommendationsResponse{EventID: eventID, Slots: slots})
}

// ListRecommendations returns an event's current slot set in rank order
func (h *MeetingHandler) ListRecommendations(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event ID"})
		return
	}

	slots, err := h.service.ListRecommendations(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.RecommendationsResponse{EventID: eventID, Slots: slots})
}

// SelectSlot marks one slot as the chosen meeting time
func (h *MeetingHandler) SelectSlot(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event ID"})
		return
	}

	var req dto.SelectSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SelectSlot(c.Request.Context(), eventID, req.SlotID); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// ClearSelection removes an event's slot selection
func (h *MeetingHandler) ClearSelection(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event ID"})
		return
	}

	if err := h.service.ClearSelection(c.Request.Context(), eventID); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// ParticipantsChanged is the membership-change hook: it drops the event's
// cached recommendations so the next read recomputes.
func (h *MeetingHandler) ParticipantsChanged(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event ID"})
		return
	}

	if err := h.service.InvalidateEvent(c.Request.Context(), eventID); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
