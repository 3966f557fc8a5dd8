package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/42cats/crime-cat-sub002/internal/api/dto"
	"github.com/42cats/crime-cat-sub002/internal/api/middleware"
	"github.com/42cats/crime-cat-sub002/internal/domain/availability"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AvailabilityHandler handles HTTP requests for calendar subscriptions,
// blocked days and free-interval queries
type AvailabilityHandler struct {
	service availability.Service
}

// NewAvailabilityHandler creates a new availability handler instance
func NewAvailabilityHandler(service availability.Service) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// CreateSubscription registers a new iCalendar feed for the caller
func (h *AvailabilityHandler) CreateSubscription(c *gin.Context) {
	var req availability.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	sub, err := h.service.CreateSubscription(c.Request.Context(), userID, req)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// ListSubscriptions lists all of the caller's feed subscriptions
func (h *AvailabilityHandler) ListSubscriptions(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	subs, err := h.service.ListSubscriptions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// UpdateSubscription updates display fields or toggles a subscription
func (h *AvailabilityHandler) UpdateSubscription(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription ID"})
		return
	}

	var req availability.UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	sub, err := h.service.UpdateSubscription(c.Request.Context(), userID, id, req)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// DeactivateSubscription disables a subscription
func (h *AvailabilityHandler) DeactivateSubscription(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription ID"})
		return
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	if err := h.service.DeactivateSubscription(c.Request.Context(), userID, id); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// SyncCalendars re-fetches every active feed of the caller for a range.
// Partial failure is reported per subscription with a 200.
func (h *AvailabilityHandler) SyncCalendars(c *gin.Context) {
	rangeStart, rangeEnd, ok := h.parseRange(c)
	if !ok {
		return
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	results, err := h.service.SyncCalendars(c.Request.Context(), userID, rangeStart, rangeEnd)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.NewSyncResponse(results))
}

// SetBlocked marks one date as blocked
func (h *AvailabilityHandler) SetBlocked(c *gin.Context) {
	h.mutateBlockedDay(c, h.service.SetBlocked)
}

// ClearBlocked unmarks one date
func (h *AvailabilityHandler) ClearBlocked(c *gin.Context) {
	h.mutateBlockedDay(c, h.service.ClearBlocked)
}

func (h *AvailabilityHandler) mutateBlockedDay(c *gin.Context, op func(ctx context.Context, userID uuid.UUID, date time.Time) error) {
	var req dto.BlockedDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	if err := op(c.Request.Context(), userID, req.Date); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// SetBlockedRange marks every date in a half-open range as blocked
func (h *AvailabilityHandler) SetBlockedRange(c *gin.Context) {
	var req dto.BlockedRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	if err := h.service.SetBlockedRange(c.Request.Context(), userID, req.StartDate, req.EndDate); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListBlocked lists the caller's blocked dates in a range
func (h *AvailabilityHandler) ListBlocked(c *gin.Context) {
	rangeStart, rangeEnd, ok := h.parseRange(c)
	if !ok {
		return
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	days, err := h.service.ListBlocked(c.Request.Context(), userID, rangeStart, rangeEnd)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.BlockedDaysResponse{UserID: userID, Days: days})
}

// GetAvailability returns the caller's free intervals for a range
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	rangeStart, rangeEnd, ok := h.parseRange(c)
	if !ok {
		return
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	free, err := h.service.FreeIntervals(c.Request.Context(), userID, rangeStart, rangeEnd)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.AvailabilityResponse{
		UserID:        userID,
		RangeStart:    rangeStart,
		RangeEnd:      rangeEnd,
		FreeIntervals: free,
	})
}

// parseRange binds the start/end query parameters shared by range queries
func (h *AvailabilityHandler) parseRange(c *gin.Context) (time.Time, time.Time, bool) {
	var params struct {
		Start time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
		End   time.Time `form:"end" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	}
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return time.Time{}, time.Time{}, false
	}
	return params.Start, params.End, true
}
