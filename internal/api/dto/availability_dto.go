package dto

import (
	"time"

	"github.com/42cats/crime-cat-sub002/internal/domain/availability"
	"github.com/google/uuid"
)

// BlockedDayRequest marks or unmarks a single date
type BlockedDayRequest struct {
	Date time.Time `json:"date" binding:"required"`
}

// BlockedRangeRequest marks every date in [start_date, end_date)
type BlockedRangeRequest struct {
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
}

// BlockedDaysResponse lists a user's blocked dates in a range
type BlockedDaysResponse struct {
	UserID uuid.UUID   `json:"user_id"`
	Days   []time.Time `json:"days"`
}

// AvailabilityResponse carries a user's free intervals for a query range
type AvailabilityResponse struct {
	UserID        uuid.UUID               `json:"user_id"`
	RangeStart    time.Time               `json:"range_start"`
	RangeEnd      time.Time               `json:"range_end"`
	FreeIntervals []availability.Interval `json:"free_intervals"`
}

// SubscriptionSyncResult is the per-subscription outcome of a sync batch
type SubscriptionSyncResult struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	Status         string    `json:"status"`
	Intervals      int       `json:"intervals"`
	Error          string    `json:"error,omitempty"`
}

// SyncResponse reports every subscription's outcome; partial failure is a
// normal 200 response, not an error.
type SyncResponse struct {
	Results []SubscriptionSyncResult `json:"results"`
}

// NewSyncResponse flattens a sync result map into a stable response
func NewSyncResponse(results map[uuid.UUID]availability.SyncResult) SyncResponse {
	resp := SyncResponse{Results: make([]SubscriptionSyncResult, 0, len(results))}
	for _, r := range results {
		resp.Results = append(resp.Results, SubscriptionSyncResult{
			SubscriptionID: r.SubscriptionID,
			Status:         string(r.Status),
			Intervals:      r.Intervals,
			Error:          r.ErrMessage,
		})
	}
	return resp
}
