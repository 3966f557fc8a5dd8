package dto

import (
	"time"

	"github.com/42cats/crime-cat-sub002/internal/domain/meeting"
	"github.com/google/uuid"
)

// RecommendRequest is the wire form of a recommendation run. Duration is
// carried in minutes to keep bot-bridge payloads integer-only.
type RecommendRequest struct {
	ParticipantIDs  []uuid.UUID `json:"participant_ids" binding:"required,min=1"`
	DurationMinutes int         `json:"duration_minutes" binding:"required,min=1"`
	WindowStart     time.Time   `json:"window_start" binding:"required"`
	WindowEnd       time.Time   `json:"window_end" binding:"required"`
	MinParticipants int         `json:"min_participants"`
	Mode            string      `json:"mode" binding:"required,oneof=fixed flexible"`
	Status          string      `json:"status" binding:"required"`
	PreferredStart  *time.Time  `json:"preferred_start,omitempty"`
}

// ToMeetingRequest converts the wire form into the domain request
func (r *RecommendRequest) ToMeetingRequest(eventID uuid.UUID) meeting.MeetingRequest {
	return meeting.MeetingRequest{
		EventID:         eventID,
		ParticipantIDs:  r.ParticipantIDs,
		Duration:        time.Duration(r.DurationMinutes) * time.Minute,
		WindowStart:     r.WindowStart,
		WindowEnd:       r.WindowEnd,
		MinParticipants: r.MinParticipants,
		Mode:            meeting.MeetingMode(r.Mode),
		Status:          meeting.MeetingStatus(r.Status),
		PreferredStart:  r.PreferredStart,
	}
}

// SelectSlotRequest picks one recommended slot as the meeting time
type SelectSlotRequest struct {
	SlotID uuid.UUID `json:"slot_id" binding:"required"`
}

// RecommendationsResponse lists an event's recommended slots in rank order
type RecommendationsResponse struct {
	EventID uuid.UUID                 `json:"event_id"`
	Slots   []meeting.RecommendedSlot `json:"slots"`
}
