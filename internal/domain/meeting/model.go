package meeting

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Custom error types
var (
	ErrInvalidRequest     = errors.New("invalid recommendation request")
	ErrSelectionConflict  = errors.New("a different slot is already selected for this event")
	ErrSlotNotFound       = errors.New("recommended slot not found")
	ErrSlotEventMismatch  = errors.New("slot does not belong to this event")
	ErrInvalidParticipant = errors.New("participant list contains an empty id")
)

// MeetingMode describes how an event's schedule is decided
type MeetingMode string

const (
	ModeFixed    MeetingMode = "fixed"    // organizer picked the date up front
	ModeFlexible MeetingMode = "flexible" // date negotiated from availability
)

// MeetingStatus is the recruitment lifecycle state of an event
type MeetingStatus string

const (
	StatusRecruiting          MeetingStatus = "recruiting"
	StatusRecruitmentComplete MeetingStatus = "recruitment_complete"
	StatusCompleted           MeetingStatus = "completed"
	StatusCancelled           MeetingStatus = "cancelled"
)

// MeetingRequest carries everything the recommendation engine needs about an
// event. Participant identities arrive already resolved by the caller.
type MeetingRequest struct {
	EventID         uuid.UUID     `json:"event_id"`
	ParticipantIDs  []uuid.UUID   `json:"participant_ids"`
	Duration        time.Duration `json:"duration"`
	WindowStart     time.Time     `json:"window_start"`
	WindowEnd       time.Time     `json:"window_end"`
	MinParticipants int           `json:"min_participants"`
	Mode            MeetingMode   `json:"mode"`
	Status          MeetingStatus `json:"status"`
	PreferredStart  *time.Time    `json:"preferred_start,omitempty"`
}

// Validate checks the structural invariants of a request. Mode and status
// guards are the service's job; this only rejects inputs the engine cannot
// work with.
func (r *MeetingRequest) Validate() error {
	if r.EventID == uuid.Nil {
		return ErrInvalidRequest
	}
	if !r.WindowEnd.After(r.WindowStart) {
		return ErrInvalidRequest
	}
	if r.Duration <= 0 {
		return ErrInvalidRequest
	}
	if len(r.ParticipantIDs) == 0 {
		return ErrInvalidRequest
	}
	for _, id := range r.ParticipantIDs {
		if id == uuid.Nil {
			return ErrInvalidParticipant
		}
	}
	if r.MinParticipants < 1 {
		r.MinParticipants = 1
	}
	return nil
}

// RecommendedSlot is a persisted candidate meeting time for an event
type RecommendedSlot struct {
	ID                uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	EventID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_recommended_slots_event" json:"event_id"`
	StartTime         time.Time      `gorm:"not null" json:"start_time"`
	EndTime           time.Time      `gorm:"not null" json:"end_time"`
	ParticipantCount  int            `gorm:"not null" json:"participant_count"`
	TotalParticipants int            `gorm:"not null" json:"total_participants"`
	AvailabilityScore float64        `gorm:"not null" json:"availability_score"`
	ParticipantIDs    pq.StringArray `gorm:"type:text[]" json:"participant_ids"`
	IsSelected        bool           `gorm:"default:false;index" json:"is_selected"`
	Rank              int            `gorm:"not null" json:"rank"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// TableName specifies the table name for RecommendedSlot
func (RecommendedSlot) TableName() string {
	return "recommended_slots"
}

// BeforeCreate generates a UUID before creating the record
func (s *RecommendedSlot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
