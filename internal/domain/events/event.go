package events

import (
	"time"

	"github.com/google/uuid"
)

// Schedule event types published on the schedule channel. The Discord-bot
// bridge and other collaborating subsystems subscribe to these to mirror
// cache invalidation outside this process.
const (
	EventTypeSubscriptionChanged = "subscription_changed"
	EventTypeBlockedDaysChanged  = "blocked_days_changed"
	EventTypeParticipantsChanged = "participants_changed"
	EventTypeSlotSelected        = "slot_selected"
)

// ScheduleEvent represents a scheduling-related change event
type ScheduleEvent struct {
	EventType string      `json:"event_type"`
	UserID    uuid.UUID   `json:"user_id,omitempty"`
	EntityID  uuid.UUID   `json:"entity_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Details   interface{} `json:"details,omitempty"`
}
