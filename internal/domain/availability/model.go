package availability

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
)

// Common errors
var (
	ErrInvalidRange      = errors.New("range end must be after range start")
	ErrFeedUnreachable   = errors.New("calendar feed unreachable")
	ErrFeedParse         = errors.New("calendar feed could not be parsed")
	ErrBitmapConflict    = errors.New("concurrent blocked-day write conflict")
	ErrSubscriptionGone  = errors.New("subscription not found")
	ErrInvalidFeedURL    = errors.New("feed URL is required")
	ErrInvalidColorSlot  = errors.New("color slot out of range")
	ErrSubscriptionOwner = errors.New("subscription belongs to another user")
)

// CalendarSubscription represents one externally-synced calendar feed owned
// by a user. Subscriptions are disabled via IsActive rather than deleted,
// since cached busy intervals may still reference them.
type CalendarSubscription struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	UserID       uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index:idx_subscription_user"`
	FeedURL      string     `json:"feed_url" gorm:"type:text;not null"`
	DisplayName  string     `json:"display_name" gorm:"type:varchar(255);not null"`
	ColorSlot    int        `json:"color_slot" gorm:"not null;default:0"`
	SyncStatus   SyncStatus `json:"sync_status" gorm:"type:varchar(20);not null;default:'pending'"`
	SyncError    string     `json:"sync_error,omitempty" gorm:"type:text"`
	IsActive     bool       `json:"is_active" gorm:"not null;default:true"`
	SortOrder    int        `json:"sort_order" gorm:"not null;default:0"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"not null;default:current_timestamp"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"not null;default:current_timestamp"`
}

// BlockedWindow is one 96-day bitmap tile of explicitly blocked days.
// Windows tile the calendar on a fixed grid from a shared epoch, so every
// date maps to exactly one (user, window_start, bit) triple. Version backs
// the optimistic lock on concurrent bit writes.
type BlockedWindow struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	UserID      uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_blocked_window_tile"`
	WindowStart time.Time `json:"window_start" gorm:"not null;uniqueIndex:idx_blocked_window_tile"`
	Bitmap      []byte    `json:"bitmap" gorm:"type:bytea;not null"`
	Version     int       `json:"-" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;default:current_timestamp"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null;default:current_timestamp"`
}

// Interval is a half-open [Start, End) time range. Busy intervals produced
// by the sync worker are transient; they live in the cache, not the database.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the interval has positive length.
func (iv Interval) Valid() bool {
	return iv.End.After(iv.Start)
}

// Contains reports whether other lies entirely inside iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// SyncResult is the per-subscription outcome of a sync batch. Failures are
// data, not exceptions: one result per subscription, always.
type SyncResult struct {
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	Status         SyncStatus `json:"status"`
	Intervals      int        `json:"intervals"`
	Err            error      `json:"-"`
	ErrMessage     string     `json:"error,omitempty"`
}

// TableName specifies the table names for each model
func (CalendarSubscription) TableName() string { return "calendar_subscriptions" }
func (BlockedWindow) TableName() string        { return "blocked_windows" }

// BeforeCreate hooks for UUID generation
func (s *CalendarSubscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (w *BlockedWindow) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if len(w.Bitmap) == 0 {
		w.Bitmap = make([]byte, WindowBytes)
	}
	return nil
}

// Request DTOs
type CreateSubscriptionRequest struct {
	FeedURL     string `json:"feed_url" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	ColorSlot   int    `json:"color_slot"`
	SortOrder   int    `json:"sort_order"`
}

type UpdateSubscriptionRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	ColorSlot   *int    `json:"color_slot,omitempty"`
	SortOrder   *int    `json:"sort_order,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	if r.FeedURL == "" {
		return ErrInvalidFeedURL
	}
	if r.ColorSlot < 0 || r.ColorSlot > 15 {
		return ErrInvalidColorSlot
	}
	return nil
}
