package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the data access methods for subscriptions and blocked
// windows
type Repository interface {
	// Subscription operations
	CreateSubscription(ctx context.Context, sub *CalendarSubscription) error
	GetSubscription(ctx context.Context, id uuid.UUID) (*CalendarSubscription, error)
	UpdateSubscription(ctx context.Context, sub *CalendarSubscription) error
	ListSubscriptions(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]CalendarSubscription, error)
	UpdateSyncStatus(ctx context.Context, id uuid.UUID, status SyncStatus, syncError string, syncedAt *time.Time) error

	// Blocked window operations. UpdateWindowBitmap is a version-checked
	// compare-and-swap; callers retry on ErrBitmapConflict.
	GetWindow(ctx context.Context, userID uuid.UUID, windowStart time.Time) (*BlockedWindow, error)
	ListWindows(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]BlockedWindow, error)
	CreateWindow(ctx context.Context, window *BlockedWindow) error
	UpdateWindowBitmap(ctx context.Context, window *BlockedWindow) error
}

// repository implements the Repository interface
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new availability repository instance
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateSubscription(ctx context.Context, sub *CalendarSubscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) GetSubscription(ctx context.Context, id uuid.UUID) (*CalendarSubscription, error) {
	var sub CalendarSubscription
	err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionGone
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) UpdateSubscription(ctx context.Context, sub *CalendarSubscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *repository) ListSubscriptions(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]CalendarSubscription, error) {
	var subs []CalendarSubscription
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("sort_order ASC, created_at ASC").Find(&subs).Error
	return subs, err
}

func (r *repository) UpdateSyncStatus(ctx context.Context, id uuid.UUID, status SyncStatus, syncError string, syncedAt *time.Time) error {
	updates := map[string]interface{}{
		"sync_status": status,
		"sync_error":  syncError,
	}
	if syncedAt != nil {
		updates["last_synced_at"] = *syncedAt
	}
	return r.db.WithContext(ctx).
		Model(&CalendarSubscription{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) GetWindow(ctx context.Context, userID uuid.UUID, windowStart time.Time) (*BlockedWindow, error) {
	var window BlockedWindow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND window_start = ?", userID, windowStart.UTC()).
		First(&window).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &window, nil
}

func (r *repository) ListWindows(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]BlockedWindow, error) {
	var windows []BlockedWindow
	// A window overlaps [start, end) iff it starts before end and ends
	// after start; window length is fixed, so bound both sides.
	earliest := WindowStartFor(start)
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND window_start >= ? AND window_start < ?", userID, earliest, end.UTC()).
		Order("window_start ASC").
		Find(&windows).Error
	return windows, err
}

func (r *repository) CreateWindow(ctx context.Context, window *BlockedWindow) error {
	return r.db.WithContext(ctx).Create(window).Error
}

func (r *repository) UpdateWindowBitmap(ctx context.Context, window *BlockedWindow) error {
	res := r.db.WithContext(ctx).
		Model(&BlockedWindow{}).
		Where("id = ? AND version = ?", window.ID, window.Version).
		Updates(map[string]interface{}{
			"bitmap":  window.Bitmap,
			"version": window.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBitmapConflict
	}
	window.Version++
	return nil
}
