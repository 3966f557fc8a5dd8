package meeting

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the data access methods for recommended slots
type Repository interface {
	// ReplaceRecommendations swaps an event's recommendation set in one
	// transaction. Rows the organizer already selected are preserved; only
	// non-selected rows are replaced.
	ReplaceRecommendations(ctx context.Context, eventID uuid.UUID, slots []RecommendedSlot) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]RecommendedSlot, error)
	GetSlot(ctx context.Context, id uuid.UUID) (*RecommendedSlot, error)
	SelectSlot(ctx context.Context, eventID, slotID uuid.UUID) error
	ClearSelection(ctx context.Context, eventID uuid.UUID) error
}

// repository implements the Repository interface
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new meeting repository instance
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ReplaceRecommendations(ctx context.Context, eventID uuid.UUID, slots []RecommendedSlot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("event_id = ? AND is_selected = ?", eventID, false).
			Delete(&RecommendedSlot{}).Error; err != nil {
			return err
		}
		if len(slots) == 0 {
			return nil
		}
		return tx.Create(&slots).Error
	})
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]RecommendedSlot, error) {
	var slots []RecommendedSlot
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("rank ASC, start_time ASC").
		Find(&slots).Error
	return slots, err
}

func (r *repository) GetSlot(ctx context.Context, id uuid.UUID) (*RecommendedSlot, error) {
	var slot RecommendedSlot
	err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &slot, nil
}

// SelectSlot marks one slot as the chosen meeting time. An existing selection
// of a different slot is authoritative and yields ErrSelectionConflict;
// re-selecting the same slot is a no-op.
func (r *repository) SelectSlot(ctx context.Context, eventID, slotID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot RecommendedSlot
		if err := tx.First(&slot, "id = ?", slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSlotNotFound
			}
			return err
		}
		if slot.EventID != eventID {
			return ErrSlotEventMismatch
		}

		var selected RecommendedSlot
		err := tx.
			Where("event_id = ? AND is_selected = ?", eventID, true).
			First(&selected).Error
		switch {
		case err == nil:
			if selected.ID == slotID {
				return nil // idempotent
			}
			return ErrSelectionConflict
		case errors.Is(err, gorm.ErrRecordNotFound):
			// no selection yet
		default:
			return err
		}

		return tx.Model(&RecommendedSlot{}).
			Where("id = ?", slotID).
			Update("is_selected", true).Error
	})
}

func (r *repository) ClearSelection(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&RecommendedSlot{}).
		Where("event_id = ? AND is_selected = ?", eventID, true).
		Update("is_selected", false).Error
}
