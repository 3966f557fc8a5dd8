package availability

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/42cats/crime-cat-sub002/internal/domain/events"
	"github.com/42cats/crime-cat-sub002/internal/infrastructure/cache"
	"github.com/42cats/crime-cat-sub002/pkg/config"
	"github.com/42cats/crime-cat-sub002/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Cache is the slice of the cache client the availability service needs.
type Cache interface {
	IntervalCache
	CacheJSON(ctx context.Context, key string, ttl time.Duration, out interface{}, fn func() (interface{}, error)) error
	InvalidateUserAvailability(ctx context.Context, userID uuid.UUID) error
	PublishScheduleEvent(ctx context.Context, event *events.ScheduleEvent) error
}

// Service defines the business logic interface for calendar subscriptions,
// blocked days and per-user free-interval aggregation
type Service interface {
	// Subscription operations
	CreateSubscription(ctx context.Context, userID uuid.UUID, req CreateSubscriptionRequest) (*CalendarSubscription, error)
	UpdateSubscription(ctx context.Context, userID, id uuid.UUID, req UpdateSubscriptionRequest) (*CalendarSubscription, error)
	DeactivateSubscription(ctx context.Context, userID, id uuid.UUID) error
	ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]CalendarSubscription, error)
	SyncCalendars(ctx context.Context, userID uuid.UUID, rangeStart, rangeEnd time.Time) (map[uuid.UUID]SyncResult, error)

	// Blocked-day operations
	SetBlocked(ctx context.Context, userID uuid.UUID, date time.Time) error
	ClearBlocked(ctx context.Context, userID uuid.UUID, date time.Time) error
	SetBlockedRange(ctx context.Context, userID uuid.UUID, start, end time.Time) error
	IsBlocked(ctx context.Context, userID uuid.UUID, date time.Time) (bool, error)
	ListBlocked(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]time.Time, error)

	// FreeIntervals returns the sorted, disjoint free intervals of one user
	// within [rangeStart, rangeEnd)
	FreeIntervals(ctx context.Context, userID uuid.UUID, rangeStart, rangeEnd time.Time) ([]Interval, error)

	// InvalidateUser drops this user's cached availability ranges
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo   Repository
	syncer *Syncer
	cache  Cache
	logger *logger.Logger
	cfg    config.EngineConfig
}

// NewService creates a new availability service instance
func NewService(repo Repository, syncer *Syncer, c Cache, log *logger.Logger, cfg config.EngineConfig) Service {
	return &service{repo: repo, syncer: syncer, cache: c, logger: log, cfg: cfg}
}

func (s *service) CreateSubscription(ctx context.Context, userID uuid.UUID, req CreateSubscriptionRequest) (*CalendarSubscription, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub := &CalendarSubscription{
		UserID:      userID,
		FeedURL:     req.FeedURL,
		DisplayName: req.DisplayName,
		ColorSlot:   req.ColorSlot,
		SortOrder:   req.SortOrder,
		SyncStatus:  SyncStatusPending,
		IsActive:    true,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	s.notifyUserChange(ctx, userID, events.EventTypeSubscriptionChanged, sub.ID)
	return sub, nil
}

func (s *service) UpdateSubscription(ctx context.Context, userID, id uuid.UUID, req UpdateSubscriptionRequest) (*CalendarSubscription, error) {
	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrSubscriptionOwner
	}

	if req.DisplayName != nil {
		sub.DisplayName = *req.DisplayName
	}
	if req.ColorSlot != nil {
		sub.ColorSlot = *req.ColorSlot
	}
	if req.SortOrder != nil {
		sub.SortOrder = *req.SortOrder
	}
	if req.IsActive != nil {
		sub.IsActive = *req.IsActive
	}

	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	s.notifyUserChange(ctx, userID, events.EventTypeSubscriptionChanged, sub.ID)
	return sub, nil
}

// DeactivateSubscription disables a subscription instead of deleting it;
// cached intervals may still reference it.
func (s *service) DeactivateSubscription(ctx context.Context, userID, id uuid.UUID) error {
	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return err
	}
	if sub.UserID != userID {
		return ErrSubscriptionOwner
	}

	sub.IsActive = false
	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	s.notifyUserChange(ctx, userID, events.EventTypeSubscriptionChanged, sub.ID)
	return nil
}

func (s *service) ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]CalendarSubscription, error) {
	return s.repo.ListSubscriptions(ctx, userID, false)
}

func (s *service) SyncCalendars(ctx context.Context, userID uuid.UUID, rangeStart, rangeEnd time.Time) (map[uuid.UUID]SyncResult, error) {
	results, err := s.syncer.SyncAll(ctx, userID, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}
	// Fresh busy data supersedes whatever availability was cached.
	if err := s.cache.InvalidateUserAvailability(ctx, userID); err != nil {
		s.logger.Error("Failed to invalidate availability cache", zap.String("user_id", userID.String()), zap.Error(err))
	}
	return results, nil
}

func (s *service) SetBlocked(ctx context.Context, userID uuid.UUID, date time.Time) error {
	day := dayFloor(date)
	return s.mutateBlockedRange(ctx, userID, day, day.AddDate(0, 0, 1), bitmapSetRange, events.EventTypeBlockedDaysChanged)
}

func (s *service) ClearBlocked(ctx context.Context, userID uuid.UUID, date time.Time) error {
	day := dayFloor(date)
	return s.mutateBlockedRange(ctx, userID, day, day.AddDate(0, 0, 1), bitmapClearRange, events.EventTypeBlockedDaysChanged)
}

func (s *service) SetBlockedRange(ctx context.Context, userID uuid.UUID, start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidRange
	}
	return s.mutateBlockedRange(ctx, userID, start, end, bitmapSetRange, events.EventTypeBlockedDaysChanged)
}

func (s *service) IsBlocked(ctx context.Context, userID uuid.UUID, date time.Time) (bool, error) {
	day := dayFloor(date)
	window, err := s.repo.GetWindow(ctx, userID, WindowStartFor(day))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return bitmapTest(window.Bitmap, DayOffset(day)), nil
}

func (s *service) ListBlocked(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]time.Time, error) {
	if !end.After(start) {
		return nil, ErrInvalidRange
	}

	windows, err := s.repo.ListWindows(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	// Key by unix seconds; time.Time map keys are unreliable across
	// locations and monotonic clocks.
	byStart := make(map[int64]*BlockedWindow, len(windows))
	for i := range windows {
		byStart[windows[i].WindowStart.Unix()] = &windows[i]
	}

	var days []time.Time
	for _, span := range splitRangeIntoTiles(start, end) {
		window, ok := byStart[span.windowStart.Unix()]
		if !ok {
			continue
		}
		days = append(days, bitmapListDays(window.Bitmap, span.windowStart, span.from, span.to)...)
	}
	return days, nil
}

// mutateBlockedRange applies a bit mutation to every tile the range
// overlaps. Each tile write is an optimistic compare-and-swap retried up to
// the configured budget; re-applying an already-applied mutation is a no-op.
func (s *service) mutateBlockedRange(ctx context.Context, userID uuid.UUID, start, end time.Time, mutate func([]byte, int, int), eventType string) error {
	for _, span := range splitRangeIntoTiles(start, end) {
		if err := s.mutateTile(ctx, userID, span, mutate); err != nil {
			return err
		}
	}
	s.notifyUserChange(ctx, userID, eventType, uuid.Nil)
	return nil
}

func (s *service) mutateTile(ctx context.Context, userID uuid.UUID, span tileSpan, mutate func([]byte, int, int)) error {
	retries := s.cfg.BitmapWriteRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		window, err := s.repo.GetWindow(ctx, userID, span.windowStart)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			window = &BlockedWindow{
				UserID:      userID,
				WindowStart: span.windowStart,
				Bitmap:      make([]byte, WindowBytes),
			}
			mutate(window.Bitmap, span.from, span.to)
			createErr := s.repo.CreateWindow(ctx, window)
			if createErr == nil {
				return nil
			}
			// A concurrent writer may have created the tile between the read
			// and the insert; if it exists now, retry against it. Anything
			// else is a real storage error and must surface as such.
			if _, readErr := s.repo.GetWindow(ctx, userID, span.windowStart); readErr == nil {
				lastErr = ErrBitmapConflict
				continue
			}
			return createErr
		}

		updated := make([]byte, len(window.Bitmap))
		copy(updated, window.Bitmap)
		mutate(updated, span.from, span.to)
		if bytes.Equal(updated, window.Bitmap) {
			return nil // idempotent: nothing to write
		}

		window.Bitmap = updated
		err = s.repo.UpdateWindowBitmap(ctx, window)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrBitmapConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *service) FreeIntervals(ctx context.Context, userID uuid.UUID, rangeStart, rangeEnd time.Time) ([]Interval, error) {
	if !rangeEnd.After(rangeStart) {
		return nil, ErrInvalidRange
	}

	var free []Interval
	err := s.cache.CacheJSON(ctx, cache.AvailabilityKey(userID, rangeStart, rangeEnd), s.cfg.AvailabilityTTL, &free, func() (interface{}, error) {
		return s.computeFreeIntervals(ctx, userID, rangeStart, rangeEnd)
	})
	if err != nil {
		return nil, err
	}
	return free, nil
}

// computeFreeIntervals is the aggregation core: start from the full query
// range, subtract every active subscription's busy set, then subtract whole
// blocked days. Explicit blocking always overrides calendar data.
func (s *service) computeFreeIntervals(ctx context.Context, userID uuid.UUID, rangeStart, rangeEnd time.Time) ([]Interval, error) {
	subs, err := s.repo.ListSubscriptions(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	var busy []Interval
	for i := range subs {
		intervals := s.syncer.CachedIntervals(ctx, subs[i].ID)
		if intervals == nil {
			// Nothing cached yet for this feed; try one inline sync. A
			// failure degrades to "no data for this feed", never to an error.
			if synced, syncErr := s.syncer.SyncOne(ctx, &subs[i], rangeStart, rangeEnd); syncErr == nil {
				intervals = synced
			}
		}
		busy = append(busy, ClipIntervals(intervals, rangeStart, rangeEnd)...)
	}

	blockedDays, err := s.ListBlocked(ctx, userID, dayFloor(rangeStart), dayFloor(rangeEnd).AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	busy = append(busy, ClipIntervals(dayIntervals(blockedDays), rangeStart, rangeEnd)...)

	return SubtractIntervals(rangeStart, rangeEnd, busy), nil
}

func (s *service) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	return s.cache.InvalidateUserAvailability(ctx, userID)
}

// notifyUserChange invalidates exactly this user's availability keys and
// publishes the change for external subscribers.
func (s *service) notifyUserChange(ctx context.Context, userID uuid.UUID, eventType string, entityID uuid.UUID) {
	if err := s.cache.InvalidateUserAvailability(ctx, userID); err != nil {
		s.logger.Error("Failed to invalidate availability cache",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
	event := &events.ScheduleEvent{
		EventType: eventType,
		UserID:    userID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
	if err := s.cache.PublishScheduleEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish schedule event", zap.Error(err))
	}
}
