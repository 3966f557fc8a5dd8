package meeting

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/42cats/crime-cat-sub002/internal/domain/availability"
	"github.com/42cats/crime-cat-sub002/internal/domain/events"
	"github.com/42cats/crime-cat-sub002/internal/infrastructure/cache"
	"github.com/42cats/crime-cat-sub002/pkg/config"
	"github.com/42cats/crime-cat-sub002/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AvailabilityProvider is the slice of the availability service the
// recommendation flow needs.
type AvailabilityProvider interface {
	FreeIntervals(ctx context.Context, userID uuid.UUID, rangeStart, rangeEnd time.Time) ([]availability.Interval, error)
}

// Cache is the slice of the cache client the meeting service needs.
type Cache interface {
	CacheJSON(ctx context.Context, key string, ttl time.Duration, out interface{}, fn func() (interface{}, error)) error
	InvalidateEventRecommendations(ctx context.Context, eventID uuid.UUID) error
	PublishScheduleEvent(ctx context.Context, event *events.ScheduleEvent) error
}

// Service defines the business logic interface for meeting-time
// recommendation and slot selection
type Service interface {
	Recommend(ctx context.Context, req MeetingRequest) ([]RecommendedSlot, error)
	ListRecommendations(ctx context.Context, eventID uuid.UUID) ([]RecommendedSlot, error)
	SelectSlot(ctx context.Context, eventID, slotID uuid.UUID) error
	ClearSelection(ctx context.Context, eventID uuid.UUID) error

	// InvalidateEvent drops the cached recommendation set; called when an
	// event's participant membership changes.
	InvalidateEvent(ctx context.Context, eventID uuid.UUID) error
}

type service struct {
	repo  Repository
	avail AvailabilityProvider
	cache Cache
	log   *logger.Logger
	cfg   config.EngineConfig

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewService creates a new meeting service instance
func NewService(repo Repository, avail AvailabilityProvider, c Cache, log *logger.Logger, cfg config.EngineConfig) Service {
	return &service{
		repo:  repo,
		avail: avail,
		cache: c,
		log:   log,
		cfg:   cfg,
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// eventLock returns the single-writer lock for one event's recommendation set.
func (s *service) eventLock(eventID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[eventID] = l
	}
	return l
}

func (s *service) Recommend(ctx context.Context, req MeetingRequest) ([]RecommendedSlot, error) {
	// Fixed-date events have nothing to recommend.
	if req.Mode == ModeFixed {
		return nil, nil
	}
	if req.Status != StatusRecruiting && req.Status != StatusRecruitmentComplete {
		return nil, nil
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lock := s.eventLock(req.EventID)
	lock.Lock()
	defer lock.Unlock()

	free := make(map[uuid.UUID][]availability.Interval, len(req.ParticipantIDs))
	for _, pid := range req.ParticipantIDs {
		intervals, err := s.avail.FreeIntervals(ctx, pid, req.WindowStart, req.WindowEnd)
		if err != nil {
			if errors.Is(err, availability.ErrInvalidRange) {
				return nil, err
			}
			// One participant's availability failing degrades to "never
			// free", it does not abort the whole recommendation.
			s.log.Warn("Availability lookup failed for participant",
				zap.String("event_id", req.EventID.String()),
				zap.String("user_id", pid.String()),
				zap.Error(err),
			)
			continue
		}
		free[pid] = intervals
	}

	candidates := RecommendSlots(req, free, s.cfg.SlotGranularity, s.cfg.TopK)

	slots := make([]RecommendedSlot, len(candidates))
	for i, c := range candidates {
		attendees := make([]string, len(c.Attendees))
		for j, id := range c.Attendees {
			attendees[j] = id.String()
		}
		slots[i] = RecommendedSlot{
			EventID:           req.EventID,
			StartTime:         c.Start,
			EndTime:           c.End,
			ParticipantCount:  c.ParticipantCount,
			TotalParticipants: c.TotalParticipants,
			AvailabilityScore: c.Score,
			ParticipantIDs:    attendees,
			Rank:              i + 1,
		}
	}

	if err := s.repo.ReplaceRecommendations(ctx, req.EventID, slots); err != nil {
		return nil, err
	}

	if err := s.cache.InvalidateEventRecommendations(ctx, req.EventID); err != nil {
		s.log.Error("Failed to invalidate recommendation cache",
			zap.String("event_id", req.EventID.String()),
			zap.Error(err),
		)
	}

	s.log.Info("Recommendations computed",
		zap.String("event_id", req.EventID.String()),
		zap.Int("participants", len(req.ParticipantIDs)),
		zap.Int("slots", len(slots)),
	)
	return s.repo.ListByEvent(ctx, req.EventID)
}

func (s *service) ListRecommendations(ctx context.Context, eventID uuid.UUID) ([]RecommendedSlot, error) {
	var slots []RecommendedSlot
	err := s.cache.CacheJSON(ctx, cache.RecommendationKey(eventID), s.cfg.RecommendationTTL, &slots, func() (interface{}, error) {
		return s.repo.ListByEvent(ctx, eventID)
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *service) SelectSlot(ctx context.Context, eventID, slotID uuid.UUID) error {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.SelectSlot(ctx, eventID, slotID); err != nil {
		return err
	}

	s.invalidate(ctx, eventID)
	event := &events.ScheduleEvent{
		EventType: events.EventTypeSlotSelected,
		EntityID:  eventID,
		Timestamp: time.Now().UTC(),
		Details:   map[string]string{"slot_id": slotID.String()},
	}
	if err := s.cache.PublishScheduleEvent(ctx, event); err != nil {
		s.log.Error("Failed to publish slot selection", zap.Error(err))
	}
	return nil
}

func (s *service) ClearSelection(ctx context.Context, eventID uuid.UUID) error {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.ClearSelection(ctx, eventID); err != nil {
		return err
	}
	s.invalidate(ctx, eventID)
	return nil
}

func (s *service) InvalidateEvent(ctx context.Context, eventID uuid.UUID) error {
	if err := s.cache.InvalidateEventRecommendations(ctx, eventID); err != nil {
		return err
	}
	event := &events.ScheduleEvent{
		EventType: events.EventTypeParticipantsChanged,
		EntityID:  eventID,
		Timestamp: time.Now().UTC(),
	}
	if err := s.cache.PublishScheduleEvent(ctx, event); err != nil {
		s.log.Error("Failed to publish participant change", zap.Error(err))
	}
	return nil
}

func (s *service) invalidate(ctx context.Context, eventID uuid.UUID) {
	if err := s.cache.InvalidateEventRecommendations(ctx, eventID); err != nil {
		s.log.Error("Failed to invalidate recommendation cache",
			zap.String("event_id", eventID.String()),
			zap.Error(err),
		)
	}
}
