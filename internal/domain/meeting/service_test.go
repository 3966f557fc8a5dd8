package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/42cats/crime-cat-sub002/internal/domain/availability"
	"github.com/42cats/crime-cat-sub002/internal/domain/events"
	"github.com/42cats/crime-cat-sub002/pkg/config"
	"github.com/42cats/crime-cat-sub002/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository is an in-memory slot store mirroring the replace/select
// semantics of the real repository.
type mockRepository struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*RecommendedSlot
}

func newMockRepository() *mockRepository {
	return &mockRepository{slots: make(map[uuid.UUID]*RecommendedSlot)}
}

func (m *mockRepository) ReplaceRecommendations(_ context.Context, eventID uuid.UUID, slots []RecommendedSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, slot := range m.slots {
		if slot.EventID == eventID && !slot.IsSelected {
			delete(m.slots, id)
		}
	}
	for i := range slots {
		if slots[i].ID == uuid.Nil {
			slots[i].ID = uuid.New()
		}
		copied := slots[i]
		m.slots[copied.ID] = &copied
	}
	return nil
}

func (m *mockRepository) ListByEvent(_ context.Context, eventID uuid.UUID) ([]RecommendedSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RecommendedSlot
	for _, slot := range m.slots {
		if slot.EventID == eventID {
			out = append(out, *slot)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Rank < out[i].Rank {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (m *mockRepository) GetSlot(_ context.Context, id uuid.UUID) (*RecommendedSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	copied := *slot
	return &copied, nil
}

func (m *mockRepository) SelectSlot(_ context.Context, eventID, slotID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	if slot.EventID != eventID {
		return ErrSlotEventMismatch
	}
	for _, other := range m.slots {
		if other.EventID == eventID && other.IsSelected {
			if other.ID == slotID {
				return nil
			}
			return ErrSelectionConflict
		}
	}
	slot.IsSelected = true
	return nil
}

func (m *mockRepository) ClearSelection(_ context.Context, eventID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, slot := range m.slots {
		if slot.EventID == eventID {
			slot.IsSelected = false
		}
	}
	return nil
}

// fakeAvailability serves canned free intervals per user.
type fakeAvailability struct {
	free map[uuid.UUID][]availability.Interval
	err  error
}

func (f *fakeAvailability) FreeIntervals(_ context.Context, userID uuid.UUID, _, _ time.Time) ([]availability.Interval, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.free[userID], nil
}

// fakeCache is an in-memory stand-in for the Redis client.
type fakeCache struct {
	mu        sync.Mutex
	data      map[string][]byte
	published []*events.ScheduleEvent
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) CacheJSON(_ context.Context, key string, _ time.Duration, out interface{}, fn func() (interface{}, error)) error {
	c.mu.Lock()
	raw, ok := c.data[key]
	c.mu.Unlock()
	if ok {
		return json.Unmarshal(raw, out)
	}
	result, err := fn()
	if err != nil {
		return err
	}
	raw, err = json.Marshal(result)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = raw
	c.mu.Unlock()
	return json.Unmarshal(raw, out)
}

func (c *fakeCache) InvalidateEventRecommendations(_ context.Context, eventID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, fmt.Sprintf("recs:%s", eventID))
	return nil
}

func (c *fakeCache) PublishScheduleEvent(_ context.Context, event *events.ScheduleEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, event)
	return nil
}

func newTestService(repo Repository, avail AvailabilityProvider, c Cache) Service {
	return NewService(repo, avail, c, logger.NewNop(), config.DefaultEngineConfig())
}

func TestRecommendSkipsFixedModeAndClosedStatuses(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &fakeAvailability{}, newFakeCache())
	ctx := context.Background()

	a := uuid.New()
	base := flexibleRequest([]uuid.UUID{a}, at(9, 0), at(12, 0), time.Hour, 1)

	tests := []struct {
		name   string
		mutate func(*MeetingRequest)
	}{
		{"fixed mode", func(r *MeetingRequest) { r.Mode = ModeFixed }},
		{"completed event", func(r *MeetingRequest) { r.Status = StatusCompleted }},
		{"cancelled event", func(r *MeetingRequest) { r.Status = StatusCancelled }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			slots, err := svc.Recommend(ctx, req)
			require.NoError(t, err)
			assert.Empty(t, slots)
		})
	}
}

func TestRecommendValidatesRequest(t *testing.T) {
	svc := newTestService(newMockRepository(), &fakeAvailability{}, newFakeCache())

	req := flexibleRequest(nil, at(9, 0), at(12, 0), time.Hour, 1)
	_, err := svc.Recommend(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	req = flexibleRequest([]uuid.UUID{uuid.New()}, at(12, 0), at(9, 0), time.Hour, 1)
	_, err = svc.Recommend(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRecommendPersistsRankedSlots(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	avail := &fakeAvailability{free: map[uuid.UUID][]availability.Interval{
		a: {{Start: at(9, 0), End: at(11, 0)}},
		b: {{Start: at(9, 0), End: at(11, 0)}},
		c: {{Start: at(11, 0), End: at(12, 0)}},
	}}

	repo := newMockRepository()
	svc := newTestService(repo, avail, newFakeCache())

	req := flexibleRequest([]uuid.UUID{a, b, c}, at(9, 0), at(12, 0), time.Hour, 2)
	slots, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, slots, 1)
	assert.Equal(t, 1, slots[0].Rank)
	assert.Equal(t, 2, slots[0].ParticipantCount)
	assert.Equal(t, 3, slots[0].TotalParticipants)
	assert.InDelta(t, 0.67, slots[0].AvailabilityScore, 0.01)
	assert.Equal(t, req.EventID, slots[0].EventID)
	assert.Len(t, slots[0].ParticipantIDs, 2)
}

func TestRecommendPreservesSelectedSlot(t *testing.T) {
	a := uuid.New()
	avail := &fakeAvailability{free: map[uuid.UUID][]availability.Interval{
		a: {{Start: at(9, 0), End: at(12, 0)}},
	}}

	repo := newMockRepository()
	svc := newTestService(repo, avail, newFakeCache())
	ctx := context.Background()

	req := flexibleRequest([]uuid.UUID{a}, at(9, 0), at(12, 0), time.Hour, 1)
	slots, err := svc.Recommend(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	require.NoError(t, svc.SelectSlot(ctx, req.EventID, slots[0].ID))

	// Shrink availability and recompute: the selected slot must survive.
	avail.free[a] = []availability.Interval{{Start: at(14, 0), End: at(15, 0)}}
	req.WindowStart, req.WindowEnd = at(13, 0), at(16, 0)
	again, err := svc.Recommend(ctx, req)
	require.NoError(t, err)

	var selected *RecommendedSlot
	for i := range again {
		if again[i].IsSelected {
			selected = &again[i]
		}
	}
	require.NotNil(t, selected, "the selected slot must survive a re-run")
	assert.Equal(t, slots[0].ID, selected.ID)
}

func TestSelectSlotConflict(t *testing.T) {
	a := uuid.New()
	avail := &fakeAvailability{free: map[uuid.UUID][]availability.Interval{
		a: {
			{Start: at(9, 0), End: at(10, 0)},
			{Start: at(14, 0), End: at(15, 0)},
		},
	}}

	repo := newMockRepository()
	cacheClient := newFakeCache()
	svc := newTestService(repo, avail, cacheClient)
	ctx := context.Background()

	req := flexibleRequest([]uuid.UUID{a}, at(9, 0), at(15, 0), time.Hour, 1)
	slots, err := svc.Recommend(ctx, req)
	require.NoError(t, err)
	require.Len(t, slots, 2)

	require.NoError(t, svc.SelectSlot(ctx, req.EventID, slots[0].ID))

	// Selecting the same slot again is idempotent.
	require.NoError(t, svc.SelectSlot(ctx, req.EventID, slots[0].ID))

	// A different slot conflicts while the first selection stands.
	err = svc.SelectSlot(ctx, req.EventID, slots[1].ID)
	assert.ErrorIs(t, err, ErrSelectionConflict)

	// After clearing, the other slot becomes selectable.
	require.NoError(t, svc.ClearSelection(ctx, req.EventID))
	require.NoError(t, svc.SelectSlot(ctx, req.EventID, slots[1].ID))

	// Selections are announced for the bot bridge.
	require.NotEmpty(t, cacheClient.published)
	assert.Equal(t, events.EventTypeSlotSelected, cacheClient.published[len(cacheClient.published)-1].EventType)
}

func TestInvalidateEventPublishesChange(t *testing.T) {
	a := uuid.New()
	avail := &fakeAvailability{free: map[uuid.UUID][]availability.Interval{
		a: {{Start: at(9, 0), End: at(12, 0)}},
	}}

	repo := newMockRepository()
	cacheClient := newFakeCache()
	svc := newTestService(repo, avail, cacheClient)
	ctx := context.Background()

	req := flexibleRequest([]uuid.UUID{a}, at(9, 0), at(12, 0), time.Hour, 1)
	_, err := svc.Recommend(ctx, req)
	require.NoError(t, err)

	// Warm the recommendation cache.
	_, err = svc.ListRecommendations(ctx, req.EventID)
	require.NoError(t, err)
	cacheClient.mu.Lock()
	_, cached := cacheClient.data[fmt.Sprintf("recs:%s", req.EventID)]
	cacheClient.mu.Unlock()
	require.True(t, cached)

	require.NoError(t, svc.InvalidateEvent(ctx, req.EventID))

	// The cached set is gone and the membership change is announced.
	cacheClient.mu.Lock()
	_, cached = cacheClient.data[fmt.Sprintf("recs:%s", req.EventID)]
	cacheClient.mu.Unlock()
	assert.False(t, cached)
	require.NotEmpty(t, cacheClient.published)
	last := cacheClient.published[len(cacheClient.published)-1]
	assert.Equal(t, events.EventTypeParticipantsChanged, last.EventType)
	assert.Equal(t, req.EventID, last.EntityID)
}

func TestListRecommendationsReadThrough(t *testing.T) {
	a := uuid.New()
	avail := &fakeAvailability{free: map[uuid.UUID][]availability.Interval{
		a: {{Start: at(9, 0), End: at(12, 0)}},
	}}

	repo := newMockRepository()
	cacheClient := newFakeCache()
	svc := newTestService(repo, avail, cacheClient)
	ctx := context.Background()

	req := flexibleRequest([]uuid.UUID{a}, at(9, 0), at(12, 0), time.Hour, 1)
	_, err := svc.Recommend(ctx, req)
	require.NoError(t, err)

	first, err := svc.ListRecommendations(ctx, req.EventID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Second read is served from cache and stays identical.
	second, err := svc.ListRecommendations(ctx, req.EventID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
