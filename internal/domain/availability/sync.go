package availability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/42cats/crime-cat-sub002/internal/infrastructure/cache"
	"github.com/42cats/crime-cat-sub002/pkg/logger"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	rrule "github.com/teambition/rrule-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IntervalCache is the slice of the cache client the sync worker needs. The
// cached busy set for a subscription is replaced with a single atomic SET,
// so readers never observe a transiently empty state.
type IntervalCache interface {
	GetJSON(ctx context.Context, key string, out interface{}) error
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
}

// Syncer ingests external calendar feeds into normalized busy intervals.
// Each subscription succeeds or fails on its own; a failure leaves the
// previously cached intervals in place (stale-but-available).
type Syncer struct {
	repo       Repository
	cache      IntervalCache
	httpClient *http.Client
	log        *logger.Logger
	timeout    time.Duration
	busyTTL    time.Duration
}

// NewSyncer creates a new sync worker. timeout bounds every single feed
// fetch; a hanging feed never delays the rest of a batch.
func NewSyncer(repo Repository, intervalCache IntervalCache, log *logger.Logger, timeout, busyTTL time.Duration) *Syncer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Syncer{
		repo:  repo,
		cache: intervalCache,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:     log,
		timeout: timeout,
		busyTTL: busyTTL,
	}
}

// SyncOne fetches and parses a single subscription's feed, replaces its
// cached busy set and stamps the sync status. On failure the subscription
// is marked error and the old cached intervals survive.
func (s *Syncer) SyncOne(ctx context.Context, sub *CalendarSubscription, rangeStart, rangeEnd time.Time) ([]Interval, error) {
	if !rangeEnd.After(rangeStart) {
		return nil, ErrInvalidRange
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.fetchFeed(ctx, sub.FeedURL)
	if err != nil {
		s.markError(ctx, sub, err)
		return nil, fmt.Errorf("%w: %v", ErrFeedUnreachable, err)
	}

	intervals, err := parseFeed(body, rangeStart, rangeEnd)
	if err != nil {
		s.markError(ctx, sub, err)
		return nil, fmt.Errorf("%w: %v", ErrFeedParse, err)
	}

	merged := ClipIntervals(MergeIntervals(intervals), rangeStart, rangeEnd)

	// One SET replaces the whole cached set atomically.
	if err := s.cache.SetJSON(ctx, cache.BusyIntervalKey(sub.ID), merged, s.busyTTL); err != nil {
		s.markError(ctx, sub, err)
		return nil, fmt.Errorf("%w: caching intervals: %v", ErrFeedUnreachable, err)
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateSyncStatus(ctx, sub.ID, SyncStatusSuccess, "", &now); err != nil {
		s.log.Error("Failed to stamp sync success",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(err),
		)
	}

	s.log.Info("Calendar feed synced",
		zap.String("subscription_id", sub.ID.String()),
		zap.Int("intervals", len(merged)),
	)
	return merged, nil
}

// SyncAll fans out one concurrent fetch per active subscription and always
// returns a full per-subscription result map; a slow or failing feed delays
// only overall batch completion, never other feeds' results.
func (s *Syncer) SyncAll(ctx context.Context, userID uuid.UUID, rangeStart, rangeEnd time.Time) (map[uuid.UUID]SyncResult, error) {
	if !rangeEnd.After(rangeStart) {
		return nil, ErrInvalidRange
	}

	subs, err := s.repo.ListSubscriptions(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	results := make(map[uuid.UUID]SyncResult, len(subs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i := range subs {
		sub := subs[i]
		g.Go(func() error {
			intervals, syncErr := s.SyncOne(gctx, &sub, rangeStart, rangeEnd)

			result := SyncResult{
				SubscriptionID: sub.ID,
				Status:         SyncStatusSuccess,
				Intervals:      len(intervals),
			}
			if syncErr != nil {
				result.Status = SyncStatusError
				result.Err = syncErr
				result.ErrMessage = syncErr.Error()
			}

			mu.Lock()
			results[sub.ID] = result
			mu.Unlock()

			// Per-feed failures are recorded, never propagated: returning an
			// error here would cancel the sibling fetches.
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// CachedIntervals returns the last successfully synced busy set for a
// subscription, or nil when nothing has ever been cached.
func (s *Syncer) CachedIntervals(ctx context.Context, subscriptionID uuid.UUID) []Interval {
	var intervals []Interval
	if err := s.cache.GetJSON(ctx, cache.BusyIntervalKey(subscriptionID), &intervals); err != nil {
		return nil
	}
	return intervals
}

func (s *Syncer) markError(ctx context.Context, sub *CalendarSubscription, cause error) {
	s.log.Warn("Calendar feed sync failed",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("feed_url", sub.FeedURL),
		zap.Error(cause),
	)
	if err := s.repo.UpdateSyncStatus(ctx, sub.ID, SyncStatusError, cause.Error(), nil); err != nil {
		s.log.Error("Failed to stamp sync error",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Syncer) fetchFeed(ctx context.Context, feedURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// parseFeed decodes an iCalendar payload into busy intervals overlapping
// [rangeStart, rangeEnd). Recurring entries are expanded only inside the
// queried range, so an open-ended RRULE can never explode.
func parseFeed(body string, rangeStart, rangeEnd time.Time) ([]Interval, error) {
	trimmed := strings.TrimSpace(body)
	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "<!DOCTYPE") || strings.HasPrefix(upper, "<HTML") {
		return nil, fmt.Errorf("received HTML instead of iCalendar data")
	}
	if !strings.HasPrefix(trimmed, "BEGIN:VCALENDAR") {
		return nil, fmt.Errorf("invalid iCalendar payload: missing BEGIN:VCALENDAR")
	}

	decoder := ical.NewDecoder(strings.NewReader(trimmed))
	var intervals []Interval

	for {
		cal, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode calendar: %w", err)
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}

			start, end, ok := eventTimes(comp)
			if !ok || !end.After(start) {
				continue // missing or inverted times, drop the entry
			}

			if rruleProp := comp.Props.Get(ical.PropRecurrenceRule); rruleProp != nil {
				intervals = append(intervals, expandRecurrence(start, end.Sub(start), rruleProp.Value, rangeStart, rangeEnd)...)
				continue
			}

			if start.Before(rangeEnd) && end.After(rangeStart) {
				intervals = append(intervals, Interval{Start: start.UTC(), End: end.UTC()})
			}
		}
	}

	return intervals, nil
}

// eventTimes extracts DTSTART/DTEND from a VEVENT component.
func eventTimes(comp *ical.Component) (time.Time, time.Time, bool) {
	startProp := comp.Props.Get(ical.PropDateTimeStart)
	endProp := comp.Props.Get(ical.PropDateTimeEnd)
	if startProp == nil || endProp == nil {
		return time.Time{}, time.Time{}, false
	}

	start, err := startProp.DateTime(time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := endProp.DateTime(time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// expandRecurrence generates the occurrences of a recurring entry that
// overlap the query range. Unparseable rules fall back to the base
// occurrence alone rather than failing the whole feed.
func expandRecurrence(eventStart time.Time, duration time.Duration, rruleValue string, rangeStart, rangeEnd time.Time) []Interval {
	rule, err := rrule.StrToRRule(rruleValue)
	if err != nil {
		if eventStart.Before(rangeEnd) && eventStart.Add(duration).After(rangeStart) {
			return []Interval{{Start: eventStart.UTC(), End: eventStart.Add(duration).UTC()}}
		}
		return nil
	}
	rule.DTStart(eventStart)

	// Start the window one occurrence-length early so an occurrence that
	// begins before the range but overlaps it is still included.
	occurrences := rule.Between(rangeStart.Add(-duration), rangeEnd, true)

	intervals := make([]Interval, 0, len(occurrences))
	for _, occ := range occurrences {
		iv := Interval{Start: occ.UTC(), End: occ.Add(duration).UTC()}
		if iv.Start.Before(rangeEnd) && iv.End.After(rangeStart) {
			intervals = append(intervals, iv)
		}
	}
	return intervals
}
