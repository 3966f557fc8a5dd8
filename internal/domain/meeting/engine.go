package meeting

import (
	"sort"
	"time"

	"github.com/42cats/crime-cat-sub002/internal/domain/availability"
	"github.com/google/uuid"
)

// CandidateSlot is one scored meeting time produced by the engine, before
// persistence. Attendees lists the participants whose availability fully
// covers the slot, in the request's participant order.
type CandidateSlot struct {
	Start             time.Time
	End               time.Time
	ParticipantCount  int
	TotalParticipants int
	Score             float64
	Attendees         []uuid.UUID
}

// RecommendSlots is the pure ranking core. Given each participant's free
// intervals it discretizes the window, scores every candidate start by the
// fraction of participants fully free for the whole duration, drops
// candidates below minParticipants, merges time-adjacent candidates with an
// identical attendee set, ranks and truncates to topK.
//
// The function is deterministic: equal inputs always yield the identical
// ordered output.
func RecommendSlots(req MeetingRequest, free map[uuid.UUID][]availability.Interval, granularity time.Duration, topK int) []CandidateSlot {
	if granularity <= 0 {
		granularity = 30 * time.Minute
	}
	if topK <= 0 {
		topK = 10
	}
	total := len(req.ParticipantIDs)
	if total == 0 {
		return nil
	}

	// coverage is tracked per candidate as a fixed-width bool vector so
	// adjacent candidates can be compared for an identical attendee set.
	type scored struct {
		CandidateSlot
		covered []bool
	}

	var candidates []scored
	for start := req.WindowStart; !start.Add(req.Duration).After(req.WindowEnd); start = start.Add(granularity) {
		end := start.Add(req.Duration)

		covered := make([]bool, total)
		count := 0
		for i, pid := range req.ParticipantIDs {
			if intervalsContain(free[pid], start, end) {
				covered[i] = true
				count++
			}
		}
		if count < req.MinParticipants {
			continue
		}

		candidates = append(candidates, scored{
			CandidateSlot: CandidateSlot{
				Start:             start,
				End:               end,
				ParticipantCount:  count,
				TotalParticipants: total,
				Score:             float64(count) / float64(total),
			},
			covered: covered,
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	// Merge runs of step-adjacent candidates whose attendee sets match; a
	// two-hour stretch where the same people are free becomes one slot, not
	// four half-hour entries. Adjacency is against the previous candidate's
	// start, not the run's first start, so runs of any length collapse.
	merged := []scored{candidates[0]}
	prevStart := candidates[0].Start
	for _, c := range candidates[1:] {
		last := &merged[len(merged)-1]
		if c.Start.Equal(prevStart.Add(granularity)) && coverageEqual(c.covered, last.covered) {
			last.End = c.End
		} else {
			merged = append(merged, c)
		}
		prevStart = c.Start
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if req.PreferredStart != nil {
			di := absDuration(merged[i].Start.Sub(*req.PreferredStart))
			dj := absDuration(merged[j].Start.Sub(*req.PreferredStart))
			if di != dj {
				return di < dj
			}
		}
		return merged[i].Start.Before(merged[j].Start)
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}

	out := make([]CandidateSlot, len(merged))
	for i, m := range merged {
		slot := m.CandidateSlot
		for p, ok := range m.covered {
			if ok {
				slot.Attendees = append(slot.Attendees, req.ParticipantIDs[p])
			}
		}
		out[i] = slot
	}
	return out
}

// intervalsContain reports whether [start, end) lies fully inside one of the
// given intervals. Intervals are sorted and disjoint (aggregator output), so
// a binary search on Start suffices.
func intervalsContain(intervals []availability.Interval, start, end time.Time) bool {
	idx := sort.Search(len(intervals), func(i int) bool {
		return intervals[i].Start.After(start)
	})
	if idx == 0 {
		return false
	}
	iv := intervals[idx-1]
	return !iv.Start.After(start) && !iv.End.Before(end)
}

func coverageEqual(a, b []bool) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
