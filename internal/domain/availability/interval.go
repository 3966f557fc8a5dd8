package availability

import (
	"sort"
	"time"
)

// Pure interval algebra shared by the single-user aggregator and the
// multi-user recommendation sweep. All functions treat intervals as
// half-open [Start, End) ranges and return minimal, sorted, non-overlapping
// output.

// MergeIntervals sorts the given intervals and coalesces overlapping or
// touching ones. Zero-length and inverted intervals are discarded first, so
// malformed feed entries can never produce artifact gaps downstream.
func MergeIntervals(intervals []Interval) []Interval {
	valid := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Valid() {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool {
		if valid[i].Start.Equal(valid[j].Start) {
			return valid[i].End.Before(valid[j].End)
		}
		return valid[i].Start.Before(valid[j].Start)
	})

	merged := []Interval{valid[0]}
	for _, iv := range valid[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			// Overlapping or touching: extend
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// SubtractIntervals removes the busy set from the half-open range
// [rangeStart, rangeEnd) and returns the remaining free intervals, sorted
// and disjoint. Busy intervals are merged first so duplicate coverage from
// several subscriptions never double-subtracts.
func SubtractIntervals(rangeStart, rangeEnd time.Time, busy []Interval) []Interval {
	if !rangeEnd.After(rangeStart) {
		return nil
	}

	merged := MergeIntervals(busy)

	var free []Interval
	cursor := rangeStart
	for _, b := range merged {
		if !b.End.After(cursor) {
			continue // entirely before the sweep cursor
		}
		if !b.Start.Before(rangeEnd) {
			break // entirely after the range
		}
		if b.Start.After(cursor) {
			end := b.Start
			if end.After(rangeEnd) {
				end = rangeEnd
			}
			free = append(free, Interval{Start: cursor, End: end})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
		if !cursor.Before(rangeEnd) {
			return free
		}
	}
	if cursor.Before(rangeEnd) {
		free = append(free, Interval{Start: cursor, End: rangeEnd})
	}
	return free
}

// ClipIntervals restricts intervals to [rangeStart, rangeEnd), dropping
// anything that falls outside.
func ClipIntervals(intervals []Interval, rangeStart, rangeEnd time.Time) []Interval {
	var out []Interval
	for _, iv := range intervals {
		if !iv.End.After(rangeStart) || !iv.Start.Before(rangeEnd) {
			continue
		}
		clipped := iv
		if clipped.Start.Before(rangeStart) {
			clipped.Start = rangeStart
		}
		if clipped.End.After(rangeEnd) {
			clipped.End = rangeEnd
		}
		if clipped.Valid() {
			out = append(out, clipped)
		}
	}
	return out
}

// dayIntervals converts blocked dates into whole-day busy intervals,
// [00:00, 24:00) per date.
func dayIntervals(days []time.Time) []Interval {
	out := make([]Interval, 0, len(days))
	for _, d := range days {
		start := dayFloor(d)
		out = append(out, Interval{Start: start, End: start.AddDate(0, 0, 1)})
	}
	return out
}
