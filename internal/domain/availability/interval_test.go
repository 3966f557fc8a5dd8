package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(h, m int) time.Time {
	return time.Date(2025, 6, 2, h, m, 0, 0, time.UTC)
}

func TestMergeIntervals(t *testing.T) {
	tests := []struct {
		name     string
		input    []Interval
		expected []Interval
	}{
		{
			name:     "empty input",
			input:    nil,
			expected: nil,
		},
		{
			name: "overlapping intervals coalesce",
			input: []Interval{
				{Start: at(10, 0), End: at(12, 0)},
				{Start: at(11, 0), End: at(13, 0)},
			},
			expected: []Interval{{Start: at(10, 0), End: at(13, 0)}},
		},
		{
			name: "touching intervals coalesce",
			input: []Interval{
				{Start: at(10, 0), End: at(11, 0)},
				{Start: at(11, 0), End: at(12, 0)},
			},
			expected: []Interval{{Start: at(10, 0), End: at(12, 0)}},
		},
		{
			name: "unsorted disjoint input comes out sorted",
			input: []Interval{
				{Start: at(14, 0), End: at(15, 0)},
				{Start: at(9, 0), End: at(10, 0)},
			},
			expected: []Interval{
				{Start: at(9, 0), End: at(10, 0)},
				{Start: at(14, 0), End: at(15, 0)},
			},
		},
		{
			name: "zero-length and inverted entries are dropped",
			input: []Interval{
				{Start: at(10, 0), End: at(10, 0)},
				{Start: at(12, 0), End: at(11, 0)},
				{Start: at(9, 0), End: at(9, 30)},
			},
			expected: []Interval{{Start: at(9, 0), End: at(9, 30)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MergeIntervals(tt.input))
		})
	}
}

func TestSubtractIntervals(t *testing.T) {
	rangeStart, rangeEnd := at(8, 0), at(18, 0)

	tests := []struct {
		name     string
		busy     []Interval
		expected []Interval
	}{
		{
			name:     "no busy time yields the whole range",
			busy:     nil,
			expected: []Interval{{Start: rangeStart, End: rangeEnd}},
		},
		{
			name: "busy in the middle splits the range",
			busy: []Interval{{Start: at(12, 0), End: at(13, 0)}},
			expected: []Interval{
				{Start: at(8, 0), End: at(12, 0)},
				{Start: at(13, 0), End: at(18, 0)},
			},
		},
		{
			name:     "busy covering the whole range yields nothing",
			busy:     []Interval{{Start: at(7, 0), End: at(19, 0)}},
			expected: nil,
		},
		{
			name: "duplicate busy from two feeds does not double subtract",
			busy: []Interval{
				{Start: at(9, 0), End: at(10, 0)},
				{Start: at(9, 0), End: at(10, 0)},
			},
			expected: []Interval{
				{Start: at(8, 0), End: at(9, 0)},
				{Start: at(10, 0), End: at(18, 0)},
			},
		},
		{
			name: "busy overlapping the range edges is clipped",
			busy: []Interval{
				{Start: at(6, 0), End: at(9, 0)},
				{Start: at(17, 0), End: at(20, 0)},
			},
			expected: []Interval{{Start: at(9, 0), End: at(17, 0)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			free := SubtractIntervals(rangeStart, rangeEnd, tt.busy)
			assert.Equal(t, tt.expected, free)

			// Output invariants: sorted, disjoint, contained in the range.
			for i, iv := range free {
				assert.True(t, iv.Valid())
				assert.False(t, iv.Start.Before(rangeStart))
				assert.False(t, iv.End.After(rangeEnd))
				if i > 0 {
					assert.True(t, free[i-1].End.Before(iv.Start))
				}
			}
		})
	}
}

func TestSubtractIntervalsInvalidRange(t *testing.T) {
	assert.Nil(t, SubtractIntervals(at(10, 0), at(10, 0), nil))
	assert.Nil(t, SubtractIntervals(at(11, 0), at(10, 0), nil))
}

func TestClipIntervals(t *testing.T) {
	out := ClipIntervals([]Interval{
		{Start: at(6, 0), End: at(9, 0)},   // clipped left
		{Start: at(10, 0), End: at(11, 0)}, // inside
		{Start: at(17, 30), End: at(19, 0)}, // clipped right
		{Start: at(19, 0), End: at(20, 0)}, // outside
	}, at(8, 0), at(18, 0))

	assert.Equal(t, []Interval{
		{Start: at(8, 0), End: at(9, 0)},
		{Start: at(10, 0), End: at(11, 0)},
		{Start: at(17, 30), End: at(18, 0)},
	}, out)
}
