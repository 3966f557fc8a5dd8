package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWindowGrid(t *testing.T) {
	tests := []struct {
		name string
		day  time.Time
	}{
		{"epoch itself", date(2020, 1, 1)},
		{"last day of first tile", date(2020, 1, 1).AddDate(0, 0, WindowDays-1)},
		{"first day of second tile", date(2020, 1, 1).AddDate(0, 0, WindowDays)},
		{"date before the epoch", date(2019, 12, 15)},
		{"far future date", date(2031, 7, 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := WindowStartFor(tt.day)
			off := DayOffset(tt.day)

			assert.False(t, ws.After(tt.day), "window start must not be after the day")
			assert.GreaterOrEqual(t, off, 0)
			assert.Less(t, off, WindowDays)
			assert.Equal(t, dayFloor(tt.day), ws.AddDate(0, 0, off), "windowStart + offset must reconstruct the day")
			// Window starts must sit on the grid.
			assert.Equal(t, 0, daysSinceEpoch(ws)%WindowDays)
		})
	}
}

func TestBitmapSetRange(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []int
	}{
		{"single day", 5, 6, []int{5}},
		{"within one byte", 1, 4, []int{1, 2, 3}},
		{"crossing a byte boundary", 6, 10, []int{6, 7, 8, 9}},
		{"full first byte", 0, 8, []int{0, 1, 2, 3, 4, 5, 6, 7}},
		{"empty range", 4, 4, nil},
		{"tail of the tile", 93, 96, []int{93, 94, 95}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bitmap := make([]byte, WindowBytes)
			bitmapSetRange(bitmap, tt.from, tt.to)

			for off := 0; off < WindowDays; off++ {
				expected := false
				for _, w := range tt.want {
					if w == off {
						expected = true
					}
				}
				assert.Equal(t, expected, bitmapTest(bitmap, off), "offset %d", off)
			}
		})
	}
}

func TestBitmapRangeIdempotent(t *testing.T) {
	bitmap := make([]byte, WindowBytes)

	bitmapSetRange(bitmap, 10, 20)
	snapshot := make([]byte, WindowBytes)
	copy(snapshot, bitmap)

	bitmapSetRange(bitmap, 10, 20)
	assert.Equal(t, snapshot, bitmap, "re-applying the same set must not change state")

	bitmapClearRange(bitmap, 10, 20)
	assert.Equal(t, make([]byte, WindowBytes), bitmap)

	bitmapClearRange(bitmap, 10, 20)
	assert.Equal(t, make([]byte, WindowBytes), bitmap, "clearing already clear bits must be a no-op")
}

func TestBitmapRangeEqualsSingles(t *testing.T) {
	ranged := make([]byte, WindowBytes)
	singles := make([]byte, WindowBytes)

	bitmapSetRange(ranged, 3, 43)
	for off := 3; off < 43; off++ {
		bitmapSet(singles, off)
	}
	assert.Equal(t, singles, ranged, "range set must equal day-by-day sets")

	bitmapClearRange(ranged, 3, 43)
	for off := 3; off < 43; off++ {
		bitmapClear(singles, off)
	}
	assert.Equal(t, singles, ranged, "range clear must equal day-by-day clears")
}

func TestSplitRangeIntoTiles(t *testing.T) {
	t.Run("range within one tile", func(t *testing.T) {
		spans := splitRangeIntoTiles(date(2025, 3, 10), date(2025, 3, 13))
		assert.Len(t, spans, 1)
		assert.Equal(t, 3, spans[0].to-spans[0].from)
	})

	t.Run("range crossing a tile boundary", func(t *testing.T) {
		boundary := date(2020, 1, 1).AddDate(0, 0, WindowDays)
		spans := splitRangeIntoTiles(boundary.AddDate(0, 0, -2), boundary.AddDate(0, 0, 2))

		assert.Len(t, spans, 2)
		assert.Equal(t, WindowDays-2, spans[0].from)
		assert.Equal(t, WindowDays, spans[0].to)
		assert.Equal(t, 0, spans[1].from)
		assert.Equal(t, 2, spans[1].to)
		assert.Equal(t, boundary, spans[1].windowStart)
	})

	t.Run("empty range", func(t *testing.T) {
		assert.Nil(t, splitRangeIntoTiles(date(2025, 3, 10), date(2025, 3, 10)))
	})
}

func TestBlockedRangeExample(t *testing.T) {
	// Blocking 2025-03-10 through 2025-03-12 must block exactly those three
	// days and leave the neighbors free.
	bitmap := make([]byte, WindowBytes)
	spans := splitRangeIntoTiles(date(2025, 3, 10), date(2025, 3, 13))
	for _, span := range spans {
		bitmapSetRange(bitmap, span.from, span.to)
	}

	ws := WindowStartFor(date(2025, 3, 10))
	assert.False(t, bitmapTest(bitmap, DayOffset(date(2025, 3, 9))))
	assert.True(t, bitmapTest(bitmap, DayOffset(date(2025, 3, 10))))
	assert.True(t, bitmapTest(bitmap, DayOffset(date(2025, 3, 11))))
	assert.True(t, bitmapTest(bitmap, DayOffset(date(2025, 3, 12))))
	assert.False(t, bitmapTest(bitmap, DayOffset(date(2025, 3, 13))))

	days := bitmapListDays(bitmap, ws, 0, WindowDays)
	assert.Equal(t, []time.Time{date(2025, 3, 10), date(2025, 3, 11), date(2025, 3, 12)}, days)
}
