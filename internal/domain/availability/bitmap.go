package availability

import "time"

// Blocked days are stored as one bit per day inside fixed 96-day tiles.
// The grid is anchored at a shared epoch so tiles never overlap and every
// date maps to exactly one (windowStart, bit offset) pair. A tile costs 12
// bytes per user per ~3 months, and any single-day lookup touches exactly
// one row.
const (
	WindowDays  = 96
	WindowBytes = WindowDays / 8
)

// windowEpoch anchors the tile grid. It must never change once data exists.
var windowEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// dayFloor truncates t to midnight UTC.
func dayFloor(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysSinceEpoch returns the number of whole days between the epoch and d.
func daysSinceEpoch(d time.Time) int {
	return int(dayFloor(d).Sub(windowEpoch).Hours() / 24)
}

// WindowStartFor returns the start of the tile containing d.
func WindowStartFor(d time.Time) time.Time {
	days := daysSinceEpoch(d)
	tile := days / WindowDays
	if days < 0 && days%WindowDays != 0 {
		tile--
	}
	return windowEpoch.AddDate(0, 0, tile*WindowDays)
}

// DayOffset returns d's bit position inside its tile, in [0, WindowDays).
func DayOffset(d time.Time) int {
	off := daysSinceEpoch(d) - daysSinceEpoch(WindowStartFor(d))
	return off
}

func bitmapSet(bitmap []byte, offset int) {
	bitmap[offset/8] |= 1 << uint(offset%8)
}

func bitmapClear(bitmap []byte, offset int) {
	bitmap[offset/8] &^= 1 << uint(offset%8)
}

func bitmapTest(bitmap []byte, offset int) bool {
	return bitmap[offset/8]&(1<<uint(offset%8)) != 0
}

// byteMask builds the mask covering bit positions [lo, hi) within one byte.
func byteMask(lo, hi int) byte {
	return byte(0xFF<<uint(lo)) & byte(0xFF>>uint(8-hi))
}

// bitmapSetRange sets every bit in the half-open offset range [from, to).
// Partial bytes at either edge are masked so bits outside the range are
// never touched.
func bitmapSetRange(bitmap []byte, from, to int) {
	if from >= to {
		return
	}
	firstByte := from / 8
	lastByte := (to - 1) / 8
	for b := firstByte; b <= lastByte; b++ {
		lo := 0
		if b == firstByte {
			lo = from % 8
		}
		hi := 8
		if b == lastByte {
			hi = (to-1)%8 + 1
		}
		bitmap[b] |= byteMask(lo, hi)
	}
}

// bitmapClearRange clears every bit in the half-open offset range [from, to).
func bitmapClearRange(bitmap []byte, from, to int) {
	if from >= to {
		return
	}
	firstByte := from / 8
	lastByte := (to - 1) / 8
	for b := firstByte; b <= lastByte; b++ {
		lo := 0
		if b == firstByte {
			lo = from % 8
		}
		hi := 8
		if b == lastByte {
			hi = (to-1)%8 + 1
		}
		bitmap[b] &^= byteMask(lo, hi)
	}
}

// bitmapListDays returns the dates of all set bits in the tile starting at
// windowStart, restricted to offsets [from, to).
func bitmapListDays(bitmap []byte, windowStart time.Time, from, to int) []time.Time {
	var days []time.Time
	for off := from; off < to; off++ {
		if bitmapTest(bitmap, off) {
			days = append(days, windowStart.AddDate(0, 0, off))
		}
	}
	return days
}

// tileSpan is the portion of a date range [start, end) that falls inside a
// single tile, expressed as bit offsets.
type tileSpan struct {
	windowStart time.Time
	from, to    int // half-open offset range within the tile
}

// splitRangeIntoTiles splits the half-open date range [start, end) at tile
// boundaries. No logical write ever touches a tile it does not overlap.
func splitRangeIntoTiles(start, end time.Time) []tileSpan {
	start = dayFloor(start)
	end = dayFloor(end)
	if !end.After(start) {
		return nil
	}

	var spans []tileSpan
	for cur := start; cur.Before(end); {
		ws := WindowStartFor(cur)
		windowEnd := ws.AddDate(0, 0, WindowDays)

		spanEnd := end
		if windowEnd.Before(end) {
			spanEnd = windowEnd
		}

		spans = append(spans, tileSpan{
			windowStart: ws,
			from:        DayOffset(cur),
			to:          DayOffset(spanEnd.AddDate(0, 0, -1)) + 1,
		})
		cur = spanEnd
	}
	return spans
}
