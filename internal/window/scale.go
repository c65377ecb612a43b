package window

import (
	"math"
	"time"
)

// Day is the default timeframe duration in milliseconds.
const Day int64 = 24 * 60 * 60 * 1000

// Scale converts between absolute time (Unix ms) and continuous timeframe
// coordinates. Timeframe index i covers [Time(i), Time(i+1)).
type Scale interface {
	Timeframe(t int64) float64
	Time(tf float64) int64
}

// FixedScale buckets time into Period-long timeframes whose boundaries are
// phase-aligned to Offset.
type FixedScale struct {
	Period int64
	Offset int64
}

// DailyScale returns 24h buckets aligned to minTime's time of day, so
// timeframe boundaries fall on the same wall-clock instant as minTime.
func DailyScale(minTime int64) FixedScale {
	return NewFixedScale(time.Duration(Day)*time.Millisecond, minTime)
}

// NewFixedScale returns period-long buckets aligned to origin. Non-positive
// periods fall back to one day.
func NewFixedScale(period time.Duration, origin int64) FixedScale {
	p := period.Milliseconds()
	if p <= 0 {
		p = Day
	}
	off := origin % p
	if off < 0 {
		off += p
	}
	return FixedScale{Period: p, Offset: off}
}

func (s FixedScale) Timeframe(t int64) float64 {
	return float64(t-s.Offset) / float64(s.Period)
}

func (s FixedScale) Time(tf float64) int64 {
	return int64(math.Round(tf*float64(s.Period))) + s.Offset
}
