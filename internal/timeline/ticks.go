package timeline

import (
	"time"

	"tlview/internal/render"
)

const tickCount = 8

// DefaultTicks returns eight evenly spaced ticks per timeframe labeled with
// the wall-clock time in loc; the first tick carries the calendar date.
func DefaultTicks(loc *time.Location) func(from, to int64) []render.Tick {
	if loc == nil {
		loc = time.Local
	}
	return func(from, to int64) []render.Tick {
		ticks := make([]render.Tick, tickCount)
		step := (to - from) / tickCount
		for i := range ticks {
			at := time.UnixMilli(from + int64(i)*step).In(loc)
			label := at.Format("15:04")
			if i == 0 {
				label = at.Format("Jan 2 2006")
			}
			ticks[i] = render.Tick{Position: float64(i) / tickCount, Label: label}
		}
		return ticks
	}
}
