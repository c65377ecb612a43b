// Package bounds resolves the timeline's literal-or-provider configuration
// into one immutable snapshot per update cycle.
package bounds

import (
	"math"
	"time"

	appLog "tlview/internal/log"
	"tlview/internal/model"
)

// Value is either a literal or a zero-argument provider. Providers are
// invoked exactly once per Resolve call.
type Value[T any] struct {
	lit T
	fn  func() T
}

// Literal wraps a fixed value.
func Literal[T any](v T) Value[T] {
	return Value[T]{lit: v}
}

// Provider wraps a function evaluated at the start of every update cycle.
func Provider[T any](fn func() T) Value[T] {
	return Value[T]{fn: fn}
}

// Get returns the literal or calls the provider.
func (v Value[T]) Get() T {
	if v.fn != nil {
		return v.fn()
	}
	return v.lit
}

// IsProvider reports whether the value is computed on each resolve.
func (v Value[T]) IsProvider() bool {
	return v.fn != nil
}

// Bounds is the configurable part of a timeline. Times are Unix
// milliseconds; viewport and preload values are in timeframe units.
type Bounds struct {
	MinTime Value[int64]
	MaxTime Value[int64]

	MinViewport Value[float64]
	MaxViewport Value[float64]
	CurViewport Value[float64]

	// Position is the initial left edge. It is consulted only until the
	// timeline has a position of its own.
	Position Value[model.Stamp]
	Now      Value[model.Stamp]

	PreloadBefore Value[float64]
	PreloadAfter  Value[float64]

	// AutoUpdate is the refresh interval; zero or negative disables it.
	AutoUpdate Value[time.Duration]
}

// Default returns the bounds a timeline starts with before configuration.
func Default() Bounds {
	return Bounds{
		MinTime:       Literal[int64](0),
		MaxTime:       Literal[int64](0),
		MinViewport:   Literal(1.0),
		MaxViewport:   Literal(1.0),
		CurViewport:   Literal(1.0),
		Position:      Literal(model.Stamp{}),
		Now:           Literal(model.Stamp{}),
		PreloadBefore: Literal(1.0),
		PreloadAfter:  Literal(1.0),
		AutoUpdate:    Literal(time.Duration(0)),
	}
}

// Evaluated is the resolved snapshot. It is a plain value: copies never
// observe later provider results.
type Evaluated struct {
	MinTime int64 `json:"min_time"`
	MaxTime int64 `json:"max_time"`

	MinViewport float64 `json:"min_viewport"`
	MaxViewport float64 `json:"max_viewport"`
	CurViewport float64 `json:"cur_viewport"`

	Position model.Stamp `json:"position"`
	Now      model.Stamp `json:"now"`

	PreloadBefore float64 `json:"preload_before"`
	PreloadAfter  float64 `json:"preload_after"`

	AutoUpdate time.Duration `json:"auto_update"`
}

// Resolve evaluates every field once and clamps inconsistent values instead
// of rejecting them:
//   - MaxTime < MinTime collapses to MinTime
//   - non-positive or NaN viewports become 1
//   - MaxViewport < MinViewport is raised to MinViewport
//   - CurViewport is clamped into [MinViewport, MaxViewport]
//   - negative or NaN preload margins become 0
//   - negative AutoUpdate becomes 0 (disabled)
func (b Bounds) Resolve() Evaluated {
	e := Evaluated{
		MinTime:       b.MinTime.Get(),
		MaxTime:       b.MaxTime.Get(),
		MinViewport:   b.MinViewport.Get(),
		MaxViewport:   b.MaxViewport.Get(),
		CurViewport:   b.CurViewport.Get(),
		Position:      b.Position.Get(),
		Now:           b.Now.Get(),
		PreloadBefore: b.PreloadBefore.Get(),
		PreloadAfter:  b.PreloadAfter.Get(),
		AutoUpdate:    b.AutoUpdate.Get(),
	}

	if e.MaxTime < e.MinTime {
		appLog.Debug("bounds: max_time before min_time, collapsing", "min", e.MinTime, "max", e.MaxTime)
		e.MaxTime = e.MinTime
	}
	e.MinViewport = positive(e.MinViewport)
	e.MaxViewport = positive(e.MaxViewport)
	if e.MaxViewport < e.MinViewport {
		e.MaxViewport = e.MinViewport
	}
	e.CurViewport = e.ClampViewport(positive(e.CurViewport))
	e.PreloadBefore = nonNegative(e.PreloadBefore)
	e.PreloadAfter = nonNegative(e.PreloadAfter)
	if e.AutoUpdate < 0 {
		e.AutoUpdate = 0
	}
	return e
}

// ClampViewport limits v to [MinViewport, MaxViewport].
func (e Evaluated) ClampViewport(v float64) float64 {
	return math.Min(math.Max(v, e.MinViewport), e.MaxViewport)
}

func positive(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 1
	}
	return v
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
