package window

import (
	"math"
	"slices"

	"github.com/samber/lo"

	"tlview/internal/bounds"
)

// Window is the desired preload range for one update cycle.
type Window struct {
	TimeFrom int64 `json:"time_from"`
	TimeTo   int64 `json:"time_to"`
	Frames   Range `json:"frames"`
}

// Shift describes what changed when the active range moved.
type Shift struct {
	Added   []int
	Removed []int
	// Orphans are the member ids of removed timeframes, in removal order.
	Orphans []string
}

// StatusChange lists the visual consequences of a SetStatus call.
type StatusChange struct {
	LoadingOn    []int
	LoadingOff   []int
	ErrorCleared bool
}

// Manager owns the timeframe table and the active half-open range.
// It is not safe for concurrent use; the timeline serializes access.
type Manager struct {
	eval  bounds.Evaluated
	scale Scale

	frames map[int]*Timeframe
	active Range

	errShown bool
	errMsg   string
}

// NewManager returns a manager with an empty active range and a daily
// scale anchored at zero.
func NewManager() *Manager {
	return &Manager{
		scale:  DailyScale(0),
		frames: make(map[int]*Timeframe),
	}
}

// Rebase installs the bounds snapshot and scale for the current cycle.
func (m *Manager) Rebase(e bounds.Evaluated, s Scale) {
	m.eval = e
	if s != nil {
		m.scale = s
	}
}

func (m *Manager) Bounds() bounds.Evaluated { return m.eval }

func (m *Manager) Scale() Scale { return m.scale }

func (m *Manager) Active() Range { return m.active }

// Timeframe returns the live timeframe at index i, or nil.
func (m *Manager) Timeframe(i int) *Timeframe {
	return m.frames[i]
}

// Frames returns the active timeframes left to right.
func (m *Manager) Frames() []*Timeframe {
	out := make([]*Timeframe, 0, m.active.Len())
	for i := m.active.From; i < m.active.To; i++ {
		if tf := m.frames[i]; tf != nil {
			out = append(out, tf)
		}
	}
	return out
}

// FrameTimes returns the absolute [from, to) of timeframe i.
func (m *Manager) FrameTimes(i int) (int64, int64) {
	return m.scale.Time(float64(i)), m.scale.Time(float64(i + 1))
}

// ClampPosition keeps the left edge inside [MinTime, last full viewport].
// The lower bound wins when the two conflict.
func (m *Manager) ClampPosition(pos int64) int64 {
	maxPos := m.scale.Time(m.scale.Timeframe(m.eval.MaxTime) - m.eval.CurViewport)
	if pos > maxPos {
		pos = maxPos
	}
	if pos < m.eval.MinTime {
		pos = m.eval.MinTime
	}
	return pos
}

// ComputeWindow returns the preload range around position:
// [position - PreloadBefore, position + CurViewport + PreloadAfter) snapped
// outward to timeframe boundaries and clamped to [MinTime, MaxTime).
func (m *Manager) ComputeWindow(position int64) Window {
	e, s := m.eval, m.scale
	pos := s.Timeframe(position)

	timeFrom := s.Time(math.Floor(pos - e.PreloadBefore))
	timeTo := s.Time(math.Ceil(pos + e.CurViewport + e.PreloadAfter))
	if timeFrom < e.MinTime {
		timeFrom = e.MinTime
	}
	if timeTo > e.MaxTime {
		timeTo = e.MaxTime
	}
	if timeTo <= timeFrom {
		i := int(math.Floor(s.Timeframe(timeFrom)))
		return Window{TimeFrom: timeFrom, TimeTo: timeFrom, Frames: Range{From: i, To: i}}
	}

	return Window{
		TimeFrom: timeFrom,
		TimeTo:   timeTo,
		Frames: Range{
			From: int(math.Floor(s.Timeframe(timeFrom))),
			To:   int(math.Ceil(s.Timeframe(timeTo))),
		},
	}
}

// AddTimeframe creates timeframe i if it does not exist. It reports whether
// a new timeframe was created.
func (m *Manager) AddTimeframe(i int) bool {
	if _, ok := m.frames[i]; ok {
		return false
	}
	m.frames[i] = newTimeframe(i)
	return true
}

// RemoveTimeframe destroys timeframe i and returns its member ids so the
// caller can orphan them. Removing a missing timeframe is a no-op.
func (m *Manager) RemoveTimeframe(i int) []string {
	tf, ok := m.frames[i]
	if !ok {
		return nil
	}
	delete(m.frames, i)
	return tf.Events()
}

// SetActive moves the active range to r, creating entering timeframes and
// destroying every timeframe outside r.
func (m *Manager) SetActive(r Range) Shift {
	var sh Shift
	if r.To < r.From {
		r.To = r.From
	}
	for i := r.From; i < r.To; i++ {
		if m.AddTimeframe(i) {
			sh.Added = append(sh.Added, i)
		}
	}

	stale := lo.Filter(lo.Keys(m.frames), func(i int, _ int) bool { return !r.Contains(i) })
	slices.Sort(stale)
	for _, i := range stale {
		sh.Orphans = append(sh.Orphans, m.RemoveTimeframe(i)...)
		sh.Removed = append(sh.Removed, i)
	}

	m.active = r
	return sh
}

// MissingRange scans the active range from both ends inward, skipping
// timeframes that are requested or resolved, and returns the minimal
// contiguous range that still needs fetching. Failed timeframes count as
// settled unless includeFailed is set, so a window shift never retries a
// failure on its own.
func (m *Manager) MissingRange(includeFailed bool) (Range, bool) {
	settled := func(i int) bool {
		tf := m.frames[i]
		if tf == nil || tf.Loading == Untouched {
			return false
		}
		return !(includeFailed && tf.Err)
	}

	from, to := m.active.From, m.active.To-1
	for from < m.active.To && settled(from) {
		from++
	}
	for to >= from && settled(to) {
		to--
	}
	if from > to {
		return Range{}, false
	}
	return Range{From: from, To: to + 1}, true
}

// TimeRange converts a timeframe range to absolute [from, to).
func (m *Manager) TimeRange(r Range) (int64, int64) {
	return m.scale.Time(float64(r.From)), m.scale.Time(float64(r.To))
}

// SetStatus updates every timeframe in [floor(tf(timeFrom)), floor(tf(timeTo))).
//
// A non-loading or failing update resolves the timeframe (turning off a
// loading indicator if one was on) and accumulates the error flag. A loading
// update marks the timeframe requested. Any non-error update clears the
// timeframe's error and, once no active timeframe is failed, the global
// error indicator.
func (m *Manager) SetStatus(timeFrom, timeTo int64, loading, failed bool) StatusChange {
	var ch StatusChange
	from := int(math.Floor(m.scale.Timeframe(timeFrom)))
	to := int(math.Floor(m.scale.Timeframe(timeTo)))

	for i := from; i < to; i++ {
		tf := m.frames[i]
		if tf == nil {
			continue
		}
		if !loading || failed {
			if tf.Loading == Requested {
				ch.LoadingOff = append(ch.LoadingOff, i)
			}
			tf.Loading = Resolved
			if failed {
				tf.Err = true
			}
		}
		if loading && !failed {
			tf.Loading = Requested
			ch.LoadingOn = append(ch.LoadingOn, i)
		}
		if !failed {
			tf.Err = false
		}
	}

	if !failed && m.errShown {
		for _, tf := range m.Frames() {
			if tf.Err {
				return ch
			}
		}
		m.errShown = false
		m.errMsg = ""
		ch.ErrorCleared = true
	}
	return ch
}

// ShowError records the global error indicator. It reports whether the
// indicator was newly shown; an indicator already on keeps its message.
func (m *Manager) ShowError(msg string) bool {
	if m.errShown {
		return false
	}
	m.errShown = true
	m.errMsg = msg
	return true
}

// ErrorState returns the indicator message and whether it is shown.
func (m *Manager) ErrorState() (string, bool) {
	return m.errMsg, m.errShown
}

// Reset forgets the load status of every active timeframe so the next
// window update requests the whole range again.
func (m *Manager) Reset() {
	for _, tf := range m.Frames() {
		tf.Loading = Untouched
		tf.Err = false
	}
}
