// Package timeline is the viewport controller: it owns the position and
// zoom, resolves bounds once per update cycle, shifts the active window,
// drives adoption and layout, and schedules the coalesced auto-refresh.
//
// All state is guarded by one mutex. Calls into the Renderer happen with
// the lock held; calls into the DataSource and the click callback happen
// after it is released, so a source may push synchronously.
package timeline

import (
	"math"
	"sync"
	"time"

	"tlview/internal/bounds"
	"tlview/internal/clock"
	"tlview/internal/layout"
	appLog "tlview/internal/log"
	"tlview/internal/model"
	"tlview/internal/render"
	"tlview/internal/store"
	"tlview/internal/window"
)

// DataSource is asked for events overlapping [from, to). It must answer
// eventually through Timeline.Push or Timeline.Error, from any goroutine.
type DataSource interface {
	GetEvents(from, to int64)
}

// DataSourceFunc adapts a function to DataSource.
type DataSourceFunc func(from, to int64)

func (f DataSourceFunc) GetEvents(from, to int64) { f(from, to) }

var _ Sink = (*Timeline)(nil)

// Sink is the side of a Timeline a source answers to.
type Sink interface {
	Push(from, to int64, events []model.Event)
	Error(from, to int64, msg string)
}

// Binder is implemented by sources that need their sink before the first
// request. New binds them before running the initial update.
type Binder interface {
	Bind(s Sink)
}

// DefaultResizeDelay is the debounce applied to Resize.
const DefaultResizeDelay = 100 * time.Millisecond

// Options configures a Timeline. Zero fields get defaults.
type Options struct {
	Bounds   bounds.Bounds
	Source   DataSource
	Renderer render.Renderer

	// Scale buckets time into timeframes; the default is 24h aligned to
	// MinTime.
	Scale func(e bounds.Evaluated) window.Scale
	Ticks func(from, to int64) []render.Tick
	// Click receives a copy of the activated event, or nil when id is not
	// loaded.
	Click func(ev *model.Event, id string)

	Metrics     layout.Metrics
	Width       float64 // container width in pixels
	Clock       clock.Clock
	ResizeDelay time.Duration
}

// State is a read-only summary for status displays.
type State struct {
	Position   int64            `json:"position"`
	Bounds     bounds.Evaluated `json:"bounds"`
	Active     window.Range     `json:"active"`
	FrameWidth float64          `json:"frame_width"`
	Events     int              `json:"events"`
	LastPush   time.Time        `json:"last_push"`
}

type request struct {
	from, to int64
}

type Timeline struct {
	mu sync.Mutex

	bounds bounds.Bounds
	opts   Options
	clk    clock.Clock
	r      render.Renderer

	mgr   *window.Manager
	store *store.Store

	pos    int64
	hasPos bool
	zoom   float64 // literal curViewport override; 0 when unset
	width  float64

	autoTimer *clock.Timer
	autoGen   uint64

	resizeTimer *clock.Timer
	resizeGen   uint64

	lastPush time.Time
	requests []request
	closed   bool
}

// New builds a timeline and runs the first update cycle, which requests the
// initial window from the source.
func New(opts Options) *Timeline {
	if opts.Renderer == nil {
		opts.Renderer = render.NewScene()
	}
	if opts.Scale == nil {
		opts.Scale = func(e bounds.Evaluated) window.Scale { return window.DailyScale(e.MinTime) }
	}
	if opts.Ticks == nil {
		opts.Ticks = DefaultTicks(time.Local)
	}
	if opts.Metrics == (layout.Metrics{}) {
		opts.Metrics = layout.DefaultMetrics()
	}
	if opts.Width <= 0 {
		opts.Width = 1000
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.ResizeDelay <= 0 {
		opts.ResizeDelay = DefaultResizeDelay
	}

	mgr := window.NewManager()
	t := &Timeline{
		bounds: opts.Bounds,
		opts:   opts,
		clk:    opts.Clock,
		r:      opts.Renderer,
		mgr:    mgr,
		store:  store.New(mgr, opts.Renderer, opts.Metrics),
		width:  opts.Width,
	}
	if b, ok := opts.Source.(Binder); ok {
		b.Bind(t)
	}
	t.run(func() {
		t.update(false, false)
		t.scheduleAuto()
	})
	return t
}

// run executes fn under the lock, then dispatches the source requests fn
// queued.
func (t *Timeline) run(fn func()) {
	t.mu.Lock()
	fn()
	reqs := t.requests
	t.requests = nil
	src := t.opts.Source
	t.mu.Unlock()

	if src == nil {
		return
	}
	for _, rq := range reqs {
		src.GetEvents(rq.from, rq.to)
	}
}

func (t *Timeline) request(from, to int64) {
	if from >= to {
		return
	}
	appLog.Info("timeline: requesting events", "from", from, "to", to)
	t.requests = append(t.requests, request{from: from, to: to})
}

// resolve evaluates bounds for this cycle and installs them.
func (t *Timeline) resolve() bounds.Evaluated {
	e := t.bounds.Resolve()
	if t.zoom > 0 {
		e.CurViewport = e.ClampViewport(t.zoom)
	}
	t.mgr.Rebase(e, t.opts.Scale(e))
	if !t.hasPos {
		t.pos = e.MinTime
		if e.Position.Valid {
			t.pos = e.Position.Ms
		}
		t.hasPos = true
	}
	t.pos = t.mgr.ClampPosition(t.pos)
	return e
}

func (t *Timeline) frameWidth() float64 {
	return math.Ceil(t.width / t.mgr.Bounds().CurViewport)
}

// update is one cycle. A window-changing update (updateCurrent false)
// shifts the active range, re-adopts orphans and requests only the missing
// range. A current-window update repositions and requests the whole window;
// forceStatus additionally marks it loading.
func (t *Timeline) update(updateCurrent, forceStatus bool) {
	if t.closed {
		return
	}
	t.resolve()
	w := t.mgr.ComputeWindow(t.pos)
	t.cancelAuto()

	from, to := w.TimeFrom, w.TimeTo
	if !updateCurrent {
		t.shift(w.Frames)
		t.positionTimeframes()
		t.store.Readopt()
		t.layout(false)

		missing, ok := t.mgr.MissingRange(false)
		if !ok {
			return
		}
		from, to = t.mgr.TimeRange(missing)
		forceStatus = true
	} else {
		t.positionTimeframes()
	}

	if forceStatus {
		t.setStatus(from, to, true, false)
	}
	t.request(from, to)
}

func (t *Timeline) shift(r window.Range) {
	sh := t.mgr.SetActive(r)
	for _, i := range sh.Added {
		from, to := t.mgr.FrameTimes(i)
		t.r.AddTimeframe(render.Frame{Index: i, From: from, To: to, Ticks: t.opts.Ticks(from, to)})
	}
	for _, i := range sh.Removed {
		t.r.RemoveTimeframe(i)
	}
	t.store.Orphan(sh.Orphans)
}

// positionTimeframes lays the active timeframes side by side, scrolled so
// that position is the left edge, and places each frame's future overlay.
func (t *Timeline) positionTimeframes() {
	fw := t.frameWidth()
	active := t.mgr.Active()
	sc := t.mgr.Scale()
	now := t.mgr.Bounds().Now

	left := -math.Round((sc.Timeframe(t.pos) - float64(active.From)) * fw)
	for i := active.From; i < active.To; i++ {
		from, to := t.mgr.FrameTimes(i)
		future := -1.0
		if now.Valid && now.Ms < to {
			future = 0
			if from < now.Ms {
				future = math.Round(fw * float64(now.Ms-from) / float64(to-from))
			}
		}
		t.r.PlaceTimeframe(i, left, fw, future)
		left += fw
	}
	t.refreshOpen()
}

func (t *Timeline) layout(force bool) {
	t.store.Layout(force, t.frameWidth())
	t.refreshOpen()
}

func (t *Timeline) refreshOpen() {
	now := t.mgr.Bounds().Now
	var nowTf float64
	if now.Valid {
		nowTf = t.mgr.Scale().Timeframe(now.Ms)
	}
	t.store.RefreshOpen(nowTf, now.Valid, t.frameWidth())
}

func (t *Timeline) setStatus(from, to int64, loading, failed bool) {
	ch := t.mgr.SetStatus(from, to, loading, failed)
	for _, i := range ch.LoadingOn {
		t.r.SetLoading(i, true)
	}
	for _, i := range ch.LoadingOff {
		t.r.SetLoading(i, false)
	}
	if ch.ErrorCleared {
		t.r.HideError()
	}
}

func (t *Timeline) cancelAuto() {
	t.autoGen++
	t.autoTimer.Stop()
	t.autoTimer = nil
}

// scheduleAuto replaces any pending auto-refresh with a fresh one, so at
// most one is ever pending.
func (t *Timeline) scheduleAuto() {
	t.cancelAuto()
	if t.closed {
		return
	}
	d := t.mgr.Bounds().AutoUpdate
	if d <= 0 {
		return
	}
	gen := t.autoGen
	t.autoTimer = t.clk.AfterFunc(d, func() {
		t.run(func() {
			if gen != t.autoGen {
				return
			}
			t.autoTimer = nil
			t.update(true, false)
		})
	})
}

// Push merges events and marks [from, to) resolved. Stale, duplicate and
// out-of-window results are absorbed.
func (t *Timeline) Push(from, to int64, events []model.Event) {
	t.run(func() {
		if t.closed {
			return
		}
		if pending := t.store.Push(events); len(pending) > 0 {
			t.store.Adopt(pending)
			t.layout(false)
		}
		t.setStatus(from, to, false, false)
		t.lastPush = t.clk.Now()
		t.scheduleAuto()
	})
}

// Remove evicts events by id.
func (t *Timeline) Remove(ids []string) {
	t.run(func() {
		if t.closed {
			return
		}
		t.store.Remove(ids)
		t.scheduleAuto()
	})
}

// Error marks [from, to) failed and shows msg unless an error is already
// shown.
func (t *Timeline) Error(from, to int64, msg string) {
	t.run(func() {
		if t.closed {
			return
		}
		appLog.Warn("timeline: load failed", "from", from, "to", to, "msg", msg)
		if t.mgr.ShowError(msg) {
			t.r.ShowError(msg)
		}
		t.setStatus(from, to, false, true)
		t.scheduleAuto()
	})
}

// Position returns the current left edge.
func (t *Timeline) Position() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos
}

// SetPosition moves the left edge to p, clamped, and runs an update cycle.
func (t *Timeline) SetPosition(p int64) {
	t.run(func() {
		t.moveTo(p)
	})
}

func (t *Timeline) moveTo(p int64) {
	if t.closed {
		return
	}
	t.pos, t.hasPos = p, true
	t.update(false, false)
	t.scheduleAuto()
}

// Pan moves the position by dx pixels; positive dx moves forward in time.
func (t *Timeline) Pan(dx float64) {
	t.run(func() {
		e := t.mgr.Bounds()
		sc := t.mgr.Scale()
		t.moveTo(sc.Time(sc.Timeframe(t.pos) + dx*e.CurViewport/t.frameWidth()))
	})
}

// Step moves the position by fraction of the viewport.
func (t *Timeline) Step(fraction float64) {
	t.run(func() {
		e := t.mgr.Bounds()
		sc := t.mgr.Scale()
		t.moveTo(sc.Time(sc.Timeframe(t.pos) + fraction*e.CurViewport))
	})
}

// SetViewport zooms to v timeframes, clamped to the viewport bounds, and
// lays every event out again.
func (t *Timeline) SetViewport(v float64) {
	t.run(func() {
		if t.closed || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		t.zoom = v
		t.update(false, false)
		t.layout(true)
		t.scheduleAuto()
	})
}

// SetBounds replaces the bounds configuration and runs an update cycle.
func (t *Timeline) SetBounds(b bounds.Bounds) {
	t.run(func() {
		if t.closed {
			return
		}
		t.bounds = b
		t.update(false, false)
		t.layout(true)
		t.scheduleAuto()
	})
}

// Resize records a new container width. Only the last call within the
// resize delay takes effect, with a forced re-layout.
func (t *Timeline) Resize(width float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || width <= 0 {
		return
	}
	t.resizeGen++
	gen := t.resizeGen
	t.resizeTimer.Stop()
	t.resizeTimer = t.clk.AfterFunc(t.opts.ResizeDelay, func() {
		t.run(func() {
			if gen != t.resizeGen || t.closed {
				return
			}
			t.resizeTimer = nil
			t.width = width
			t.positionTimeframes()
			t.layout(true)
		})
	})
}

// Retry re-requests failed and missing timeframes, or the whole window when
// nothing is missing, marking the range loading.
func (t *Timeline) Retry() {
	t.run(func() {
		if t.closed {
			return
		}
		t.resolve()
		t.positionTimeframes()
		from, to := t.mgr.TimeRange(t.mgr.Active())
		if r, ok := t.mgr.MissingRange(true); ok {
			from, to = t.mgr.TimeRange(r)
		}
		t.setStatus(from, to, true, false)
		t.request(from, to)
	})
}

// Refresh forgets the load status of the active window and requests all
// of it again.
func (t *Timeline) Refresh() {
	t.run(func() {
		if t.closed {
			return
		}
		t.mgr.Reset()
		t.update(false, false)
	})
}

// Update runs a current-window update: reposition and re-request.
func (t *Timeline) Update() {
	t.run(func() {
		t.update(true, false)
	})
}

// Click reports an activated event to the click callback.
func (t *Timeline) Click(id string) {
	t.mu.Lock()
	var ev *model.Event
	if rec, ok := t.store.Get(id); ok {
		c := rec.Clone()
		ev = &c
	}
	cb := t.opts.Click
	t.mu.Unlock()

	if cb != nil {
		cb(ev, id)
	}
}

// Lookup returns a copy of the loaded event id.
func (t *Timeline) Lookup(id string) (model.Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.store.Get(id)
	if !ok {
		return model.Event{}, false
	}
	return rec.Clone(), true
}

// Bounds returns the last resolved snapshot.
func (t *Timeline) Bounds() bounds.Evaluated {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mgr.Bounds()
}

func (t *Timeline) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		Position:   t.pos,
		Bounds:     t.mgr.Bounds(),
		Active:     t.mgr.Active(),
		FrameWidth: t.frameWidth(),
		Events:     t.store.Len(),
		LastPush:   t.lastPush,
	}
}

// Check verifies the store's membership invariant.
func (t *Timeline) Check() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Check()
}

// Close stops both timers. Later calls are ignored.
func (t *Timeline) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.cancelAuto()
	t.resizeGen++
	t.resizeTimer.Stop()
	t.resizeTimer = nil
}
