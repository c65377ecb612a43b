package render

import (
	"cmp"
	"slices"
	"sync"

	"tlview/internal/layout"
)

// FrameState is a timeframe as last placed. Future is negative when hidden.
type FrameState struct {
	Index   int     `json:"index"`
	From    int64   `json:"from"`
	To      int64   `json:"to"`
	Ticks   []Tick  `json:"ticks"`
	Left    float64 `json:"left"`
	Width   float64 `json:"width"`
	Future  float64 `json:"future"`
	Loading bool    `json:"loading,omitempty"`
}

// EventState is an event surface as last drawn and placed. End is nil for
// unfinished events.
type EventState struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Color string     `json:"color,omitempty"`
	Kind  string     `json:"kind"`
	Marks []string   `json:"marks,omitempty"`
	Begin int64      `json:"begin"`
	End   *int64     `json:"end"`
	Frame int        `json:"frame"`
	Box   layout.Box `json:"box"`
	Drawn bool       `json:"drawn"`
}

// Snapshot is a consistent copy of a Scene.
type Snapshot struct {
	Version uint64       `json:"version"`
	Frames  []FrameState `json:"frames"`
	Events  []EventState `json:"events"`
	Error   string       `json:"error,omitempty"`
	Failed  bool         `json:"failed"`
}

// Stats counts renderer calls. Tests use it to assert that an operation
// caused no visual churn.
type Stats struct {
	FrameAdds    int
	FrameRemoves int
	Creates      int
	Updates      int
	Clears       int
	Moves        int
	Resizes      int
	Destroys     int
}

// Scene is an in-memory Renderer. It is safe for concurrent use: the
// timeline writes while HTTP handlers and the terminal viewer read.
type Scene struct {
	mu      sync.Mutex
	frames  map[int]*FrameState
	events  map[string]*EventState
	errMsg  string
	failed  bool
	version uint64
	changed chan struct{}
	stats   Stats
}

func NewScene() *Scene {
	return &Scene{
		frames:  make(map[int]*FrameState),
		events:  make(map[string]*EventState),
		changed: make(chan struct{}),
	}
}

// bump records a mutation and wakes everyone waiting on Changed. Caller
// holds mu.
func (s *Scene) bump() {
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
}

// Changed returns a channel that is closed on the next mutation.
func (s *Scene) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

func (s *Scene) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scene) AddTimeframe(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[f.Index] = &FrameState{
		Index:  f.Index,
		From:   f.From,
		To:     f.To,
		Ticks:  slices.Clone(f.Ticks),
		Future: -1,
	}
	s.stats.FrameAdds++
	s.bump()
}

func (s *Scene) RemoveTimeframe(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.frames[index]; !ok {
		return
	}
	delete(s.frames, index)
	s.stats.FrameRemoves++
	s.bump()
}

func (s *Scene) PlaceTimeframe(index int, left, width, future float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.frames[index]
	if !ok {
		return
	}
	if f.Left == left && f.Width == width && f.Future == future {
		return
	}
	f.Left, f.Width, f.Future = left, width, future
	s.bump()
}

func (s *Scene) SetLoading(index int, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.frames[index]; ok && f.Loading != on {
		f.Loading = on
		s.bump()
	}
}

func (s *Scene) ShowError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg, s.failed = msg, true
	s.bump()
}

func (s *Scene) HideError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg, s.failed = "", false
	s.bump()
}

// Failed returns the error indicator state.
func (s *Scene) Failed() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg, s.failed
}

func (s *Scene) NewEvent(id string) Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[id] = &EventState{ID: id, Frame: -1}
	s.stats.Creates++
	s.bump()
	return &sceneSurface{scene: s, id: id}
}

// Snapshot copies the scene, frames ordered by index and events by id.
func (s *Scene) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Version: s.version,
		Frames:  make([]FrameState, 0, len(s.frames)),
		Events:  make([]EventState, 0, len(s.events)),
		Error:   s.errMsg,
		Failed:  s.failed,
	}
	for _, f := range s.frames {
		c := *f
		c.Ticks = slices.Clone(f.Ticks)
		snap.Frames = append(snap.Frames, c)
	}
	for _, e := range s.events {
		c := *e
		c.Marks = slices.Clone(e.Marks)
		if e.End != nil {
			end := *e.End
			c.End = &end
		}
		snap.Events = append(snap.Events, c)
	}
	slices.SortFunc(snap.Frames, func(a, b FrameState) int { return cmp.Compare(a.Index, b.Index) })
	slices.SortFunc(snap.Events, func(a, b EventState) int { return cmp.Compare(a.ID, b.ID) })
	return snap
}

type sceneSurface struct {
	scene *Scene
	id    string
}

// with runs fn on the surface's state under the scene lock. Destroyed
// surfaces are skipped.
func (ss *sceneSurface) with(fn func(e *EventState, st *Stats)) {
	s := ss.scene
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[ss.id]
	if !ok {
		return
	}
	fn(e, &s.stats)
	s.bump()
}

func (ss *sceneSurface) Update(v View) {
	ss.with(func(e *EventState, st *Stats) {
		e.Title, e.Color, e.Kind = v.Title, v.Color, v.Kind.String()
		e.Marks = slices.Clone(v.Marks)
		e.Begin = v.Begin.Ms
		e.End = nil
		if v.End.Valid {
			end := v.End.Ms
			e.End = &end
		}
		e.Drawn = true
		st.Updates++
	})
}

func (ss *sceneSurface) Move(frame int, b layout.Box) {
	ss.with(func(e *EventState, st *Stats) {
		e.Frame, e.Box = frame, b
		st.Moves++
	})
}

func (ss *sceneSurface) Resize(width float64) {
	ss.with(func(e *EventState, st *Stats) {
		e.Box.Width = width
		st.Resizes++
	})
}

func (ss *sceneSurface) Clear() {
	ss.with(func(e *EventState, st *Stats) {
		e.Marks = nil
		e.Drawn = false
		st.Clears++
	})
}

func (ss *sceneSurface) Destroy() {
	s := ss.scene
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ss.id]; !ok {
		return
	}
	delete(s.events, ss.id)
	s.stats.Destroys++
	s.bump()
}
