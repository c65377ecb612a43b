// Package render is the boundary between the timeline engine and whatever
// draws it. The engine only talks to a Renderer; visual nodes for events
// are reached through owned Handles that are released exactly once.
package render

import (
	"slices"

	"tlview/internal/layout"
	"tlview/internal/model"
)

// Tick is one axis label inside a timeframe. Position is the fraction of the
// timeframe width, in [0, 1).
type Tick struct {
	Position float64 `json:"position"`
	Label    string  `json:"label"`
}

// Kind selects the visual style of an event.
type Kind int

const (
	Interval Kind = iota
	Point
	Unfinished
)

func (k Kind) String() string {
	switch k {
	case Point:
		return "point"
	case Unfinished:
		return "unfinished"
	default:
		return "interval"
	}
}

// KindOf classifies ev.
func KindOf(ev model.Event) Kind {
	switch {
	case ev.Unfinished():
		return Unfinished
	case ev.Point():
		return Point
	default:
		return Interval
	}
}

// View is the drawable content of one event.
type View struct {
	Title string
	Color string
	Kind  Kind
	Marks []string
	Begin model.Stamp
	End   model.Stamp
}

// ViewOf builds the view for ev.
func ViewOf(ev model.Event) View {
	return View{
		Title: ev.Title,
		Color: ev.Color,
		Kind:  KindOf(ev),
		Marks: slices.Clone(ev.Marks),
		Begin: ev.Begin,
		End:   ev.End,
	}
}

func (v View) equal(o View) bool {
	return v.Title == o.Title && v.Color == o.Color && v.Kind == o.Kind &&
		v.Begin == o.Begin && v.End == o.End && slices.Equal(v.Marks, o.Marks)
}

// Frame describes a timeframe entering the active window.
type Frame struct {
	Index int
	From  int64
	To    int64
	Ticks []Tick
}

// Renderer receives every visual consequence of the engine. Calls are made
// with the timeline's lock held and must not call back into the timeline.
type Renderer interface {
	AddTimeframe(f Frame)
	RemoveTimeframe(index int)
	// PlaceTimeframe positions a timeframe. future is the pixel offset of
	// "now" inside it, or negative when the whole frame is in the past.
	PlaceTimeframe(index int, left, width, future float64)
	SetLoading(index int, on bool)
	ShowError(msg string)
	HideError()
	NewEvent(id string) Surface
}

// Surface is the renderer-side visual node of one event.
type Surface interface {
	Update(v View)
	Move(frame int, b layout.Box)
	Resize(width float64)
	Clear()
	Destroy()
}
