package tui

import (
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tlview/internal/bounds"
	"tlview/internal/layout"
	"tlview/internal/model"
	"tlview/internal/render"
	"tlview/internal/timeline"
)

type fakeTimeline struct {
	state  timeline.State
	events map[string]model.Event
	calls  []string
	steps  []float64
	zooms  []float64
	widths []float64
}

func (f *fakeTimeline) State() timeline.State  { return f.state }
func (f *fakeTimeline) Step(v float64)         { f.steps = append(f.steps, v) }
func (f *fakeTimeline) SetViewport(v float64)  { f.zooms = append(f.zooms, v) }
func (f *fakeTimeline) Resize(w float64)       { f.widths = append(f.widths, w) }
func (f *fakeTimeline) Retry()                 { f.calls = append(f.calls, "retry") }
func (f *fakeTimeline) Refresh()               { f.calls = append(f.calls, "refresh") }
func (f *fakeTimeline) Click(id string)        { f.calls = append(f.calls, "click "+id) }
func (f *fakeTimeline) Lookup(id string) (model.Event, bool) {
	ev, ok := f.events[id]
	return ev, ok
}

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Model, *fakeTimeline, *render.Scene) {
	t.Helper()
	sc := render.NewScene()
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).UnixMilli()
	sc.AddTimeframe(render.Frame{Index: 0, From: from, To: from + 86400000, Ticks: []render.Tick{{Position: 0, Label: "Mar 2 2026"}}})
	sc.PlaceTimeframe(0, 0, 600, 300)

	kick := model.Event{ID: "kick", Title: "Kickoff", Begin: model.At(from + 3600000), End: model.At(from + 7200000)}
	s := sc.NewEvent("kick")
	s.Update(render.ViewOf(kick))
	s.Move(0, layout.Box{Left: 15, Top: 0, Width: 150, LabelWidth: 150})

	launch := model.Event{ID: "launch", Title: "Launch", Begin: model.At(from + 36000000), End: model.At(from + 36000000), Marks: []string{"@pad"}}
	s = sc.NewEvent("launch")
	s.Update(render.ViewOf(launch))
	s.Move(0, layout.Box{Left: 300, Top: -35, LabelWidth: 120})

	b := bounds.Default()
	b.CurViewport = bounds.Literal(2.0)
	b.MaxViewport = bounds.Literal(10.0)
	tl := &fakeTimeline{
		state: timeline.State{
			Position: from,
			Bounds:   b.Resolve(),
			Events:   2,
			LastPush: now.Add(-3 * time.Minute),
		},
		events: map[string]model.Event{"kick": kick, "launch": launch},
	}
	m := New(tl, sc, Options{Location: time.UTC, Now: func() time.Time { return now }})
	m.Init()
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	return m, tl, sc
}

func press(m *Model, keys ...tea.KeyMsg) {
	for _, k := range keys {
		m.Update(k)
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestResizeOnWindowSize(t *testing.T) {
	_, tl, _ := setup(t)
	if !slices.Equal(tl.widths, []float64{80 * 7.5}) {
		t.Errorf("widths = %v, want [600]", tl.widths)
	}
}

func TestView(t *testing.T) {
	m, _, _ := setup(t)
	out := m.View()
	for _, want := range []string{"Mar 2 2026", "Kickoff", "◆Launch @pad", "▼", "2 events", "loaded 3 minutes ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "\n") + 1; got != 10 {
		t.Errorf("view has %d lines, want 10", got)
	}
}

func TestViewError(t *testing.T) {
	m, _, sc := setup(t)
	sc.ShowError("fetch failed")
	m.Update(sceneMsg{})
	if out := m.View(); !strings.Contains(out, "fetch failed") {
		t.Errorf("error not shown:\n%s", out)
	}
}

func TestKeys(t *testing.T) {
	m, tl, _ := setup(t)

	press(m,
		tea.KeyMsg{Type: tea.KeyRight},
		runes("h"),
		tea.KeyMsg{Type: tea.KeyPgDown},
		runes("+"),
		runes("-"),
		runes("r"),
		runes("R"),
	)
	if want := []float64{keyStep, -keyStep, 1}; !slices.Equal(tl.steps, want) {
		t.Errorf("steps = %v, want %v", tl.steps, want)
	}
	if want := []float64{2 * (1 / zoomRatio), 2 * zoomRatio}; !slices.Equal(tl.zooms, want) {
		t.Errorf("zooms = %v, want %v", tl.zooms, want)
	}
	if want := []string{"retry", "refresh"}; !slices.Equal(tl.calls, want) {
		t.Errorf("calls = %v, want %v", tl.calls, want)
	}

	m.Update(tea.MouseMsg{Button: tea.MouseButtonWheelDown})
	if got := tl.steps[len(tl.steps)-1]; got != wheelStep {
		t.Errorf("wheel step = %v, want %v", got, wheelStep)
	}

	if _, cmd := m.Update(runes("q")); cmd == nil {
		t.Error("q should quit")
	}
}

func TestSelectAndClick(t *testing.T) {
	m, tl, _ := setup(t)

	press(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.Selected() != "kick" {
		t.Fatalf("selected = %q, want kick", m.Selected())
	}
	press(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.Selected() != "launch" {
		t.Fatalf("selected = %q, want launch", m.Selected())
	}
	press(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.Selected() != "kick" {
		t.Fatalf("selection should wrap, got %q", m.Selected())
	}
	press(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.Selected() != "launch" {
		t.Fatalf("shift+tab selected = %q", m.Selected())
	}

	press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if !slices.Contains(tl.calls, "click launch") {
		t.Errorf("calls = %v", tl.calls)
	}
	if out := m.View(); !strings.Contains(out, "Launch · Mon Mar 2 10:00 · @pad") {
		t.Errorf("detail missing:\n%s", out)
	}
}

func TestDescribe(t *testing.T) {
	ev := model.Event{Title: "Ongoing", Begin: model.AtTime(now)}
	if got := describe(ev, time.UTC); got != "Ongoing · Mon Mar 2 12:00 - ongoing" {
		t.Errorf("describe = %q", got)
	}
}
