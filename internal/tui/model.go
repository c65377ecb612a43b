// Package tui is a terminal viewer for a timeline. It renders the scene
// snapshot on a character grid, one column per letter width and one line
// per row, and drives the timeline from the keyboard and mouse wheel.
package tui

import (
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tlview/internal/layout"
	"tlview/internal/model"
	"tlview/internal/render"
	"tlview/internal/timeline"
)

const (
	keyStep   = 0.05
	wheelStep = 0.002 * 120 // one wheel notch
	zoomRatio = 1.25
)

// Controller is the part of a timeline the viewer drives.
type Controller interface {
	State() timeline.State
	Step(fraction float64)
	SetViewport(v float64)
	Resize(width float64)
	Retry()
	Refresh()
	Click(id string)
	Lookup(id string) (model.Event, bool)
}

// Options configures the viewer.
type Options struct {
	Location *time.Location
	Metrics  layout.Metrics
	Now      func() time.Time
}

type sceneMsg struct{}

type tickMsg time.Time

// Model is the bubbletea model of the viewer.
type Model struct {
	tl    Controller
	scene *render.Scene
	opts  Options

	snap  render.Snapshot
	state timeline.State

	width, height int
	selected      string
	detail        string
}

func New(tl Controller, scene *render.Scene, opts Options) *Model {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Metrics == (layout.Metrics{}) {
		opts.Metrics = layout.DefaultMetrics()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Model{tl: tl, scene: scene, opts: opts}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.watch(), tick())
}

// watch takes a snapshot and returns a command that fires on the next
// scene change. The channel is taken first so no change is missed.
func (m *Model) watch() tea.Cmd {
	ch := m.scene.Changed()
	m.snap = m.scene.Snapshot()
	m.state = m.tl.State()
	return func() tea.Msg {
		<-ch
		return sceneMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sceneMsg:
		return m, m.watch()

	case tickMsg:
		m.state = m.tl.State()
		return m, tick()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.tl.Resize(float64(m.width) * m.opts.Metrics.LetterWidth)
		return m, nil

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.tl.Step(-wheelStep)
		case tea.MouseButtonWheelDown:
			m.tl.Step(wheelStep)
		}
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg.String())
	}
	return m, nil
}

func (m *Model) handleKey(key string) tea.Cmd {
	switch key {
	case "q", "ctrl+c", "esc":
		return tea.Quit
	case "left", "h":
		m.tl.Step(-keyStep)
	case "right", "l":
		m.tl.Step(keyStep)
	case "pgup":
		m.tl.Step(-1)
	case "pgdown":
		m.tl.Step(1)
	case "+", "=":
		m.zoom(1 / zoomRatio)
	case "-":
		m.zoom(zoomRatio)
	case "r":
		m.tl.Retry()
	case "R":
		m.tl.Refresh()
	case "tab":
		m.cycle(1)
	case "shift+tab":
		m.cycle(-1)
	case "enter":
		m.activate()
	}
	return nil
}

func (m *Model) zoom(ratio float64) {
	st := m.tl.State()
	m.tl.SetViewport(st.Bounds.CurViewport * ratio)
}

// cycle moves the selection through the drawn events in screen order.
func (m *Model) cycle(dir int) {
	ids := m.visibleIDs()
	if len(ids) == 0 {
		m.selected = ""
		return
	}
	i := slices.Index(ids, m.selected)
	switch {
	case i < 0 && dir > 0:
		i = 0
	case i < 0:
		i = len(ids) - 1
	default:
		i = (i + dir + len(ids)) % len(ids)
	}
	m.selected = ids[i]
	m.detail = ""
}

func (m *Model) activate() {
	if m.selected == "" {
		return
	}
	m.tl.Click(m.selected)
	ev, ok := m.tl.Lookup(m.selected)
	if !ok {
		m.detail = m.selected + " is no longer loaded"
		return
	}
	m.detail = describe(ev, m.opts.Location)
}

// Selected returns the id of the highlighted event.
func (m *Model) Selected() string { return m.selected }
