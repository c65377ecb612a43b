package tui

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"tlview/internal/model"
	"tlview/internal/render"
)

var (
	tickStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	nowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	labelStyle    = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
)

var namedColors = map[string]string{
	"black": "0", "red": "9", "green": "10", "yellow": "11",
	"blue": "12", "magenta": "13", "purple": "13", "cyan": "14",
	"teal": "14", "white": "15", "gray": "8", "grey": "8", "orange": "208",
}

func colorOf(name string) lipgloss.Color {
	if name == "" {
		return lipgloss.Color("12")
	}
	if c, ok := namedColors[strings.ToLower(name)]; ok {
		return lipgloss.Color(c)
	}
	return lipgloss.Color(name)
}

type cell struct {
	r     rune
	style *lipgloss.Style
}

type grid struct {
	w, h  int
	cells [][]cell
}

func newGrid(w, h int) *grid {
	g := &grid{w: w, h: h, cells: make([][]cell, h)}
	for y := range g.cells {
		g.cells[y] = make([]cell, w)
		for x := range g.cells[y] {
			g.cells[y][x] = cell{r: ' '}
		}
	}
	return g
}

func (g *grid) set(x, y int, r rune, st *lipgloss.Style) {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return
	}
	g.cells[y][x] = cell{r: r, style: st}
}

func (g *grid) text(x, y int, s string, st *lipgloss.Style) {
	for _, r := range s {
		g.set(x, y, r, st)
		x++
	}
}

// line renders row y, grouping runs of cells that share a style.
func (g *grid) line(y int) string {
	var b strings.Builder
	row := g.cells[y]
	for i := 0; i < len(row); {
		j := i
		var run strings.Builder
		for j < len(row) && row[j].style == row[i].style {
			run.WriteRune(row[j].r)
			j++
		}
		if row[i].style != nil {
			b.WriteString(row[i].style.Render(run.String()))
		} else {
			b.WriteString(run.String())
		}
		i = j
	}
	return b.String()
}

func (m *Model) View() string {
	if m.width <= 0 || m.height < 4 {
		return "loading..."
	}
	g := newGrid(m.width, m.height-2)
	m.drawTicks(g)
	m.drawEvents(g)

	lines := make([]string, 0, m.height)
	for y := range g.h {
		lines = append(lines, g.line(y))
	}
	lines = append(lines, m.detailLine(), m.statusLine())
	return strings.Join(lines, "\n")
}

func (m *Model) col(px float64) int {
	return int(math.Round(px / m.opts.Metrics.LetterWidth))
}

func (m *Model) drawTicks(g *grid) {
	for _, f := range m.snap.Frames {
		for _, t := range f.Ticks {
			x := m.col(f.Left + t.Position*f.Width)
			g.set(x, 0, '│', &tickStyle)
			g.text(x+1, 0, t.Label, &tickStyle)
		}
		if f.Future > 0 && f.Future < f.Width {
			g.set(m.col(f.Left+f.Future), 0, '▼', &nowStyle)
		}
	}
}

// visible are the drawn events of placed frames, left to right.
func (m *Model) visible() []render.EventState {
	left := make(map[int]float64, len(m.snap.Frames))
	for _, f := range m.snap.Frames {
		left[f.Index] = f.Left
	}
	var out []render.EventState
	for _, ev := range m.snap.Events {
		if _, ok := left[ev.Frame]; ok && ev.Drawn {
			ev.Box.Left += left[ev.Frame]
			out = append(out, ev)
		}
	}
	slices.SortFunc(out, func(a, b render.EventState) int {
		return cmp.Or(cmp.Compare(a.Box.Left, b.Box.Left), cmp.Compare(a.Box.Top, b.Box.Top), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (m *Model) visibleIDs() []string {
	vis := m.visible()
	ids := make([]string, len(vis))
	for i, ev := range vis {
		ids[i] = ev.ID
	}
	return ids
}

func (m *Model) drawEvents(g *grid) {
	rowPx := m.opts.Metrics.EventHeight + m.opts.Metrics.VSpacing
	baseline := (g.h + 1) / 2

	for _, ev := range m.visible() {
		x := m.col(ev.Box.Left)
		y := baseline + int(math.Round(ev.Box.Top/rowPx))
		if y < 1 {
			continue
		}

		bar := lipgloss.NewStyle().Foreground(colorOf(ev.Color))
		label := labelStyle.Foreground(colorOf(ev.Color))
		if ev.ID == m.selected {
			bar = bar.Inherit(selectedStyle)
			label = label.Inherit(selectedStyle)
		}

		fill := '─'
		switch ev.Kind {
		case render.Point.String():
			g.set(x, y, '◆', &bar)
			x++
		case render.Unfinished.String():
			fill = '┄'
		}
		width := max(m.col(ev.Box.Width), 1)
		if ev.Kind == render.Point.String() {
			width = 0
		}
		for i := range width {
			g.set(x+i, y, fill, &bar)
		}

		text := ev.Title
		for _, mk := range ev.Marks {
			text += " " + mk
		}
		room := max(m.col(ev.Box.LabelWidth)-1, 1)
		if r := []rune(text); len(r) > room {
			text = string(r[:room])
		}
		g.text(x, y, text, &label)
	}
}

func (m *Model) detailLine() string {
	if msg, failed := m.snap.Error, m.snap.Failed; failed {
		return errorStyle.Render(" ! " + msg + " (r to retry) ")
	}
	return m.detail
}

func (m *Model) statusLine() string {
	st := m.state
	parts := []string{
		time.UnixMilli(st.Position).In(m.opts.Location).Format("Mon Jan 2 2006"),
		fmt.Sprintf("%s frames", humanize.FtoaWithDigits(st.Bounds.CurViewport, 2)),
		fmt.Sprintf("%d events", st.Events),
	}
	for _, f := range m.snap.Frames {
		if f.Loading {
			parts = append(parts, "loading")
			break
		}
	}
	if st.LastPush.IsZero() {
		parts = append(parts, "nothing loaded yet")
	} else {
		parts = append(parts, "loaded "+humanize.RelTime(st.LastPush, m.opts.Now(), "ago", "from now"))
	}
	return statusStyle.Render(strings.Join(parts, " · "))
}

// describe formats an activated event for the detail line.
func describe(ev model.Event, loc *time.Location) string {
	const layout = "Mon Jan 2 15:04"
	var when string
	switch {
	case ev.Unfinished():
		when = ev.Begin.Time(loc).Format(layout) + " - ongoing"
	case ev.Point():
		when = ev.Begin.Time(loc).Format(layout)
	default:
		when = ev.Begin.Time(loc).Format(layout) + " - " + ev.End.Time(loc).Format(layout)
	}
	out := ev.Title + " · " + when
	if len(ev.Marks) > 0 {
		out += " · " + strings.Join(ev.Marks, " ")
	}
	return out
}
