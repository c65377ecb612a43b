// Package source implements the data sources a timeline asks for events.
// Each answers a request by eventually calling Push or Error on its Sink.
package source

import (
	"slices"
	"strings"
	"sync"

	"tlview/internal/model"
	"tlview/internal/timeline"
)

// Sink receives the answers to requests.
type Sink = timeline.Sink

// binding holds the sink a source answers to. timeline.New sets it before
// the first request.
type binding struct {
	mu   sync.Mutex
	sink Sink
}

func (b *binding) Bind(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = s
}

func (b *binding) get() Sink {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sink
}

// Overlaps reports whether ev intersects [from, to). Unfinished events
// extend forever; point events are included when from <= begin < to.
func Overlaps(ev model.Event, from, to int64) bool {
	begin := ev.Begin
	if !begin.Valid {
		begin = ev.End
	}
	if !begin.Valid || begin.Ms >= to {
		return false
	}
	if !ev.End.Valid {
		return true
	}
	if ev.End.Ms == begin.Ms {
		return begin.Ms >= from
	}
	return ev.End.Ms > from
}

// Memory serves a fixed list of events. Requests are answered
// synchronously.
type Memory struct {
	binding

	mu     sync.Mutex
	events []model.Event
}

func NewMemory(events []model.Event) *Memory {
	return &Memory{events: slices.Clone(events)}
}

// Set replaces the served events; the next request sees them.
func (m *Memory) Set(events []model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = slices.Clone(events)
}

func (m *Memory) GetEvents(from, to int64) {
	sink := m.get()
	if sink == nil {
		return
	}
	m.mu.Lock()
	var out []model.Event
	for _, ev := range m.events {
		if Overlaps(ev, from, to) {
			out = append(out, ev)
		}
	}
	m.mu.Unlock()
	sink.Push(from, to, out)
}

// Highlighter colors events whose title contains any keyword.
type Highlighter struct {
	Keywords []string
	Color    string
}

// Apply returns ev, recolored when its title matches.
func (h Highlighter) Apply(ev model.Event) model.Event {
	title := strings.ToLower(ev.Title)
	for _, k := range h.Keywords {
		if k != "" && strings.Contains(title, strings.ToLower(k)) {
			ev.Color = h.Color
			return ev
		}
	}
	return ev
}
