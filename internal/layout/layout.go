// Package layout assigns every event a horizontal span and a row.
//
// Coordinates are continuous timeframe units: timeframe i covers [i, i+1).
// Pixel metrics are converted to timeframe units with the current
// timeframe width, so a span's label footprint shrinks as the user zooms out.
//
// Rows are packed with a sweep line over [Begin, Reach) intervals, where
// Reach extends past End far enough to fit the label. An incremental pack
// keeps each event's previous row whenever that row is still free at the
// event's start; a forced pack reassigns everything first-fit.
package layout

import (
	"cmp"
	"math"
	"slices"
	"unicode/utf8"
)

// Metrics are the pixel constants of the event visuals.
type Metrics struct {
	LetterWidth float64 `json:"letter_width"`
	HSpacing    float64 `json:"hspacing"`
	EventHeight float64 `json:"event_height"`
	VSpacing    float64 `json:"vspacing"`
}

// DefaultMetrics matches the stock stylesheet.
func DefaultMetrics() Metrics {
	return Metrics{
		LetterWidth: 7.5,
		HSpacing:    30,
		EventHeight: 30,
		VSpacing:    5,
	}
}

// Span is the layout state of one event.
type Span struct {
	ID string

	Begin float64 // tbegin
	End   float64 // tend; equals Begin for point events
	Reach float64 // tend2; Begin + label footprint, at least End + spacing

	Row        int
	HasRow     bool
	Positioned bool
}

// Shape describes an event's extent for ComputeSpan.
type Shape struct {
	From  float64 // begin, continuous timeframe
	To    float64 // end, continuous timeframe; ignored for point and open events
	Point bool
	Open  bool
	Title string
}

// ComputeSpan fills Begin, End and Reach. windowEnd is the end of the
// active window, which open (unfinished) events extend to.
func ComputeSpan(s *Span, sh Shape, frameWidth, windowEnd float64, m Metrics) {
	if frameWidth <= 0 {
		frameWidth = 1
	}
	letter := m.LetterWidth / frameWidth
	spacing := m.HSpacing / frameWidth
	label := float64(utf8.RuneCountInString(sh.Title))*letter + spacing

	s.Begin = sh.From
	s.Reach = s.Begin + label

	switch {
	case sh.Point:
		s.End = s.Begin
	case sh.Open:
		s.End = math.Max(windowEnd, s.Begin)
	default:
		s.End = math.Max(sh.To, s.Begin)
	}
	if !sh.Point && s.Reach-s.End < spacing {
		s.Reach = s.End + spacing
	}
}

type marker struct {
	at    float64
	start bool
	span  *Span
}

// Pack assigns rows with a left-to-right sweep. It returns the spans whose
// row or geometry must be (re)applied by the caller: every span when force
// is set, otherwise only spans that were not yet positioned or had to move.
//
// A span with an empty footprint (Reach <= Begin) still gets a row but
// never holds it.
func Pack(spans []*Span, force bool) []*Span {
	markers := make([]marker, 0, 2*len(spans))
	for _, s := range spans {
		markers = append(markers, marker{at: s.Begin, start: true, span: s})
		if s.Reach > s.Begin {
			markers = append(markers, marker{at: s.Reach, start: false, span: s})
		}
	}
	slices.SortFunc(markers, compareMarkers)

	holder := make(map[int]*Span)
	var placed []*Span

	for _, mk := range markers {
		s := mk.span
		if !mk.start {
			if holder[s.Row] == s {
				delete(holder, s.Row)
			}
			continue
		}
		hold := s.Reach > s.Begin

		if !force && s.HasRow && holder[s.Row] == nil {
			if hold {
				holder[s.Row] = s
			}
			if !s.Positioned {
				s.Positioned = true
				placed = append(placed, s)
			}
			continue
		}

		row := 0
		for holder[row] != nil {
			row++
		}
		moved := !s.HasRow || s.Row != row || !s.Positioned || force
		s.Row, s.HasRow, s.Positioned = row, true, true
		if hold {
			holder[row] = s
		}
		if moved {
			placed = append(placed, s)
		}
	}
	return placed
}

// compareMarkers orders by coordinate. At equal coordinates an end precedes
// a start so half-open intervals that merely touch can share a row.
// Remaining ties are broken by id for determinism. Only spans with a
// non-empty footprint carry an end marker, so a span's own markers never
// share a coordinate.
func compareMarkers(a, b marker) int {
	if c := cmp.Compare(a.at, b.at); c != 0 {
		return c
	}
	if a.start != b.start {
		return boolOrder(a.start, b.start)
	}
	return cmp.Compare(a.span.ID, b.span.ID)
}

// RowOffset maps a row to a vertical pixel offset from the baseline. Rows
// alternate below and above: 0 → 0, 1 → -(h+v), 2 → +(h+v), 3 → -2(h+v), ...
func RowOffset(row int, m Metrics) float64 {
	if row <= 0 {
		return 0
	}
	off := math.Ceil(float64(row)/2) * (m.EventHeight + m.VSpacing)
	if row%2 == 1 {
		return -off
	}
	return off
}

// Box is the pixel placement of an event inside its owning timeframe.
type Box struct {
	Left       float64 `json:"left"`
	Top        float64 `json:"top"`
	Width      float64 `json:"width"`       // bar width; 0 for point events
	LabelWidth float64 `json:"label_width"` // footprint reserved for the label
}

// Place converts a packed span into a pixel box relative to the owning
// timeframe's left edge.
func Place(s *Span, owner int, frameWidth float64, point bool, m Metrics) Box {
	b := Box{
		Left:       math.Round((s.Begin - float64(owner)) * frameWidth),
		Top:        RowOffset(s.Row, m),
		LabelWidth: math.Round((s.Reach - s.Begin) * frameWidth),
	}
	if !point {
		b.Width = math.Max(math.Round((s.End-s.Begin)*frameWidth), 1)
	}
	return b
}

// OpenWidth is the pixel width of an unfinished event whose box starts at
// left within timeframe owner: it runs up to now, or to the end of the
// active window when now is later or unknown.
func OpenWidth(left float64, owner int, now float64, nowValid bool, windowTo int, frameWidth float64) float64 {
	edge := float64(windowTo)
	if nowValid && now < edge {
		edge = now
	}
	w := math.Round((edge-float64(owner))*frameWidth) - left
	return math.Max(w, 1)
}
