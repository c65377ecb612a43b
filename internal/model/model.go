package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Stamp is an optional absolute time in Unix milliseconds. The zero value
// means "absent" (an ongoing event's End, an unset position, ...).
type Stamp struct {
	Ms    int64
	Valid bool
}

// At returns a present Stamp for the given Unix millisecond value.
func At(ms int64) Stamp {
	return Stamp{Ms: ms, Valid: true}
}

// AtTime returns a present Stamp for t.
func AtTime(t time.Time) Stamp {
	return At(t.UnixMilli())
}

// Time converts the stamp back to a time.Time in loc. Absent stamps return
// the zero time.
func (s Stamp) Time(loc *time.Location) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(s.Ms).In(loc)
}

// MarshalJSON encodes absent stamps as null and present ones as Unix ms.
func (s Stamp) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, s.Ms, 10), nil
}

// UnmarshalJSON accepts null or an integer millisecond value.
func (s *Stamp) UnmarshalJSON(b []byte) error {
	str := strings.TrimSpace(string(b))
	if str == "null" {
		*s = Stamp{}
		return nil
	}
	ms, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return fmt.Errorf("model: stamp %q: %w", str, err)
	}
	*s = At(ms)
	return nil
}

// Event is a timeline event as delivered by a data source. Begin and End are
// both optional on input: a missing Begin defaults to End, a missing End
// marks the event as unfinished (still ongoing). Begin == End is a point
// event.
type Event struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Begin Stamp  `json:"begin"`
	End   Stamp  `json:"end"`
	Color string `json:"color,omitempty"`

	// Marks are opaque tokens rendered inside the event bar. They are compared
	// wholesale on merge, never element by element.
	Marks []string `json:"marks,omitempty"`
}

// Point reports whether the event has zero duration.
func (e Event) Point() bool {
	return e.End.Valid && e.Begin.Valid && e.Begin.Ms == e.End.Ms
}

// Unfinished reports whether the event has no end yet.
func (e Event) Unfinished() bool {
	return !e.End.Valid
}

// Occurrence represents a single concrete instance of a calendar event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, typically derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone. A zero End means
	// the VEVENT carried no DTEND/DURATION.
	Start time.Time
	End   time.Time
}

// Mark tokens attached by Occurrence.Event.
const (
	MarkAllDay = "all-day"
)

// Event converts the occurrence into a timeline event. The id is stable
// across refetches of the same feed so merges keep rows and handles.
func (o Occurrence) Event(color string) Event {
	ev := Event{
		ID:    strings.Join([]string{o.SourceID, o.UID, o.InstanceKey}, "/"),
		Title: o.Summary,
		Begin: AtTime(o.Start),
		Color: color,
	}
	if !o.End.IsZero() {
		ev.End = AtTime(o.End)
	} else {
		// No end given: treat as a point in time, not as ongoing.
		ev.End = ev.Begin
	}
	if o.AllDay {
		ev.Marks = append(ev.Marks, MarkAllDay)
	}
	if o.Location != "" {
		ev.Marks = append(ev.Marks, "@"+o.Location)
	}
	return ev
}
