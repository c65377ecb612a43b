package ics

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "tlview/internal/log"
)

// Entry is one VEVENT as it appears in a feed, before recurrence
// expansion. A zero End means the VEVENT had neither DTEND nor DURATION.
type Entry struct {
	Feed Feed

	UID      string
	Summary  string
	Location string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time

	// RecurrenceID is set on VEVENTs that override one instance of a
	// recurring event.
	RecurrenceID *time.Time
}

// ParseICS parses one feed body. VEVENTs that cannot be read are logged
// and skipped.
func ParseICS(feed Feed, body []byte) ([]Entry, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("ics: feed %q: empty body", feed.ID)
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: feed %q: parse: %w", feed.ID, err)
	}

	var entries []Entry
	for _, ve := range cal.Events() {
		e, err := parseVEvent(feed, ve)
		if err != nil {
			appLog.Debug("ics: skipping vevent", "id", feed.ID, "err", err)
			continue
		}
		entries = append(entries, e)
	}
	appLog.Debug("ics parse completed", "id", feed.ID, "entries", len(entries))
	return entries, nil
}

func parseVEvent(feed Feed, ve *ical.VEvent) (Entry, error) {
	e := Entry{Feed: feed}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return e, errors.New("missing UID")
	}
	e.UID = uid.Value
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		e.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		e.Location = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return e, fmt.Errorf("DTSTART: %w", err)
	}
	e.Start = start

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if v := param(p, "VALUE"); strings.EqualFold(v, "DATE") || !strings.Contains(p.Value, "T") {
			e.AllDay = true
		}
	}

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		if end, err := ve.GetEndAt(); err == nil {
			e.End = end
		}
	case ve.GetProperty(ical.ComponentPropertyDuration) != nil:
		d, err := parseDuration(ve.GetProperty(ical.ComponentPropertyDuration).Value)
		if err != nil {
			return e, fmt.Errorf("DURATION: %w", err)
		}
		e.End = start.Add(d)
	case e.AllDay:
		e.End = start.AddDate(0, 0, 1)
	}
	if !e.End.IsZero() && e.End.Before(e.Start) {
		e.End = e.Start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		e.RRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := locationOf(p, start.Location())
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				e.ExDates = append(e.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		if t, err := parseICSTime(p.Value, locationOf(p, start.Location())); err == nil {
			e.RecurrenceID = &t
		}
	}
	return e, nil
}

func param(p *ical.IANAProperty, name string) string {
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// locationOf returns the TZID location of p, or def.
func locationOf(p *ical.IANAProperty, def *time.Location) *time.Location {
	if tz := param(p, "TZID"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return def
}

// parseICSTime reads the DATE / DATE-TIME forms used by EXDATE and
// RECURRENCE-ID. Floating values are interpreted in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

var durationRe = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseDuration reads an RFC 5545 DURATION value such as P1DT2H or PT15M.
func parseDuration(v string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil || v == "P" || v == "PT" {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, err
		}
		d += time.Duration(n) * unit
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}
