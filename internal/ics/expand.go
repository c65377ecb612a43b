package ics

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	appLog "tlview/internal/log"
	"tlview/internal/model"
)

const defaultMaxPerEntry = 5000

// Window selects the occurrences to produce: those overlapping [From, To).
// Occurrence times are converted to Location (time.Local when nil).
type Window struct {
	From     time.Time
	To       time.Time
	Location *time.Location

	// MaxPerEntry caps the instances of one recurring entry.
	MaxPerEntry int
}

// Expand turns parsed entries into concrete occurrences inside w, applying
// RRULE, EXDATE and RECURRENCE-ID overrides. The result is ordered by start
// time, then id.
func Expand(entries []Entry, w Window) ([]model.Occurrence, error) {
	if w.To.Before(w.From) {
		return nil, errors.New("ics: expand window ends before it starts")
	}
	if w.Location == nil {
		w.Location = time.Local
	}
	if w.MaxPerEntry <= 0 {
		w.MaxPerEntry = defaultMaxPerEntry
	}

	type key struct{ feed, uid string }
	overrides := make(map[key][]Entry)
	var bases []Entry
	for _, e := range entries {
		if e.RecurrenceID != nil {
			k := key{e.Feed.ID, e.UID}
			overrides[k] = append(overrides[k], e)
			continue
		}
		bases = append(bases, e)
	}

	var out []model.Occurrence
	for _, e := range bases {
		ov := overrides[key{e.Feed.ID, e.UID}]
		if e.RRule == "" {
			if o := resolve(e, e.Start, ov); overlaps(o, w) {
				out = append(out, occurrence(o, w.Location))
			}
			continue
		}
		out = append(out, expandRecurring(e, ov, w)...)
	}

	slices.SortFunc(out, func(a, b model.Occurrence) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Or(cmp.Compare(a.SourceID, b.SourceID), cmp.Compare(a.UID, b.UID))
	})
	return out, nil
}

func expandRecurring(e Entry, ov []Entry, w Window) []model.Occurrence {
	r, err := rrule.StrToRRule(e.RRule)
	if err != nil {
		appLog.Error("ics: bad RRULE", err, "uid", e.UID, "rrule", e.RRule)
		return nil
	}
	r.DTStart(e.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range e.ExDates {
		set.ExDate(ex.In(e.Start.Location()))
	}

	// Instances that start before From can still overlap it.
	span := e.End.Sub(e.Start)
	loc := e.Start.Location()
	starts := set.Between(w.From.Add(-max(span, 0)).In(loc), w.To.In(loc), true)
	if len(starts) > w.MaxPerEntry {
		appLog.Warn("ics: recurrence truncated", "uid", e.UID, "cap", w.MaxPerEntry)
		starts = starts[:w.MaxPerEntry]
	}

	var out []model.Occurrence
	for _, s := range starts {
		if inst := resolve(e, s, ov); overlaps(inst, w) {
			out = append(out, occurrence(inst, w.Location))
		}
	}
	return out
}

// resolve returns the instance of e starting at start, replaced by its
// override when one matches.
func resolve(e Entry, start time.Time, ov []Entry) Entry {
	for _, o := range ov {
		if o.RecurrenceID.Equal(start) {
			return o
		}
	}
	inst := e
	if !e.End.IsZero() {
		inst.End = start.Add(e.End.Sub(e.Start))
	}
	inst.Start = start
	return inst
}

// overlaps reports whether e intersects [w.From, w.To). Instances without
// an end are points.
func overlaps(e Entry, w Window) bool {
	if e.End.IsZero() || !e.End.After(e.Start) {
		return !e.Start.Before(w.From) && e.Start.Before(w.To)
	}
	return e.Start.Before(w.To) && e.End.After(w.From)
}

func occurrence(e Entry, loc *time.Location) model.Occurrence {
	o := model.Occurrence{
		SourceID: e.Feed.ID,
		UID:      e.UID,
		Summary:  e.Summary,
		Location: e.Location,
		AllDay:   e.AllDay,
		Start:    e.Start.In(loc),
	}
	if !e.End.IsZero() {
		o.End = e.End.In(loc)
	}
	key := e.Start
	if e.RecurrenceID != nil {
		key = *e.RecurrenceID
	}
	o.InstanceKey = key.UTC().Format(time.RFC3339)
	return o
}
