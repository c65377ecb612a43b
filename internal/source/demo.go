package source

import (
	"fmt"
	"time"

	"tlview/internal/model"
)

// DemoEvents returns a deterministic two-week schedule around now: daily
// standups, a few longer blocks, point milestones and one ongoing incident.
func DemoEvents(now time.Time, loc *time.Location) []model.Event {
	if loc == nil {
		loc = time.Local
	}
	n := now.In(loc)
	day0 := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	at := func(d, h, m int) model.Stamp {
		return model.AtTime(time.Date(day0.Year(), day0.Month(), day0.Day()+d, h, m, 0, 0, loc))
	}

	var out []model.Event
	for d := -7; d <= 7; d++ {
		wd := day0.AddDate(0, 0, d).Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, model.Event{
			ID:    fmt.Sprintf("demo/standup/%d", d),
			Title: "Standup",
			Begin: at(d, 9, 30),
			End:   at(d, 9, 45),
			Color: "blue",
		})
	}
	out = append(out,
		model.Event{ID: "demo/offsite", Title: "Team offsite", Begin: at(-3, 8, 0), End: at(-1, 18, 0), Color: "green"},
		model.Event{ID: "demo/review", Title: "Design review", Begin: at(1, 14, 0), End: at(1, 16, 0), Color: "purple", Marks: []string{"@room 4"}},
		model.Event{ID: "demo/release", Title: "Release 2.0", Begin: at(3, 12, 0), End: at(3, 12, 0), Color: "red"},
		model.Event{ID: "demo/freeze", Title: "Code freeze", Begin: at(2, 0, 0), End: at(3, 12, 0), Color: "orange"},
		model.Event{ID: "demo/vacation", Title: "Vacation", Begin: at(5, 0, 0), End: at(9, 0, 0), Marks: []string{model.MarkAllDay}},
		model.Event{ID: "demo/incident", Title: "Incident: elevated latency", Begin: model.AtTime(n.Add(-90 * time.Minute)), Color: "red"},
	)
	return out
}
