// Package store keeps the canonical map of adopted events, merges pushed
// batches against it, and moves events in and out of timeframe membership
// as the active window shifts.
package store

import (
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"

	"tlview/internal/layout"
	appLog "tlview/internal/log"
	"tlview/internal/model"
	"tlview/internal/render"
	"tlview/internal/window"
)

// Record is an event together with its layout state and visual handle.
type Record struct {
	model.Event

	Span  layout.Span
	Owner int
	Box   layout.Box

	handle *render.Handle
}

// Store is not safe for concurrent use; the timeline serializes access.
type Store struct {
	mgr     *window.Manager
	r       render.Renderer
	metrics layout.Metrics

	// records holds every adopted event: each one is a member of exactly
	// the timeframe named by its Owner.
	records map[string]*Record
	// detached holds events orphaned by a timeframe teardown, handles
	// intact, until the next adoption pass.
	detached map[string]*Record
}

func New(mgr *window.Manager, r render.Renderer, m layout.Metrics) *Store {
	return &Store{
		mgr:      mgr,
		r:        r,
		metrics:  m,
		records:  make(map[string]*Record),
		detached: make(map[string]*Record),
	}
}

func (s *Store) SetMetrics(m layout.Metrics) { s.metrics = m }

func (s *Store) Len() int { return len(s.records) }

// Get returns the adopted record for id.
func (s *Store) Get(id string) (*Record, bool) {
	rec, ok := s.records[id]
	return rec, ok
}

// Records returns the adopted records ordered by id.
func (s *Store) Records() []*Record {
	ids := lo.Keys(s.records)
	slices.Sort(ids)
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	return out
}

// normalize applies the input rules: records with neither time are
// dropped, a missing begin defaults to end, an end before begin collapses
// to a point.
func normalize(ev model.Event) (model.Event, bool) {
	if !ev.Begin.Valid && !ev.End.Valid {
		return ev, false
	}
	if !ev.Begin.Valid {
		ev.Begin = ev.End
	}
	if ev.End.Valid && ev.End.Ms < ev.Begin.Ms {
		ev.End = ev.Begin
	}
	ev.Marks = slices.Clone(ev.Marks)
	return ev, true
}

func sameShape(a, b model.Event) bool {
	return a.Title == b.Title && a.Begin == b.Begin && a.End == b.End && a.Color == b.Color
}

// Push merges a batch by id and returns the records that need adoption.
// An event whose title, times and color are unchanged is skipped; if only
// its marks differ the marks are updated in place without a re-layout.
// A merged event keeps its row and handle, and its visual content is
// invalidated only when the marks changed.
func (s *Store) Push(events []model.Event) []*Record {
	var pending []*Record
	seen := make(map[string]*Record, len(events))

	for _, in := range events {
		ev, ok := normalize(in)
		if !ok {
			appLog.Debug("store: dropping event without begin and end", "id", in.ID)
			continue
		}

		// Duplicates inside one batch merge into the pending record.
		old := seen[ev.ID]
		if old == nil {
			old = s.records[ev.ID]
		}
		if old == nil {
			old = s.detached[ev.ID]
		}
		if old == nil {
			rec := &Record{Event: ev, Owner: -1}
			seen[ev.ID] = rec
			pending = append(pending, rec)
			continue
		}

		marksChanged := !slices.Equal(old.Marks, ev.Marks)
		if sameShape(old.Event, ev) {
			if marksChanged {
				old.Marks = ev.Marks
				old.handle.Invalidate()
				old.handle.Draw(render.ViewOf(old.Event))
			}
			continue
		}

		if seen[ev.ID] == nil {
			s.unlink(old)
			seen[ev.ID] = old
			pending = append(pending, old)
		}
		old.Event = ev
		old.Span.Positioned = false
		if marksChanged {
			old.handle.Invalidate()
		}
	}
	return pending
}

// unlink takes rec out of the map, the detached pool and its owner's
// membership, keeping the handle.
func (s *Store) unlink(rec *Record) {
	if tf := s.mgr.Timeframe(rec.Owner); tf != nil {
		tf.Detach(rec.ID)
	}
	delete(s.records, rec.ID)
	delete(s.detached, rec.ID)
	rec.Owner = -1
}

// Remove evicts ids and releases their handles. Unknown ids are ignored.
// It returns how many events were removed.
func (s *Store) Remove(ids []string) int {
	n := 0
	for _, id := range ids {
		rec := s.records[id]
		if rec == nil {
			rec = s.detached[id]
		}
		if rec == nil {
			continue
		}
		s.unlink(rec)
		rec.handle.Release()
		rec.handle = nil
		n++
	}
	return n
}

// Orphan moves ids from the map into the detached pool. The timeframes
// they belonged to are expected to be gone already.
func (s *Store) Orphan(ids []string) {
	for _, id := range ids {
		rec, ok := s.records[id]
		if !ok {
			continue
		}
		delete(s.records, id)
		rec.Owner = -1
		s.detached[id] = rec
	}
}

// Detached returns the number of events waiting for re-adoption.
func (s *Store) Detached() int { return len(s.detached) }

// Readopt runs an adoption pass over the detached pool and empties it.
func (s *Store) Readopt() []*Record {
	ids := lo.Keys(s.detached)
	slices.Sort(ids)
	recs := make([]*Record, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, s.detached[id])
	}
	clear(s.detached)
	return s.Adopt(recs)
}

// Adopt assigns each record to the active timeframe nearest its midpoint
// and registers its membership. Records disjoint from the active window are
// dropped with their handles. It returns the adopted records.
func (s *Store) Adopt(recs []*Record) []*Record {
	active := s.mgr.Active()
	sc := s.mgr.Scale()
	maxTime := s.mgr.Bounds().MaxTime

	var adopted []*Record
	for _, rec := range recs {
		from := sc.Timeframe(rec.Begin.Ms)
		to := from
		switch {
		case rec.Unfinished():
			to = sc.Timeframe(maxTime)
		case !rec.Point():
			to = sc.Timeframe(rec.End.Ms)
		}

		if active.Empty() || to < float64(active.From) || from >= float64(active.To) {
			appLog.Debug("store: event outside active window", "id", rec.ID)
			s.drop(rec)
			continue
		}

		owner := int(math.Floor((from+to)/2 + 0.5))
		owner = min(max(owner, active.From), active.To-1)
		tf := s.mgr.Timeframe(owner)
		if tf == nil {
			s.drop(rec)
			continue
		}

		tf.Attach(rec.ID, rec.Unfinished())
		rec.Owner = owner
		rec.Span.ID = rec.ID
		rec.Span.Positioned = false
		delete(s.detached, rec.ID)
		s.records[rec.ID] = rec

		if rec.handle == nil {
			rec.handle = render.NewHandle(s.r, rec.ID)
		}
		rec.handle.Draw(render.ViewOf(rec.Event))
		adopted = append(adopted, rec)
	}
	return adopted
}

func (s *Store) drop(rec *Record) {
	s.unlink(rec)
	rec.handle.Release()
	rec.handle = nil
}

// shape converts rec's times to continuous timeframe coordinates.
func (s *Store) shape(rec *Record) layout.Shape {
	sc := s.mgr.Scale()
	sh := layout.Shape{
		From:  sc.Timeframe(rec.Begin.Ms),
		Point: rec.Point(),
		Open:  rec.Unfinished(),
		Title: rec.Title,
	}
	if rec.End.Valid {
		sh.To = sc.Timeframe(rec.End.Ms)
	}
	return sh
}

// Layout recomputes every span for frameWidth, packs rows and moves the
// handles of the spans that were placed or changed rows. force discards
// previous rows. It returns the records that moved.
func (s *Store) Layout(force bool, frameWidth float64) []*Record {
	recs := s.Records()
	windowEnd := float64(s.mgr.Active().To)
	spans := make([]*layout.Span, 0, len(recs))
	byID := make(map[string]*Record, len(recs))
	for _, rec := range recs {
		layout.ComputeSpan(&rec.Span, s.shape(rec), frameWidth, windowEnd, s.metrics)
		spans = append(spans, &rec.Span)
		byID[rec.ID] = rec
	}

	var moved []*Record
	placed := make(map[string]bool)
	for _, sp := range layout.Pack(spans, force) {
		rec := byID[sp.ID]
		rec.Box = layout.Place(sp, rec.Owner, frameWidth, rec.Point(), s.metrics)
		rec.handle.Move(rec.Owner, rec.Box)
		moved = append(moved, rec)
		placed[rec.ID] = true
	}

	// Unfinished events that kept their row still follow the window end.
	for _, rec := range recs {
		if placed[rec.ID] || !rec.Unfinished() || !rec.Span.Positioned {
			continue
		}
		b := layout.Place(&rec.Span, rec.Owner, frameWidth, false, s.metrics)
		if b.LabelWidth == rec.Box.LabelWidth {
			continue
		}
		rec.Box.LabelWidth = b.LabelWidth
		rec.handle.Move(rec.Owner, rec.Box)
		moved = append(moved, rec)
	}
	return moved
}

// RefreshOpen recomputes the width of every unfinished event against now,
// without touching rows. now is in timeframe units; nowValid false extends
// them to the window end. It returns how many widths changed.
func (s *Store) RefreshOpen(now float64, nowValid bool, frameWidth float64) int {
	active := s.mgr.Active()
	n := 0
	for _, tf := range s.mgr.Frames() {
		for _, id := range tf.Unfinished() {
			rec := s.records[id]
			if rec == nil || !rec.Span.Positioned {
				continue
			}
			w := layout.OpenWidth(rec.Box.Left, rec.Owner, now, nowValid, active.To, frameWidth)
			if w == rec.Box.Width {
				continue
			}
			rec.Box.Width = w
			rec.handle.Resize(w)
			n++
		}
	}
	return n
}

// Check verifies that every adopted event is a member of exactly its owner
// timeframe and that every membership refers to an adopted event.
func (s *Store) Check() error {
	count := make(map[string]int, len(s.records))
	for _, tf := range s.mgr.Frames() {
		for _, id := range tf.Events() {
			rec, ok := s.records[id]
			if !ok {
				return fmt.Errorf("store: timeframe %d references unknown event %q", tf.Index, id)
			}
			if rec.Owner != tf.Index {
				return fmt.Errorf("store: event %q is a member of %d but owned by %d", id, tf.Index, rec.Owner)
			}
			count[id]++
		}
		for _, id := range tf.Unfinished() {
			if !tf.Has(id) {
				return fmt.Errorf("store: timeframe %d lists unfinished %q without membership", tf.Index, id)
			}
		}
	}
	for id, rec := range s.records {
		if count[id] != 1 {
			return fmt.Errorf("store: event %q is a member of %d timeframes", id, count[id])
		}
		if _, ok := s.detached[id]; ok {
			return fmt.Errorf("store: event %q is both adopted and detached", id)
		}
		if rec.handle.Released() {
			return fmt.Errorf("store: event %q has no live handle", id)
		}
	}
	return nil
}

// Clone returns a copy of rec's event, safe to hand to callbacks.
func (rec *Record) Clone() model.Event {
	ev := rec.Event
	ev.Marks = slices.Clone(rec.Marks)
	return ev
}
