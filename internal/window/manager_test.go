package window

import (
	"slices"
	"testing"
	"time"

	"tlview/internal/bounds"
)

func newTestManager(t *testing.T, days int64, cur float64) *Manager {
	t.Helper()
	b := bounds.Default()
	b.MinTime = bounds.Literal[int64](0)
	b.MaxTime = bounds.Literal(days * Day)
	b.MaxViewport = bounds.Literal(10.0)
	b.CurViewport = bounds.Literal(cur)
	e := b.Resolve()

	m := NewManager()
	m.Rebase(e, DailyScale(e.MinTime))
	return m
}

func TestDailyScalePhase(t *testing.T) {
	// minTime at 06:00 on day 3: boundaries fall on 06:00.
	minTime := 3*Day + 6*int64(time.Hour/time.Millisecond)
	s := DailyScale(minTime)

	if got := s.Timeframe(minTime); got != 3 {
		t.Errorf("Timeframe(minTime) = %v, want 3", got)
	}
	if got := s.Time(4); got != minTime+Day {
		t.Errorf("Time(4) = %d, want %d", got, minTime+Day)
	}
	if got := s.Timeframe(minTime + Day/2); got != 3.5 {
		t.Errorf("Timeframe(mid) = %v, want 3.5", got)
	}

	neg := DailyScale(-Day / 4)
	if neg.Offset != 3*Day/4 {
		t.Errorf("negative origin offset = %d, want %d", neg.Offset, 3*Day/4)
	}
}

func TestNewFixedScale(t *testing.T) {
	s := NewFixedScale(6*time.Hour, 0)
	if s.Period != Day/4 {
		t.Errorf("Period = %d", s.Period)
	}
	if got := NewFixedScale(0, 0).Period; got != Day {
		t.Errorf("zero period fallback = %d, want %d", got, Day)
	}
}

func TestComputeWindow(t *testing.T) {
	m := newTestManager(t, 10, 2)

	w := m.ComputeWindow(4 * Day)
	// [4-1, 4+2+1) = [3, 7)
	if w.Frames != (Range{From: 3, To: 7}) {
		t.Errorf("Frames = %+v, want [3,7)", w.Frames)
	}
	if w.TimeFrom != 3*Day || w.TimeTo != 7*Day {
		t.Errorf("times = [%d,%d)", w.TimeFrom, w.TimeTo)
	}

	// Clamped at minTime.
	w = m.ComputeWindow(0)
	if w.Frames != (Range{From: 0, To: 3}) {
		t.Errorf("Frames at origin = %+v, want [0,3)", w.Frames)
	}

	// Clamped at maxTime.
	w = m.ComputeWindow(8 * Day)
	if w.Frames != (Range{From: 7, To: 10}) || w.TimeTo != 10*Day {
		t.Errorf("Frames at end = %+v to=%d", w.Frames, w.TimeTo)
	}

	// Fractional position snaps outward.
	w = m.ComputeWindow(4*Day + Day/2)
	if w.Frames != (Range{From: 3, To: 8}) {
		t.Errorf("Frames at 4.5 = %+v, want [3,8)", w.Frames)
	}
}

func TestComputeWindowEmptyBounds(t *testing.T) {
	m := newTestManager(t, 0, 1)
	w := m.ComputeWindow(0)
	if !w.Frames.Empty() || w.Frames.From > w.Frames.To {
		t.Errorf("Frames = %+v, want empty", w.Frames)
	}
}

func TestClampPosition(t *testing.T) {
	m := newTestManager(t, 10, 2)
	s := m.Scale()

	want := s.Time(s.Timeframe(10*Day) - 2)
	if got := m.ClampPosition(100 * Day); got != want {
		t.Errorf("ClampPosition(100d) = %d, want %d", got, want)
	}
	if got := m.ClampPosition(-5 * Day); got != 0 {
		t.Errorf("ClampPosition(-5d) = %d, want 0", got)
	}
	if got := m.ClampPosition(3 * Day); got != 3*Day {
		t.Errorf("ClampPosition(3d) = %d", got)
	}
}

func TestSetActiveOrphans(t *testing.T) {
	m := newTestManager(t, 20, 2)
	sh := m.SetActive(Range{From: 0, To: 4})
	if !slices.Equal(sh.Added, []int{0, 1, 2, 3}) || len(sh.Removed) != 0 {
		t.Fatalf("initial shift = %+v", sh)
	}

	m.Timeframe(0).Attach("a", false)
	m.Timeframe(1).Attach("b", true)
	m.Timeframe(3).Attach("c", false)

	sh = m.SetActive(Range{From: 2, To: 6})
	if !slices.Equal(sh.Added, []int{4, 5}) {
		t.Errorf("Added = %v", sh.Added)
	}
	if !slices.Equal(sh.Removed, []int{0, 1}) {
		t.Errorf("Removed = %v", sh.Removed)
	}
	if !slices.Equal(sh.Orphans, []string{"a", "b"}) {
		t.Errorf("Orphans = %v", sh.Orphans)
	}
	if m.Timeframe(0) != nil || m.Timeframe(3) == nil || !m.Timeframe(3).Has("c") {
		t.Error("timeframe table not updated")
	}

	if m.AddTimeframe(3) {
		t.Error("AddTimeframe on existing timeframe should be a no-op")
	}
	if ids := m.RemoveTimeframe(99); ids != nil {
		t.Errorf("RemoveTimeframe on missing timeframe = %v", ids)
	}
}

func TestMissingRange(t *testing.T) {
	m := newTestManager(t, 20, 2)
	m.SetActive(Range{From: 0, To: 10})

	for _, i := range []int{0, 1, 2, 7, 8, 9} {
		m.Timeframe(i).Loading = Resolved
	}
	got, ok := m.MissingRange(false)
	if !ok || got != (Range{From: 3, To: 7}) {
		t.Fatalf("MissingRange = %+v, %v; want [3,7)", got, ok)
	}

	// Partial coverage: left half resolved, right half pending.
	for i := 3; i < 7; i++ {
		m.Timeframe(i).Loading = Untouched
	}
	for i := 5; i < 10; i++ {
		m.Timeframe(i).Loading = Requested
	}
	got, ok = m.MissingRange(false)
	if !ok || got != (Range{From: 3, To: 5}) {
		t.Fatalf("MissingRange = %+v, %v; want [3,5)", got, ok)
	}

	for i := 3; i < 5; i++ {
		m.Timeframe(i).Loading = Resolved
	}
	if got, ok := m.MissingRange(false); ok {
		t.Fatalf("MissingRange on fully loaded window = %+v", got)
	}
}

func TestMissingRangeFailed(t *testing.T) {
	m := newTestManager(t, 20, 2)
	m.SetActive(Range{From: 0, To: 5})
	for _, tf := range m.Frames() {
		tf.Loading = Resolved
	}
	m.Timeframe(2).Err = true

	if _, ok := m.MissingRange(false); ok {
		t.Error("failed timeframe must not be retried by a plain window update")
	}
	got, ok := m.MissingRange(true)
	if !ok || got != (Range{From: 2, To: 3}) {
		t.Errorf("MissingRange(includeFailed) = %+v, %v; want [2,3)", got, ok)
	}
}

func TestSetStatus(t *testing.T) {
	m := newTestManager(t, 20, 2)
	m.SetActive(Range{From: 0, To: 6})

	ch := m.SetStatus(1*Day, 4*Day, true, false)
	if !slices.Equal(ch.LoadingOn, []int{1, 2, 3}) {
		t.Errorf("LoadingOn = %v", ch.LoadingOn)
	}
	for i := 1; i < 4; i++ {
		if m.Timeframe(i).Loading != Requested {
			t.Errorf("timeframe %d = %s, want requested", i, m.Timeframe(i).Loading)
		}
	}

	// Error on part of the range.
	if !m.ShowError("fetch failed") {
		t.Fatal("ShowError should report newly shown")
	}
	if m.ShowError("second") {
		t.Error("ShowError while shown should be a no-op")
	}
	ch = m.SetStatus(1*Day, 2*Day, false, true)
	if !slices.Equal(ch.LoadingOff, []int{1}) || ch.ErrorCleared {
		t.Errorf("error change = %+v", ch)
	}
	if !m.Timeframe(1).Err || m.Timeframe(1).Loading != Resolved {
		t.Errorf("timeframe 1 = %+v", m.Timeframe(1))
	}

	// A successful push elsewhere keeps the indicator: timeframe 1 still failed.
	ch = m.SetStatus(2*Day, 4*Day, false, false)
	if !slices.Equal(ch.LoadingOff, []int{2, 3}) || ch.ErrorCleared {
		t.Errorf("push change = %+v", ch)
	}
	if msg, shown := m.ErrorState(); !shown || msg != "fetch failed" {
		t.Errorf("ErrorState = %q, %v", msg, shown)
	}

	// Pushing the failed timeframe clears it and the indicator.
	ch = m.SetStatus(1*Day, 2*Day, false, false)
	if !ch.ErrorCleared || len(ch.LoadingOff) != 0 {
		t.Errorf("recovery change = %+v", ch)
	}
	if _, shown := m.ErrorState(); shown {
		t.Error("error indicator still shown")
	}

	// Unsolicited push of an untouched timeframe resolves it without a
	// loading-off notification.
	ch = m.SetStatus(5*Day, 6*Day, false, false)
	if len(ch.LoadingOff) != 0 || m.Timeframe(5).Loading != Resolved {
		t.Errorf("unsolicited push = %+v state=%s", ch, m.Timeframe(5).Loading)
	}
}

func TestReset(t *testing.T) {
	m := newTestManager(t, 20, 2)
	m.SetActive(Range{From: 0, To: 3})
	m.SetStatus(0, 3*Day, false, true)
	m.Reset()
	got, ok := m.MissingRange(false)
	if !ok || got != (Range{From: 0, To: 3}) {
		t.Errorf("MissingRange after Reset = %+v, %v", got, ok)
	}
	for _, tf := range m.Frames() {
		if tf.Err {
			t.Errorf("timeframe %d still failed", tf.Index)
		}
	}
}
