package render

import (
	"testing"

	"tlview/internal/layout"
	"tlview/internal/model"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		ev   model.Event
		want Kind
	}{
		{"interval", model.Event{Begin: model.At(1), End: model.At(2)}, Interval},
		{"point", model.Event{Begin: model.At(5), End: model.At(5)}, Point},
		{"unfinished", model.Event{Begin: model.At(5)}, Unfinished},
	}
	for _, tt := range tests {
		if got := KindOf(tt.ev); got != tt.want {
			t.Errorf("%s: KindOf = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestHandleDrawSkipsIdenticalView(t *testing.T) {
	sc := NewScene()
	h := NewHandle(sc, "a")
	v := ViewOf(model.Event{ID: "a", Title: "A", Begin: model.At(1), End: model.At(2), Marks: []string{"x"}})

	if !h.Draw(v) {
		t.Fatal("first Draw should touch the surface")
	}
	if h.Draw(ViewOf(model.Event{ID: "a", Title: "A", Begin: model.At(1), End: model.At(2), Marks: []string{"x"}})) {
		t.Error("identical Draw should be skipped")
	}

	h.Invalidate()
	if !h.Draw(v) {
		t.Error("Draw after Invalidate should rebuild")
	}
	if st := sc.Stats(); st.Updates != 2 || st.Clears != 1 || st.Creates != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestHandleReleaseOnce(t *testing.T) {
	sc := NewScene()
	h := NewHandle(sc, "a")
	if !h.Release() {
		t.Fatal("first Release should report true")
	}
	if h.Release() {
		t.Error("second Release should report false")
	}
	// Calls after release are ignored.
	h.Move(1, layout.Box{Left: 3})
	h.Draw(View{Title: "late"})
	h.Invalidate()
	h.Resize(9)

	st := sc.Stats()
	if st.Destroys != 1 || st.Moves != 0 || st.Updates != 0 {
		t.Errorf("stats after release = %+v", st)
	}
	if n := len(sc.Snapshot().Events); n != 0 {
		t.Errorf("snapshot still has %d events", n)
	}
}

func TestSceneSnapshot(t *testing.T) {
	sc := NewScene()
	changed := sc.Changed()

	sc.AddTimeframe(Frame{Index: 2, From: 20, To: 30, Ticks: []Tick{{Position: 0, Label: "d2"}}})
	sc.AddTimeframe(Frame{Index: 1, From: 10, To: 20})
	select {
	case <-changed:
	default:
		t.Fatal("Changed channel not closed after mutation")
	}

	sc.PlaceTimeframe(1, -50, 100, 40)
	sc.SetLoading(2, true)
	h := NewHandle(sc, "open")
	h.Draw(ViewOf(model.Event{ID: "open", Title: "Ongoing", Begin: model.At(12)}))
	h.Move(1, layout.Box{Left: 20, Width: 30})
	sc.ShowError("boom")

	snap := sc.Snapshot()
	if len(snap.Frames) != 2 || snap.Frames[0].Index != 1 || snap.Frames[1].Index != 2 {
		t.Fatalf("frames = %+v", snap.Frames)
	}
	if f := snap.Frames[0]; f.Left != -50 || f.Width != 100 || f.Future != 40 {
		t.Errorf("placed frame = %+v", f)
	}
	if !snap.Frames[1].Loading || snap.Frames[1].Future != -1 {
		t.Errorf("frame 2 = %+v", snap.Frames[1])
	}
	if len(snap.Events) != 1 {
		t.Fatalf("events = %+v", snap.Events)
	}
	e := snap.Events[0]
	if e.Kind != "unfinished" || e.End != nil || e.Frame != 1 || e.Box.Width != 30 {
		t.Errorf("event = %+v", e)
	}
	if !snap.Failed || snap.Error != "boom" {
		t.Errorf("error state = %q %v", snap.Error, snap.Failed)
	}

	sc.HideError()
	if _, failed := sc.Failed(); failed {
		t.Error("HideError did not clear")
	}
}
