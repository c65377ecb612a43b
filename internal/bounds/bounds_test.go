package bounds

import (
	"math"
	"testing"
	"time"

	"tlview/internal/model"
)

func TestResolveInvokesProvidersOnce(t *testing.T) {
	calls := 0
	b := Default()
	b.Now = Provider(func() model.Stamp {
		calls++
		return model.At(int64(calls) * 1000)
	})

	e := b.Resolve()
	if calls != 1 {
		t.Fatalf("provider called %d times during one resolve, want 1", calls)
	}
	if e.Now != model.At(1000) {
		t.Errorf("Now = %+v, want 1000", e.Now)
	}

	// The snapshot is immutable: a later resolve does not change it.
	e2 := b.Resolve()
	if e.Now.Ms != 1000 || e2.Now.Ms != 2000 {
		t.Errorf("snapshots = %d, %d; want 1000, 2000", e.Now.Ms, e2.Now.Ms)
	}
}

func TestResolveClamps(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Bounds)
		check func(t *testing.T, e Evaluated)
	}{
		{
			name: "max before min collapses",
			edit: func(b *Bounds) {
				b.MinTime = Literal[int64](5000)
				b.MaxTime = Literal[int64](1000)
			},
			check: func(t *testing.T, e Evaluated) {
				if e.MaxTime != 5000 {
					t.Errorf("MaxTime = %d, want 5000", e.MaxTime)
				}
			},
		},
		{
			name: "cur viewport clamped into range",
			edit: func(b *Bounds) {
				b.MinViewport = Literal(2.0)
				b.MaxViewport = Literal(7.0)
				b.CurViewport = Literal(30.0)
			},
			check: func(t *testing.T, e Evaluated) {
				if e.CurViewport != 7 {
					t.Errorf("CurViewport = %v, want 7", e.CurViewport)
				}
			},
		},
		{
			name: "nonsense viewports reset",
			edit: func(b *Bounds) {
				b.MinViewport = Literal(-1.0)
				b.MaxViewport = Literal(math.NaN())
				b.CurViewport = Literal(0.0)
			},
			check: func(t *testing.T, e Evaluated) {
				if e.MinViewport != 1 || e.MaxViewport != 1 || e.CurViewport != 1 {
					t.Errorf("viewports = %v/%v/%v, want 1/1/1", e.MinViewport, e.MaxViewport, e.CurViewport)
				}
			},
		},
		{
			name: "negative preload and autoupdate",
			edit: func(b *Bounds) {
				b.PreloadBefore = Literal(-3.0)
				b.PreloadAfter = Literal(math.Inf(1))
				b.AutoUpdate = Literal(-time.Second)
			},
			check: func(t *testing.T, e Evaluated) {
				if e.PreloadBefore != 0 || e.PreloadAfter != 0 || e.AutoUpdate != 0 {
					t.Errorf("preload=%v/%v autoupdate=%v", e.PreloadBefore, e.PreloadAfter, e.AutoUpdate)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Default()
			tt.edit(&b)
			tt.check(t, b.Resolve())
		})
	}
}

func TestValue(t *testing.T) {
	lit := Literal(3.5)
	if lit.IsProvider() || lit.Get() != 3.5 {
		t.Errorf("literal = %v provider=%v", lit.Get(), lit.IsProvider())
	}
	p := Provider(func() float64 { return 9 })
	if !p.IsProvider() || p.Get() != 9 {
		t.Errorf("provider = %v provider=%v", p.Get(), p.IsProvider())
	}
	var zero Value[int64]
	if zero.Get() != 0 {
		t.Errorf("zero Value = %d", zero.Get())
	}
}
