package render

import "tlview/internal/layout"

// Handle owns one event Surface. It caches the last drawn view so redundant
// draws are skipped, and destroys the surface exactly once. A released
// handle ignores every call.
type Handle struct {
	s        Surface
	last     View
	drawn    bool
	released bool
}

// NewHandle creates the surface for id.
func NewHandle(r Renderer, id string) *Handle {
	return &Handle{s: r.NewEvent(id)}
}

// Draw updates the surface unless v is what it already shows. It reports
// whether the surface was touched.
func (h *Handle) Draw(v View) bool {
	if h == nil || h.released {
		return false
	}
	if h.drawn && h.last.equal(v) {
		return false
	}
	h.s.Update(v)
	h.last, h.drawn = v, true
	return true
}

// Invalidate drops the cached content; the next Draw rebuilds it.
func (h *Handle) Invalidate() {
	if h == nil || h.released || !h.drawn {
		return
	}
	h.s.Clear()
	h.drawn = false
}

func (h *Handle) Move(frame int, b layout.Box) {
	if h == nil || h.released {
		return
	}
	h.s.Move(frame, b)
}

func (h *Handle) Resize(width float64) {
	if h == nil || h.released {
		return
	}
	h.s.Resize(width)
}

// Release destroys the surface. Only the first call has an effect; it
// reports whether this call did the release.
func (h *Handle) Release() bool {
	if h == nil || h.released {
		return false
	}
	h.released = true
	h.s.Destroy()
	h.s = nil
	return true
}

func (h *Handle) Released() bool { return h == nil || h.released }
