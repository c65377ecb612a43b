package window

import (
	"slices"

	"github.com/samber/lo"
)

// LoadState is the tri-state fetch status of a timeframe.
type LoadState int

const (
	// Untouched timeframes were never requested.
	Untouched LoadState = iota
	// Requested timeframes have a fetch in flight.
	Requested
	// Resolved timeframes received a push or an error.
	Resolved
)

func (s LoadState) String() string {
	switch s {
	case Requested:
		return "requested"
	case Resolved:
		return "resolved"
	default:
		return "untouched"
	}
}

// Range is a half-open range of timeframe indices [From, To).
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (r Range) Len() int {
	if r.To <= r.From {
		return 0
	}
	return r.To - r.From
}

func (r Range) Empty() bool { return r.Len() == 0 }

func (r Range) Contains(i int) bool { return i >= r.From && i < r.To }

// Timeframe is one loadable bucket of the time axis.
type Timeframe struct {
	Index   int
	Loading LoadState
	Err     bool

	events     map[string]struct{}
	unfinished map[string]struct{}
}

func newTimeframe(i int) *Timeframe {
	return &Timeframe{
		Index:      i,
		events:     make(map[string]struct{}),
		unfinished: make(map[string]struct{}),
	}
}

// Attach registers id as a member. Unfinished members are also tracked
// separately so their widths can be refreshed without a full layout.
func (t *Timeframe) Attach(id string, unfinished bool) {
	t.events[id] = struct{}{}
	if unfinished {
		t.unfinished[id] = struct{}{}
	}
}

// Detach drops id from both member sets.
func (t *Timeframe) Detach(id string) {
	delete(t.events, id)
	delete(t.unfinished, id)
}

func (t *Timeframe) Has(id string) bool {
	_, ok := t.events[id]
	return ok
}

// Events returns member ids in sorted order.
func (t *Timeframe) Events() []string {
	return sortedKeys(t.events)
}

// Unfinished returns unfinished member ids in sorted order.
func (t *Timeframe) Unfinished() []string {
	return sortedKeys(t.unfinished)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
