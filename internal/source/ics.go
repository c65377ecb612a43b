package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tlview/internal/ics"
	appLog "tlview/internal/log"
	"tlview/internal/model"
)

// ICS answers requests by fetching every feed and expanding its entries
// over the requested range. Each request runs in its own goroutine.
type ICS struct {
	binding

	fetcher   *ics.Fetcher
	feeds     []ics.Feed
	loc       *time.Location
	highlight Highlighter
	timeout   time.Duration

	ctx context.Context
	wg  sync.WaitGroup
}

// ICSOptions configures NewICS.
type ICSOptions struct {
	Feeds     []ics.Feed
	Location  *time.Location
	Highlight Highlighter
	Timeout   time.Duration
}

// NewICS returns a source whose requests are canceled with ctx.
func NewICS(ctx context.Context, f *ics.Fetcher, opts ICSOptions) *ICS {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &ICS{
		fetcher:   f,
		feeds:     opts.Feeds,
		loc:       opts.Location,
		highlight: opts.Highlight,
		timeout:   opts.Timeout,
		ctx:       ctx,
	}
}

func (s *ICS) GetEvents(from, to int64) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		events, err := s.Load(ctx, from, to)
		sink := s.get()
		if sink == nil {
			return
		}
		if err != nil {
			sink.Error(from, to, err.Error())
			return
		}
		sink.Push(from, to, events)
	}()
}

// Wait blocks until every request in flight has been answered.
func (s *ICS) Wait() { s.wg.Wait() }

// Load fetches, parses and expands all feeds for [from, to). It fails only
// when no feed could be read; partial failures are logged.
func (s *ICS) Load(ctx context.Context, from, to int64) ([]model.Event, error) {
	results, err := s.fetcher.FetchAll(ctx, s.feeds)
	if len(results) == 0 && len(s.feeds) > 0 {
		return nil, fmt.Errorf("source: no calendar could be loaded: %w", err)
	}
	if err != nil {
		appLog.Warn("source: some calendars failed", "err", err)
	}

	window := ics.Window{
		From:     time.UnixMilli(from),
		To:       time.UnixMilli(to),
		Location: s.loc,
	}
	var events []model.Event
	for _, res := range results {
		entries, err := ics.ParseICS(res.Feed, res.Body)
		if err != nil {
			appLog.Error("source: parse failed", err, "feed", res.Feed.ID)
			continue
		}
		occ, err := ics.Expand(entries, window)
		if err != nil {
			return nil, fmt.Errorf("source: expand %q: %w", res.Feed.ID, err)
		}
		for _, o := range occ {
			events = append(events, s.highlight.Apply(o.Event(res.Feed.Color)))
		}
	}
	appLog.Info("source: calendars loaded", "from", from, "to", to, "events", len(events))
	return events, nil
}
