// Package refresh reloads the timeline on a cron schedule.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "tlview/internal/log"
)

// Scheduler runs one job on a cron schedule.
type Scheduler struct {
	c    *cron.Cron
	spec string
}

// cronLogger routes cron's own messages to the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}

// Start schedules fn on spec, a standard five-field expression or a
// descriptor such as "@hourly" or "@every 10m", interpreted in loc.
// Overlapping runs are skipped.
func Start(spec string, loc *time.Location, fn func()) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() {
		appLog.Info("scheduled refresh", "spec", spec)
		fn()
	}); err != nil {
		return nil, fmt.Errorf("refresh: schedule %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("refresh scheduler started", "spec", spec, "timezone", loc.String())
	return &Scheduler{c: c, spec: spec}, nil
}

// Next returns the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts the schedule and waits for a running job to finish or ctx to
// end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}
}
