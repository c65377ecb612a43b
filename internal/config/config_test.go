package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "127.0.0.1:8080" || cfg.Timeline.TimeframeHours != 24 {
		t.Errorf("default cfg = %+v", cfg)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := st.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.RefreshCron != cfg.RefreshCron || again.Timeline.AutoUpdate != "5m" {
		t.Errorf("reloaded = %+v", again)
	}
}

func TestLoadPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := strings.Join([]string{
		"timezone: UTC",
		"ics:",
		"  - url: https://example.com/a.ics",
		"    color: teal",
		"  - url: https://example.com/b.ics",
		"    id: team",
		"timeline:",
		"  viewport_days: 3",
		"  timeframe_hours: 12",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.ICS[0].ID != "ics1" || cfg.ICS[1].ID != "team" {
		t.Errorf("ids = %q, %q", cfg.ICS[0].ID, cfg.ICS[1].ID)
	}
	feeds := cfg.Feeds()
	if len(feeds) != 2 || feeds[0].Color != "teal" {
		t.Errorf("feeds = %+v", feeds)
	}
	if cfg.Period() != 12*time.Hour {
		t.Errorf("period = %v", cfg.Period())
	}
	if cfg.Timeline.LetterWidth != 7.5 || cfg.Metrics().EventHeight != 30 {
		t.Errorf("metrics = %+v", cfg.Metrics())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	cfg.Timeline.MinTime = "yesterday"
	cfg.Timeline.AutoUpdate = "often"
	cfg.ICS = []ICSConfig{{ID: "a"}, {ID: "a", URL: "https://example.com"}}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"timezone", "min_time", "auto_update", "empty url", "duplicate id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestBoundsRelative(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BackfillDays = 2
	cfg.HorizonDays = 10
	cfg.Timeline.ViewportDays = 3
	cfg.Timeline.TimeframeHours = 12
	cfg.Timeline.AutoUpdate = "1m"

	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	e := cfg.Bounds(func() time.Time { return now }, time.UTC).Resolve()

	if want := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC).UnixMilli(); e.MinTime != want {
		t.Errorf("MinTime = %d, want %d", e.MinTime, want)
	}
	if want := time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC).UnixMilli(); e.MaxTime != want {
		t.Errorf("MaxTime = %d, want %d", e.MaxTime, want)
	}
	if e.CurViewport != 6 {
		t.Errorf("CurViewport = %v, want 6 half-day frames", e.CurViewport)
	}
	if !e.Now.Valid || e.Now.Ms != now.UnixMilli() {
		t.Errorf("Now = %+v", e.Now)
	}
	if want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).UnixMilli(); e.Position.Ms != want {
		t.Errorf("Position = %d, want %d", e.Position.Ms, want)
	}
	if e.AutoUpdate != time.Minute {
		t.Errorf("AutoUpdate = %v", e.AutoUpdate)
	}

	s := cfg.Scale()(e)
	if got := s.Timeframe(e.MinTime + int64(12*time.Hour/time.Millisecond)); got-s.Timeframe(e.MinTime) != 1 {
		t.Errorf("12h should span one timeframe, got %v", got-s.Timeframe(e.MinTime))
	}
}

func TestBoundsLiteral(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeline.MinTime = "2026-01-01T00:00:00Z"
	cfg.Timeline.MaxTime = "2026-02-01T00:00:00Z"
	e := cfg.Bounds(time.Now, time.UTC).Resolve()
	if e.MinTime != time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("MinTime = %d", e.MinTime)
	}
	if e.MaxTime != time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("MaxTime = %d", e.MaxTime)
	}
}

func TestResolveCacheDir(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ResolveCacheDir("/etc/tlview/config.yaml"); got != "/etc/tlview/cache" {
		t.Errorf("relative = %q", got)
	}
	cfg.CacheDir = "/var/cache/tlview"
	if got := cfg.ResolveCacheDir("/etc/tlview/config.yaml"); got != cfg.CacheDir {
		t.Errorf("absolute = %q", got)
	}
}
