package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"tlview/internal/bounds"
	"tlview/internal/ics"
	"tlview/internal/layout"
	"tlview/internal/model"
	"tlview/internal/window"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID prefixes event ids; it must be stable across restarts.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
	// Color is applied to every event of the feed.
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// TimelineConfig holds the bounds and visual metrics of the timeline.
type TimelineConfig struct {
	// MinTime and MaxTime are RFC3339 timestamps. When empty they follow the
	// clock: backfill_days before today and horizon_days after it.
	MinTime string `yaml:"min_time,omitempty" json:"min_time,omitempty"`
	MaxTime string `yaml:"max_time,omitempty" json:"max_time,omitempty"`

	ViewportDays    float64 `yaml:"viewport_days" json:"viewport_days"`
	MinViewportDays float64 `yaml:"min_viewport_days" json:"min_viewport_days"`
	MaxViewportDays float64 `yaml:"max_viewport_days" json:"max_viewport_days"`

	// PreloadBefore and PreloadAfter are in timeframes.
	PreloadBefore float64 `yaml:"preload_before" json:"preload_before"`
	PreloadAfter  float64 `yaml:"preload_after" json:"preload_after"`

	// AutoUpdate is a Go duration ("5m"); empty or zero disables it.
	AutoUpdate string `yaml:"auto_update,omitempty" json:"auto_update,omitempty"`

	TimeframeHours float64 `yaml:"timeframe_hours" json:"timeframe_hours"`

	Width       float64 `yaml:"width" json:"width"`
	LetterWidth float64 `yaml:"letter_width" json:"letter_width"`
	EventHeight float64 `yaml:"event_height" json:"event_height"`
	HSpacing    float64 `yaml:"hspacing" json:"hspacing"`
	VSpacing    float64 `yaml:"vspacing" json:"vspacing"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for day boundaries and tick labels.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for a full reload of the active window. Empty disables it.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays and BackfillDays bound a clock-relative timeline.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// HighlightRed is a list of keywords that cause events to be rendered in red.
	HighlightRed []string `yaml:"highlight_red" json:"highlight_red"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir holds fetched ICS bodies. Relative paths are resolved
	// against the config file's directory.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Timeline TimelineConfig `yaml:"timeline" json:"timeline"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "UTC",
		RefreshCron:  "*/15 * * * *",
		HorizonDays:  30,
		BackfillDays: 7,
		HighlightRed: []string{},
		ICS:          []ICSConfig{},
		LogLevel:     "info",
		CacheDir:     "cache",
		Timeline: TimelineConfig{
			AutoUpdate: "5m",
		},
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 30
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.HighlightRed == nil {
		c.HighlightRed = []string{}
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = fmt.Sprintf("ics%d", i+1)
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CacheDir == "" {
		c.CacheDir = "cache"
	}

	t := &c.Timeline
	if t.TimeframeHours <= 0 {
		t.TimeframeHours = 24
	}
	if t.ViewportDays <= 0 {
		t.ViewportDays = 7
	}
	if t.MinViewportDays <= 0 {
		t.MinViewportDays = 1
	}
	if t.MaxViewportDays <= 0 {
		t.MaxViewportDays = 60
	}
	if t.PreloadBefore <= 0 {
		t.PreloadBefore = 1
	}
	if t.PreloadAfter <= 0 {
		t.PreloadAfter = 1
	}
	if t.Width <= 0 {
		t.Width = 1200
	}
	m := layout.DefaultMetrics()
	if t.LetterWidth <= 0 {
		t.LetterWidth = m.LetterWidth
	}
	if t.EventHeight <= 0 {
		t.EventHeight = m.EventHeight
	}
	if t.HSpacing <= 0 {
		t.HSpacing = m.HSpacing
	}
	if t.VSpacing <= 0 {
		t.VSpacing = m.VSpacing
	}
}

// Validate reports values Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	for _, field := range []struct{ name, v string }{
		{"timeline.min_time", c.Timeline.MinTime},
		{"timeline.max_time", c.Timeline.MaxTime},
	} {
		if field.v == "" {
			continue
		}
		if _, err := time.Parse(time.RFC3339, field.v); err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", field.name, err))
		}
	}
	if _, err := c.AutoUpdate(); err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]bool)
	for _, s := range c.ICS {
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("config: ics %q: empty url", s.ID))
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("config: ics %q: duplicate id", s.ID))
		}
		seen[s.ID] = true
	}
	return errors.Join(errs...)
}

// Location loads Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// AutoUpdate parses timeline.auto_update; empty means disabled.
func (c *Config) AutoUpdate() (time.Duration, error) {
	if c.Timeline.AutoUpdate == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeline.AutoUpdate)
	if err != nil {
		return 0, fmt.Errorf("config: timeline.auto_update: %w", err)
	}
	return d, nil
}

// Period is the length of one timeframe.
func (c *Config) Period() time.Duration {
	return time.Duration(c.Timeline.TimeframeHours * float64(time.Hour))
}

// Scale buckets time into timeframes of Period, aligned to MinTime.
func (c *Config) Scale() func(bounds.Evaluated) window.Scale {
	period := c.Period()
	return func(e bounds.Evaluated) window.Scale {
		return window.NewFixedScale(period, e.MinTime)
	}
}

// Metrics returns the pixel constants of the event visuals.
func (c *Config) Metrics() layout.Metrics {
	return layout.Metrics{
		LetterWidth: c.Timeline.LetterWidth,
		HSpacing:    c.Timeline.HSpacing,
		EventHeight: c.Timeline.EventHeight,
		VSpacing:    c.Timeline.VSpacing,
	}
}

// Feeds converts the ICS subscriptions for the fetcher.
func (c *Config) Feeds() []ics.Feed {
	out := make([]ics.Feed, 0, len(c.ICS))
	for _, s := range c.ICS {
		out = append(out, ics.Feed{ID: s.ID, URL: s.URL, Color: s.Color})
	}
	return out
}

// Bounds builds the timeline bounds. Clock-relative times are providers
// truncated to the start of the day in loc, so the timeframe phase stays
// put across update cycles of the same day.
func (c *Config) Bounds(now func() time.Time, loc *time.Location) bounds.Bounds {
	t := c.Timeline
	days := func(d float64) float64 { return d * 24 / t.TimeframeHours }
	dayStart := func(offset int) int64 {
		n := now().In(loc)
		return time.Date(n.Year(), n.Month(), n.Day()+offset, 0, 0, 0, 0, loc).UnixMilli()
	}

	b := bounds.Default()
	b.MinTime = timeValue(t.MinTime, func() int64 { return dayStart(-c.BackfillDays) })
	b.MaxTime = timeValue(t.MaxTime, func() int64 { return dayStart(c.HorizonDays + 1) })
	b.MinViewport = bounds.Literal(days(t.MinViewportDays))
	b.MaxViewport = bounds.Literal(days(t.MaxViewportDays))
	b.CurViewport = bounds.Literal(days(t.ViewportDays))
	b.PreloadBefore = bounds.Literal(t.PreloadBefore)
	b.PreloadAfter = bounds.Literal(t.PreloadAfter)
	b.Position = bounds.Provider(func() model.Stamp { return model.At(dayStart(0)) })
	b.Now = bounds.Provider(func() model.Stamp { return model.AtTime(now()) })
	auto, _ := c.AutoUpdate()
	b.AutoUpdate = bounds.Literal(auto)
	return b
}

func timeValue(lit string, rel func() int64) bounds.Value[int64] {
	if lit != "" {
		if ts, err := time.Parse(time.RFC3339, lit); err == nil {
			return bounds.Literal(ts.UnixMilli())
		}
	}
	return bounds.Provider(rel)
}

// ResolveCacheDir makes CacheDir absolute relative to the config file.
func (c *Config) ResolveCacheDir(configPath string) string {
	if filepath.IsAbs(c.CacheDir) {
		return c.CacheDir
	}
	return filepath.Join(filepath.Dir(configPath), c.CacheDir)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename. The file
// ends up with 0600 permissions; its directory is created with 0700.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tlview-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
