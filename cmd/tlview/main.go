package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"tlview/internal/capture"
	"tlview/internal/config"
	"tlview/internal/ics"
	appLog "tlview/internal/log"
	"tlview/internal/model"
	"tlview/internal/refresh"
	"tlview/internal/render"
	"tlview/internal/source"
	"tlview/internal/timeline"
	"tlview/internal/tui"
	"tlview/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	logLevel   string
	demo       bool
	tui        bool
	snapshot   string
}

func parseFlags() flagConfig {
	var cfg flagConfig

	pflag.StringVarP(&cfg.configPath, "config", "c", "/etc/tlview/config.yaml", "Path to config file")
	pflag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	pflag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	pflag.BoolVar(&cfg.demo, "demo", false, "Serve a built-in demo schedule instead of the ICS feeds")
	pflag.BoolVar(&cfg.tui, "tui", false, "Show the terminal viewer")
	pflag.StringVar(&cfg.snapshot, "snapshot", "", "Write a PNG of the timeline to this path and exit")

	pflag.Parse()
	return cfg
}

func main() {
	if err := run(parseFlags()); err != nil {
		appLog.Error("tlview failed", err)
		os.Exit(1)
	}
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	if flags.tui {
		// The terminal belongs to the viewer; keep logs next to the cache.
		logPath := filepath.Join(conf.ResolveCacheDir(flags.configPath), "tlview.log")
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			return err
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		defer f.Close()
		appLog.SetOutput(f)
	}

	loc, err := conf.Location()
	if err != nil {
		return err
	}

	appLog.Info("tlview starting",
		"version", version,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.ICS),
		"demo", flags.demo,
		"tui", flags.tui,
		"snapshot", flags.snapshot,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var src timeline.DataSource
	var icsSrc *source.ICS
	if flags.demo {
		src = source.NewMemory(source.DemoEvents(time.Now(), loc))
	} else {
		fetcher := ics.NewFetcher(filepath.Join(conf.ResolveCacheDir(flags.configPath), "ics"))
		icsSrc = source.NewICS(ctx, fetcher, source.ICSOptions{
			Feeds:     conf.Feeds(),
			Location:  loc,
			Highlight: source.Highlighter{Keywords: conf.HighlightRed, Color: "red"},
		})
		src = icsSrc
	}

	scene := render.NewScene()
	tl := timeline.New(timeline.Options{
		Bounds:   conf.Bounds(time.Now, loc),
		Source:   src,
		Renderer: scene,
		Scale:    conf.Scale(),
		Ticks:    timeline.DefaultTicks(loc),
		Click:    logClick,
		Metrics:  conf.Metrics(),
		Width:    conf.Timeline.Width,
	})
	defer func() {
		tl.Close()
		if icsSrc != nil {
			icsSrc.Wait()
		}
	}()

	if conf.RefreshCron != "" {
		sched, err := refresh.Start(conf.RefreshCron, loc, tl.Refresh)
		if err != nil {
			return err
		}
		defer sched.Stop(context.Background())
	}

	srv := web.NewServer(conf, tl, scene, loc)

	if flags.snapshot != "" {
		return snapshot(ctx, srv, conf, flags.snapshot)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(ctx) })
	if flags.tui {
		g.Go(func() error {
			defer stop()
			return tui.Run(ctx, tl, scene, tui.Options{Location: loc, Metrics: conf.Metrics()})
		})
	}
	err = g.Wait()
	appLog.Info("tlview exiting")
	return err
}

// snapshot serves the view on an ephemeral port and captures it once.
func snapshot(ctx context.Context, srv *web.Server, conf *config.Config, out string) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	hs := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go hs.Serve(ln)
	defer hs.Close()

	return capture.CaptureTimelinePNG(ctx, capture.Options{
		URL:        fmt.Sprintf("http://%s/", ln.Addr()),
		OutputPath: out,
		Width:      int(conf.Timeline.Width),
	})
}

func logClick(ev *model.Event, id string) {
	if ev == nil {
		appLog.Debug("click on unloaded event", "id", id)
		return
	}
	appLog.Info("event activated", "id", id, "title", ev.Title, "begin", ev.Begin.Time(time.UTC), "end", ev.End.Time(time.UTC))
}
