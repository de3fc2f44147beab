package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oxifinch/dayblazer-calendar/internal/cache"
	"github.com/oxifinch/dayblazer-calendar/internal/capture"
	"github.com/oxifinch/dayblazer-calendar/internal/config"
	"github.com/oxifinch/dayblazer-calendar/internal/convert"
	"github.com/oxifinch/dayblazer-calendar/internal/feed"
	"github.com/oxifinch/dayblazer-calendar/internal/ics"
	appLog "github.com/oxifinch/dayblazer-calendar/internal/log"
	"github.com/oxifinch/dayblazer-calendar/internal/notify"
	"github.com/oxifinch/dayblazer-calendar/internal/planner"
	"github.com/oxifinch/dayblazer-calendar/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	snapshot   bool
}

func main() {
	appLog.Info("dayblazer starting", "version", "0.1.0")

	flags := parseFlags()
	defer appLog.Sync()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.SetLevel(levelFromString(conf.LogLevel))
	loc := resolveLocation(conf.Timezone)

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"data_dir", conf.DataDir,
		"source_count", len(conf.Sources),
		"snapshot", conf.Snapshot.Enabled,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	store, err := cache.Open(conf.CachePath())
	if err != nil {
		// A broken cache only costs revalidation; fetching still works.
		appLog.Error("feed cache unavailable, continuing without it", err, "path", conf.CachePath())
		store = nil
	} else {
		defer store.Close()
	}

	sources := buildSources(conf, store, loc)

	var notifier planner.Notifier
	if conf.AMQP != nil {
		pub := notify.New(*conf.AMQP)
		if err := pub.Connect(); err != nil {
			appLog.Error("AMQP connect failed, reminder notifications disabled", err)
		} else {
			defer pub.Close()
			notifier = pub
		}
	}

	p := planner.New(loc, sources, notifier)

	if err := p.Refresh(ctx); err != nil {
		appLog.Error("initial refresh failed", err)
	}

	server := web.NewServer(conf, loc, p)
	httpSrv := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}

	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			cancel()
		}
	}()

	if flags.once {
		if flags.snapshot || conf.Snapshot.Enabled {
			runSnapshot(ctx, conf)
		}
		shutdownHTTP(httpSrv)
		appLog.Info("single run complete, exiting")
		return
	}

	// First snapshot right after startup so /preview.png has something to
	// serve before the first cron tick.
	if conf.Snapshot.Enabled {
		go runSnapshot(ctx, conf)
	}

	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		if err := p.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
			return
		}
		if conf.Snapshot.Enabled {
			runSnapshot(ctx, conf)
		}
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()

	<-ctx.Done()

	// Let a running refresh finish before tearing the server down.
	<-c.Stop().Done()
	shutdownHTTP(httpSrv)

	appLog.Info("dayblazer exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/dayblazer/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh cycle (plus snapshot if enabled) and exit")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "With -once, capture the widget page even when snapshots are disabled in config")

	flag.Parse()

	return cfg
}

func levelFromString(s string) appLog.Level {
	switch s {
	case "debug":
		return appLog.LevelDebug
	case "error":
		return appLog.LevelError
	default:
		return appLog.LevelInfo
	}
}

func resolveLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone, falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

// buildSources turns the configured feeds into planner sources, all sharing
// one caching fetcher.
func buildSources(conf *config.Config, store *cache.Store, loc *time.Location) []planner.Source {
	fetcher := feed.NewFetcher(store)

	sources := make([]planner.Source, 0, len(conf.Sources))
	for _, sc := range conf.Sources {
		if sc.URL == "" {
			appLog.Info("skipping source without URL", "id", sc.ID)
			continue
		}
		var decode feed.DecodeFunc
		switch sc.Type {
		case config.SourceICS:
			decode = ics.NewImporter(sc.ID, loc, conf.HorizonDays).Decode
		default:
			decode = feed.DecodeJSON
		}
		sources = append(sources, feed.NewSource(sc.ID, sc.Name, sc.URL, fetcher, decode))
	}
	return sources
}

// runSnapshot captures the widget page to preview.png and derives the
// preview-small.png thumbnail. With no explicit snapshot URL the local
// server is captured; basic auth credentials are embedded in that URL so
// Chromium can authenticate the page and its API calls.
func runSnapshot(ctx context.Context, conf *config.Config) {
	target := conf.Snapshot.URL
	if target == "" {
		if !waitForServer(conf.Listen, 5*time.Second) {
			appLog.Error("snapshot skipped", errors.New("local server not reachable"), "listen", conf.Listen)
			return
		}
		u := url.URL{Scheme: "http", Host: conf.Listen, Path: "/"}
		if conf.BasicAuth != nil && conf.BasicAuth.Username != "" {
			u.User = url.UserPassword(conf.BasicAuth.Username, conf.BasicAuth.Password)
		}
		target = u.String()
	}

	previewPath := filepath.Join(conf.DataDir, "preview.png")
	err := capture.WidgetPNG(ctx, capture.Options{
		URL:        target,
		OutputPath: previewPath,
		Width:      conf.Snapshot.Width,
		Height:     conf.Snapshot.Height,
	})
	if err != nil {
		appLog.Error("widget capture failed", err)
		return
	}

	thumbPath := filepath.Join(conf.DataDir, "preview-small.png")
	if err := convert.ThumbnailFile(previewPath, thumbPath, 320, 220); err != nil {
		appLog.Error("thumbnail generation failed", err, "src", previewPath)
		return
	}

	appLog.Info("snapshot updated", "preview", previewPath, "thumbnail", thumbPath)
}

// waitForServer polls /health until the local server answers. /health is
// exempt from basic auth, so the probe needs no credentials.
func waitForServer(addr string, timeout time.Duration) bool {
	healthURL := "http://" + addr + "/health"
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(healthURL)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

func shutdownHTTP(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}
}
