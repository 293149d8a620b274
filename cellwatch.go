package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRuggeri/cellwatch/config"
	"github.com/DRuggeri/cellwatch/handlers/eventhandler"
	"github.com/DRuggeri/cellwatch/handlers/statushandler"
	"github.com/DRuggeri/cellwatch/handlers/togglehandler"
	"github.com/DRuggeri/cellwatch/modem"
	"github.com/DRuggeri/cellwatch/observability"
	"github.com/DRuggeri/cellwatch/permissions"
	"github.com/DRuggeri/cellwatch/scanner"
	"github.com/DRuggeri/cellwatch/screens"
	"github.com/DRuggeri/cellwatch/statusinator"
	"github.com/DRuggeri/cellwatch/watchers"
	"github.com/DRuggeri/cellwatch/watchers/cells"
	"github.com/DRuggeri/cellwatch/watchers/common"
	"github.com/DRuggeri/cellwatch/watchers/device"
	"github.com/alecthomas/kingpin/v2"
)

var (
	app        = kingpin.New("cellwatch", "Serves the cellular cells a modem can see, gated by location and phone state permissions.")
	configFile = app.Flag("config", "Path to the YAML configuration file.").Short('c').Envar("CELLWATCH_CONFIG").String()
	listen     = app.Flag("listen", "Address to serve HTTP on. Overrides the configuration file.").String()
	logLevel   = app.Flag("log-level", "debug, info, warn or error. Overrides the configuration file.").String()
	fixture    = app.Flag("fixture", "Scan a YAML fixture file instead of the modem.").ExistingFile()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	lvl := &slog.LevelVar{}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Warn("failed to load config file, using defaults", "file", *configFile, "error", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *fixture != "" {
		cfg.Scanner.Mode = config.ScannerFixture
		cfg.Scanner.Fixture = *fixture
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Error("invalid log level", "error", err)
		os.Exit(1)
	}

	log.With("operation", "main").Info("starting up cellwatch", "listen", cfg.Listen, "scanner", cfg.Scanner.Mode, "permissions", cfg.Permissions.Mode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := startDaemon(ctx, cfg, log)
	if err != nil {
		log.Error("failed to start watchers", "error", err.Error())
		os.Exit(1)
	}
	log.Info("watchers initialized")

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           d.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server failed", "error", err.Error())
		os.Exit(1)
	}
	d.close()
	log.With("operation", "main").Info("shutting down")
}

type daemon struct {
	mux       *http.ServeMux
	lifecycle chan watchers.LifecycleEvent
	closers   []func() error
}

func (d *daemon) close() {
	for _, c := range d.closers {
		c()
	}
}

func newHost(cfg *config.Config, log *slog.Logger) (permissions.Host, error) {
	if cfg.Permissions.Mode == config.PermissionsFile {
		return permissions.NewFileHost(cfg.Permissions.GrantsFile, cfg.Permissions.RequestFile, cfg.Permissions.Devices, log)
	}
	if cfg.Permissions.GrantAll {
		return permissions.NewStaticHost(permissions.Required()...), nil
	}
	return permissions.NewStaticHost(), nil
}

func newScanner(cfg *config.Config, log *slog.Logger) (scanner.Scanner, func() error, error) {
	if cfg.Scanner.Mode == config.ScannerFixture {
		s, err := scanner.NewFixtureScanner(cfg.Scanner.Fixture, log)
		return s, func() error { return nil }, err
	}
	m, err := modem.NewModem(cfg.Scanner.Port, cfg.Scanner.Baud, cfg.Scanner.Timeout, log)
	if err != nil {
		return nil, nil, err
	}
	return m, m.Close, nil
}

// watchPaths adds the grant file and permission devices to the configured
// paths so that changes to either trigger a resume.
func watchPaths(cfg *config.Config) []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range cfg.WatchPaths {
		add(p)
	}
	if cfg.Permissions.Mode == config.PermissionsFile {
		add(cfg.Permissions.GrantsFile)
		for _, p := range permissions.Required() {
			add(cfg.Permissions.Devices[p])
		}
	}
	if cfg.Scanner.Mode == config.ScannerModem {
		add(cfg.Scanner.Port)
	}
	return out
}

func startDaemon(ctx context.Context, cfg *config.Config, log *slog.Logger) (*daemon, error) {
	log = log.With("operation", "startDaemon")

	host, err := newHost(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up permissions: %w", err)
	}

	sc, closeScanner, err := newScanner(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up scanner: %w", err)
	}

	collector, err := observability.NewCellCollector(nil)
	if err != nil {
		return nil, err
	}

	cellWatcher, err := cells.NewCellWatcher(ctx, host, sc, collector, log)
	if err != nil {
		return nil, err
	}

	statusWatcher, statusHandler, err := statushandler.NewStatusWatcher(ctx, log)
	if err != nil {
		return nil, err
	}
	eventWatcher, eventHandler, err := eventhandler.NewEventWatcher(ctx, log)
	if err != nil {
		return nil, err
	}
	toggleHandler, err := togglehandler.NewToggleHandler(ctx, cellWatcher, eventWatcher.BroadcastEvent, log)
	if err != nil {
		return nil, err
	}

	d := &daemon{
		lifecycle: make(chan watchers.LifecycleEvent),
		closers:   []func() error{closeScanner},
	}
	d.mux = newMux(cfg, d.lifecycle, statusHandler, eventHandler, toggleHandler, collector.Handler(), log)

	if cfg.Statusinator.Port != "" {
		s, err := statusinator.NewStatusinator(cfg.Statusinator.Port, log)
		if err != nil {
			log.Warn("statusinator unavailable - continuing without it", "port", cfg.Statusinator.Port, "error", err)
		} else {
			sStatus := make(chan common.CellStatus, 5)
			sEvents := make(chan common.Event, 5)
			statusWatcher.AddClient("statusinator", sStatus)
			eventWatcher.AddClient("statusinator", sEvents)
			go s.Watch(ctx, sStatus, sEvents)
			d.closers = append(d.closers, s.Close)
		}
	}

	statuses := make(chan common.CellStatus)
	events := make(chan common.Event)
	go cellWatcher.Watch(ctx, d.lifecycle, statuses, events)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-statuses:
				statusWatcher.UpdateStatus(s)
			case e := <-events:
				eventWatcher.BroadcastEvent(e)
			}
		}
	}()

	paths := watchPaths(cfg)
	if len(paths) > 0 {
		dWatcher, err := device.NewDeviceWatcher(ctx, paths, log)
		if err != nil {
			return nil, err
		}
		changes := make(chan device.DeviceStatus)
		go dWatcher.Watch(ctx, changes)
		go func() {
			// The first status is the starting point, not a change
			first := true
			for {
				select {
				case <-ctx.Done():
					return
				case s := <-changes:
					if first {
						first = false
						continue
					}
					log.Info("watched path changed - resuming", "paths", len(s))
					trigger(ctx, d.lifecycle, watchers.EventResume)
				}
			}
		}()
	}

	go func() {
		trigger(ctx, d.lifecycle, watchers.EventStart)

		resume := time.NewTicker(cfg.ResumeInterval)
		defer resume.Stop()
		refresh := time.NewTicker(cfg.ScanInterval)
		defer refresh.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-resume.C:
				trigger(ctx, d.lifecycle, watchers.EventResume)
			case <-refresh.C:
				trigger(ctx, d.lifecycle, watchers.EventRefresh)
			}
		}
	}()

	return d, nil
}

func trigger(ctx context.Context, lifecycle chan<- watchers.LifecycleEvent, e watchers.LifecycleEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case lifecycle <- e:
		return true
	}
}

func newMux(cfg *config.Config, lifecycle chan<- watchers.LifecycleEvent, status http.Handler, events http.Handler, toggle http.Handler, metrics http.Handler, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle(screens.Cells.Path(), status)
	mux.HandleFunc(screens.Settings.Path(), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, cfg, log)
	})
	mux.Handle("/events", events)
	mux.Handle("/cells/active", toggle)
	mux.Handle("/metrics", metrics)

	mux.HandleFunc("/resume", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "only POST is supported", http.StatusMethodNotAllowed)
			return
		}
		if !trigger(r.Context(), lifecycle, watchers.EventResume) {
			http.Error(w, "request cancelled", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("resume triggered"))
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, screens.All(), log)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any, log *slog.Logger) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error("failed to marshal response", "error", err.Error())
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}
