package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plancal/internal/agenda"
	"plancal/internal/civil"
	"plancal/internal/config"
	"plancal/internal/dataset"
	"plancal/internal/ics"
	appLog "plancal/internal/log"
	"plancal/internal/planner"
	"plancal/internal/refresh"
	"plancal/internal/schedule"
	"plancal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	dataPath   string
	today      string
	exportPath string
	once       bool
	showIDs    bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if level, ok := appLog.ParseLevel(conf.LogLevel); ok {
		appLog.SetLevel(level)
	}

	// CLI flags override the config file when set.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.dataPath != "" {
		conf.DataPath = flags.dataPath
	}

	appLog.Info("plancal starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"window_weeks", conf.WindowWeeks,
		"data_path", conf.DataPath,
		"refresh", conf.RefreshCron,
		"call_feeds", len(conf.CallFeeds),
		"once", flags.once,
		"export", flags.exportPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := dataset.NewStore(conf.DataPath, callSource(conf))
	if err := store.Reload(ctx); err != nil {
		if flags.once || flags.exportPath != "" {
			os.Exit(1)
		}
		appLog.Warn("starting without data; waiting for the next refresh", "data_path", conf.DataPath)
	}

	switch {
	case flags.once || flags.exportPath != "":
		today, err := resolveToday(flags.today, conf)
		if err != nil {
			appLog.Error("invalid -today", err, "today", flags.today)
			os.Exit(2)
		}
		snap, _, err := store.Snapshot()
		if err != nil {
			appLog.Error("no data loaded", err)
			os.Exit(1)
		}
		plan := planner.Build(snap, conf, today)

		if flags.exportPath != "" {
			if err := ics.WriteFile(flags.exportPath, plan.Events, ics.ExportConfig{Name: "plancal"}); err != nil {
				appLog.Error("export failed", err, "path", flags.exportPath)
				os.Exit(1)
			}
			appLog.Info("calendar exported", "path", flags.exportPath, "events", len(plan.Events))
		}
		if flags.once {
			p := agenda.New()
			p.Today = today
			p.Window = plan.Window
			p.ShowIDs = flags.showIDs
			p.Agenda(plan.Days, plan.Events)
			p.Summary(schedule.Summarize(plan.Events))
		}
		return
	}

	if err := serve(ctx, conf, store); err != nil {
		appLog.Error("server stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("plancal exiting")
}

// serve runs the HTTP API and the refresh schedule until ctx is done.
func serve(ctx context.Context, conf *config.Config, store *dataset.Store) error {
	sched, err := refresh.New(conf.RefreshCron, store, time.Minute)
	if err != nil {
		return err
	}
	sched.Start()

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, store, nil).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if err != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			sched.Stop(stopCtx)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
	sched.Stop(shutdownCtx)

	runs, failures := sched.Stats()
	appLog.Info("refresh stats", "runs", runs, "failures", failures, "last_load", store.LoadedAt().Format(time.RFC3339))
	return nil
}

// callSource turns the configured iCalendar feeds into a dataset.CallSource.
// It returns nil when no feed is configured.
func callSource(conf *config.Config) dataset.CallSource {
	feeds := make([]ics.Feed, 0, len(conf.CallFeeds))
	for _, f := range conf.CallFeeds {
		if f.URL == "" {
			continue
		}
		id := f.ID
		if id == "" {
			if f.Name != "" {
				id = f.Name
			} else {
				id = f.URL
			}
		}
		feeds = append(feeds, ics.Feed{ID: id, URL: f.URL, CallType: f.CallType})
	}
	if len(feeds) == 0 {
		return nil
	}
	client := &http.Client{Timeout: 30 * time.Second}
	return ics.NewFeedSource(ics.NewFetcher(client), feeds, conf.Location())
}

func resolveToday(raw string, conf *config.Config) (civil.Date, error) {
	if raw == "" {
		return civil.DateOf(time.Now().In(conf.Location())), nil
	}
	return civil.ParseDate(raw)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/plancal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.dataPath, "data", "", "Path to the data snapshot (overrides config if set)")
	flag.StringVar(&cfg.today, "today", "", "Anchor date YYYY-MM-DD for -once/-export (default: today)")
	flag.StringVar(&cfg.exportPath, "export", "", "Write the calendar as iCalendar to this file and exit")
	flag.BoolVar(&cfg.once, "once", false, "Print the agenda for the window and exit")
	flag.BoolVar(&cfg.showIDs, "ids", false, "Show event ids in -once output")

	flag.Parse()

	return cfg
}
