package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/contentforge/internal/build"
	"git.home.luguber.info/inful/contentforge/internal/buildlog"
	"git.home.luguber.info/inful/contentforge/internal/config"
	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/logfields"
	"git.home.luguber.info/inful/contentforge/internal/metrics"
	"git.home.luguber.info/inful/contentforge/internal/preview"
	"git.home.luguber.info/inful/contentforge/internal/watch"
)

const shutdownTimeout = 5 * time.Second

// DevCmd builds the site, serves it with live reload and rebuilds on change.
type DevCmd struct {
	Port int `short:"p" help:"Preview server port (overrides dev.port)"`
}

func (d *DevCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	cfg, err = cfg.WithPort(d.Port)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	return runDev(ctx, cfg, devOptions{watch: cfg.Dev.Watch, out: g.out(), logger: g.Logger})
}

type devOptions struct {
	watch  bool
	out    io.Writer
	logger *slog.Logger
	// initialBuilt is called after the initial build, before the watch loop starts.
	initialBuilt func()
	// ready is called once the preview server is listening.
	ready func(url string)
}

// runDev runs the dev loop until ctx is canceled or the server fails.
func runDev(ctx context.Context, cfg *config.Config, opts devOptions) error {
	logger := opts.logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := metrics.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	store, err := buildlog.Open(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	builder := buildlog.Track(build.New(cfg, build.WithRecorder(recorder)), store)

	// The watcher starts before the initial build so edits made while it runs
	// are queued for the coordinator.
	var src *watch.FSSource
	if opts.watch {
		src, err = watch.NewFSSource([]string{cfg.SourceDir(), cfg.TemplatesDir(), cfg.AssetsDir()}, cfg.OutputDir())
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()
	}

	if res, buildErr := builder.Build(ctx); buildErr != nil {
		logger.Error("Initial build failed; serving previous output", logfields.Error(buildErr))
	} else {
		printSummary(opts.out, res)
	}
	if opts.initialBuilt != nil {
		opts.initialBuilt()
	}

	hub := preview.NewHub(recorder)
	srv := preview.NewServer(cfg.OutputDir(), cfg.Dev.Port,
		preview.WithHub(hub),
		preview.WithMetrics(reg),
		preview.WithHistory(store),
		preview.WithLogger(logger),
	)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer stopServer(srv, logger)
	_, _ = fmt.Fprintf(opts.out, "Serving %s at %s\n", cfg.OutputDir(), srv.URL())

	watchDone := make(chan error, 1)
	if src != nil {
		coord := watch.NewCoordinator(builder, hub, watch.Config{Debounce: cfg.Dev.Debounce, Recorder: recorder})
		go func() { watchDone <- coord.Run(ctx, src) }()
		logger.Info("Watching for changes", logfields.Path(cfg.SourceDir()), slog.Duration("debounce", cfg.Dev.Debounce))
	} else {
		close(watchDone)
	}

	if opts.ready != nil {
		opts.ready(srv.URL())
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err, ok := <-srv.Done():
		if ok && err != nil {
			runErr = errors.WrapError(err, errors.CategoryServer, "preview server failed").Build()
		}
	}

	cancel()
	if err := <-watchDone; err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func stopServer(srv *preview.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("Preview server shutdown incomplete", logfields.Error(err))
	}
}
