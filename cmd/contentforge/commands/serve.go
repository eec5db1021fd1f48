package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/contentforge/internal/config"
	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/preview"
)

// ServeCmd serves the existing output directory.
type ServeCmd struct {
	Port  int  `short:"p" help:"Preview server port (overrides dev.port)"`
	Watch bool `help:"Rebuild on change and live-reload browsers (same as dev)"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	cfg, err = cfg.WithPort(s.Port)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	if s.Watch {
		return runDev(ctx, cfg, devOptions{watch: true, out: g.out(), logger: g.Logger})
	}
	return runServe(ctx, cfg, g.out(), g.Logger, nil)
}

func runServe(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger, ready func(string)) error {
	if logger == nil {
		logger = slog.Default()
	}
	dir := cfg.OutputDir()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return errors.FileSystemError("output directory not found; run `contentforge build` first").
			WithContext("path", dir).Build()
	}

	srv := preview.NewServer(dir, cfg.Dev.Port, preview.WithLogger(logger))
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer stopServer(srv, logger)
	_, _ = fmt.Fprintf(out, "Serving %s at %s\n", dir, srv.URL())
	if ready != nil {
		ready(srv.URL())
	}

	select {
	case <-ctx.Done():
		return nil
	case err, ok := <-srv.Done():
		if ok && err != nil {
			return errors.WrapError(err, errors.CategoryServer, "preview server failed").Build()
		}
		return nil
	}
}
