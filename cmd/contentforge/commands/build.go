package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"git.home.luguber.info/inful/contentforge/internal/build"
	"git.home.luguber.info/inful/contentforge/internal/buildlog"
	"git.home.luguber.info/inful/contentforge/internal/config"
)

// BuildCmd runs one full build.
type BuildCmd struct{}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	return runBuild(ctx, cfg, g.out())
}

func runBuild(ctx context.Context, cfg *config.Config, out io.Writer) error {
	var builder buildlog.Builder = build.New(cfg)

	// Persistent history is opt-in; an in-memory log would be discarded on exit.
	if path := cfg.HistoryPath(); path != "" {
		store, err := buildlog.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		builder = buildlog.Track(builder, store)
	}

	res, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	printSummary(out, res)
	return nil
}

func printSummary(out io.Writer, res *build.Result) {
	_, _ = fmt.Fprintf(out, "Built %d pages into %s in %s\n", res.Pages, res.OutputDir, res.Duration.Round(time.Millisecond))
	if n := len(res.Assets.Variants); n > 0 {
		_, _ = fmt.Fprintf(out, "  %d asset variants generated\n", n)
	}
	if n := len(res.Assets.Failures); n > 0 {
		_, _ = fmt.Fprintf(out, "  %d asset variants failed (see log)\n", n)
	}
	if res.AssetsCopied > 0 {
		_, _ = fmt.Fprintf(out, "  %d assets copied\n", res.AssetsCopied)
	}
}
