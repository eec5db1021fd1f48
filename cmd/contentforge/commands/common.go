// Package commands implements the contentforge CLI subcommands.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/contentforge/internal/config"
)

// EnvLogLevel overrides the log level chosen by flags and config.
const EnvLogLevel = "CONTENTFORGE_LOG_LEVEL"

// Global holds state shared by all commands.
type Global struct {
	Logger *slog.Logger
	// Out receives user-facing output. Nil means stdout.
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI is the root command.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"contentforge.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build BuildCmd `cmd:"" help:"Build the site once"`
	Serve ServeCmd `cmd:"" help:"Serve the built output"`
	Dev   DevCmd   `cmd:"" help:"Build, serve and rebuild on change with live reload"`
	Init  InitCmd  `cmd:"" help:"Create a starter configuration and project tree"`
}

// AfterApply installs the default logger once flags are parsed.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	if env := os.Getenv(EnvLogLevel); env != "" {
		level = slogLevel(config.NormalizeLogLevel(env))
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig loads the configured file and refines logging from its logging
// section. The -v flag and the environment override take precedence.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	logger := configureLogging(os.Stderr, cfg.Logging, c.Verbose)
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return cfg, nil
}

func configureLogging(w io.Writer, lc config.LoggingConfig, verbose bool) *slog.Logger {
	level := slogLevel(config.NormalizeLogLevel(string(lc.Level)))
	if verbose {
		level = slog.LevelDebug
	}
	if env := os.Getenv(EnvLogLevel); env != "" {
		level = slogLevel(config.NormalizeLogLevel(env))
	}

	opts := &slog.HandlerOptions{Level: level}
	if config.NormalizeLogFormat(string(lc.Format)) == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
