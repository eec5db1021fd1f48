package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/contentforge/internal/build"
	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/logfields"
	"git.home.luguber.info/inful/contentforge/internal/metrics"
	"git.home.luguber.info/inful/contentforge/internal/observability"
)

// Builder runs one full build.
type Builder interface {
	Build(ctx context.Context) (*build.Result, error)
}

// Notifier is told about every successful build.
type Notifier interface {
	NotifyBuildFinished(ctx context.Context, res *build.Result)
}

// Op classifies a change event.
type Op string

const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpRename Op = "rename"
)

// Event is a single relevant file change.
type Event struct {
	Path string
	Op   Op
}

// Source delivers change events. The coordinator stops when Events is closed.
type Source interface {
	Events() <-chan Event
	Errors() <-chan error
}

// Config tunes a Coordinator.
type Config struct {
	// Debounce is the settle window after the last change.
	Debounce time.Duration
	Recorder metrics.Recorder
}

// Coordinator serializes rebuilds triggered by a Source.
type Coordinator struct {
	builder  Builder
	notifier Notifier
	debounce time.Duration
	recorder metrics.Recorder

	mu       sync.Mutex
	snapshot Snapshot
}

type buildOutcome struct {
	res *build.Result
	err error
}

// NewCoordinator creates a coordinator. notifier may be nil.
func NewCoordinator(builder Builder, notifier Notifier, cfg Config) *Coordinator {
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}
	return &Coordinator{
		builder:  builder,
		notifier: notifier,
		debounce: cfg.Debounce,
		recorder: cfg.Recorder,
	}
}

// State returns the machine state as of the last transition.
func (c *Coordinator) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Run consumes src until ctx is canceled or the source is exhausted. Build
// failures are logged and the loop keeps running. Before returning, Run waits
// for an in-flight build to finish.
func (c *Coordinator) Run(ctx context.Context, src Source) error {
	var m Machine
	timer := time.NewTimer(c.debounce)
	timer.Stop()
	defer timer.Stop()

	done := make(chan buildOutcome, 1)
	building := false
	events := src.Events()
	errs := src.Errors()

	apply := func(a Action) {
		c.publish(m.Snapshot())
		switch a {
		case ActionArmTimer:
			timer.Reset(c.debounce)
		case ActionStartBuild:
			building = true
			c.recorder.IncRebuildTrigger()
			go c.runBuild(ctx, done)
		}
	}

	for {
		select {
		case <-ctx.Done():
			c.drain(building, done)
			return nil

		case ev, ok := <-events:
			if !ok {
				c.drain(building, done)
				return nil
			}
			c.recorder.IncWatchEvent(string(ev.Op))
			observability.DebugContext(ctx, "File change detected", logfields.Path(ev.Path), logfields.Event(string(ev.Op)))
			apply(m.Change())

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			werr := errors.WrapError(err, errors.CategoryWatcher, "file watcher error").Warning().Build()
			observability.WarnContext(ctx, "Watcher error", logfields.Error(werr))

		case <-timer.C:
			apply(m.TimerFired())

		case out := <-done:
			building = false
			c.finish(ctx, out)
			apply(m.BuildDone())
		}
	}
}

func (c *Coordinator) runBuild(ctx context.Context, done chan<- buildOutcome) {
	ctx = observability.WithBuildID(ctx, uuid.NewString())
	observability.InfoContext(ctx, "Change detected; rebuilding site")
	res, err := c.builder.Build(ctx)
	done <- buildOutcome{res: res, err: err}
}

func (c *Coordinator) finish(ctx context.Context, out buildOutcome) {
	if out.err != nil {
		attrs := []slog.Attr{logfields.Error(out.err)}
		if out.res != nil {
			attrs = append(attrs, logfields.BuildID(out.res.ID))
		}
		observability.ErrorContext(ctx, "Rebuild failed; serving previous output", attrs...)
		return
	}
	if c.notifier != nil {
		c.notifier.NotifyBuildFinished(ctx, out.res)
	}
}

// drain waits for the in-flight build, if any.
func (c *Coordinator) drain(building bool, done <-chan buildOutcome) {
	if !building {
		return
	}
	out := <-done
	if out.err != nil {
		observability.WarnContext(context.Background(), "Build interrupted by shutdown", logfields.Error(out.err))
	}
}

func (c *Coordinator) publish(s Snapshot) {
	c.mu.Lock()
	c.snapshot = s
	c.mu.Unlock()
}
