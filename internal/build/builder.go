package build

import (
	"context"
	stderrors "errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/contentforge/internal/assets"
	"git.home.luguber.info/inful/contentforge/internal/config"
	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/logfields"
	"git.home.luguber.info/inful/contentforge/internal/markdown"
	"git.home.luguber.info/inful/contentforge/internal/metrics"
	"git.home.luguber.info/inful/contentforge/internal/observability"
	"git.home.luguber.info/inful/contentforge/internal/templates"
)

// Builder executes builds for one project configuration. Builds are
// serialized: a second Build call waits for the running one.
type Builder struct {
	cfg       *config.Config
	conv      markdown.Converter
	renderer  *templates.Renderer
	recorder  metrics.Recorder
	now       func() time.Time
	assetOpts []assets.Option
	tplOpts   []templates.Option

	mu sync.Mutex
	// published holds the page fingerprints of the last promoted build.
	published map[string]string
}

// Option configures a Builder.
type Option func(*Builder)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithConverter replaces the goldmark converter used for page bodies.
func WithConverter(c markdown.Converter) Option {
	return func(b *Builder) { b.conv = c }
}

// WithClock sets the time source used for build timestamps and sitemap lastmod.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithEncoder overrides the image encoder for format.
func WithEncoder(format string, enc assets.Encoder) Option {
	return func(b *Builder) { b.assetOpts = append(b.assetOpts, assets.WithEncoder(format, enc)) }
}

// WithHelper registers an extra template helper.
func WithHelper(name string, fn any) Option {
	return func(b *Builder) { b.tplOpts = append(b.tplOpts, templates.WithHelper(name, fn)) }
}

// New creates a Builder for cfg.
func New(cfg *config.Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:      cfg,
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.conv == nil {
		b.conv = markdown.New(markdown.Options{HardWraps: cfg.Markdown.HardWraps, Unsafe: cfg.Markdown.Unsafe})
	}
	tplOpts := b.tplOpts
	if inline, ok := b.conv.(interface {
		Inline(string) (string, error)
	}); ok {
		tplOpts = append([]templates.Option{templates.WithMarkdown(inline.Inline)}, tplOpts...)
	}
	b.renderer = templates.NewRenderer(cfg.TemplatesDir(), tplOpts...)
	return b
}

// Config returns the configuration the builder was created with.
func (b *Builder) Config() *config.Config { return b.cfg }

// Build runs every stage and promotes the result. A build ID already present
// in ctx (see observability.WithBuildID) is reused; otherwise one is generated.
// On failure the previous output is left untouched and the returned error is
// classified with the failing stage in its context.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := observability.BuildID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = observability.WithBuildID(ctx, id)
	}

	start := b.now()
	res := &Result{ID: id, StartTime: start, OutputDir: b.cfg.OutputDir(), Fingerprints: map[string]string{}}
	r := &run{builder: b, result: res, buildTime: start}

	observability.InfoContext(ctx, "Build started")
	err := b.runStages(ctx, r)
	if err != nil {
		r.abort(ctx)
	}

	res.EndTime = b.now()
	res.Duration = res.EndTime.Sub(start)
	b.recorder.ObserveBuildDuration(res.Duration)

	switch {
	case err == nil:
		res.Status = StatusSuccess
		res.ChangedPages = changedPages(b.published, res.Fingerprints)
		b.published = res.Fingerprints
		b.recorder.IncBuildOutcome(metrics.ResultSuccess)
		b.recorder.SetPagesRendered(res.Pages)
		observability.InfoContext(ctx, "Build finished",
			logfields.Pages(res.Pages),
			slog.Int("changed_pages", len(res.ChangedPages)),
			logfields.Variants(len(res.Assets.Variants)),
			logfields.Duration(res.Duration))
	case isCanceled(err):
		res.Status = StatusCanceled
		b.recorder.IncBuildOutcome(metrics.ResultCanceled)
		observability.WarnContext(ctx, "Build canceled", logfields.Duration(res.Duration))
	default:
		res.Status = StatusFailed
		b.recorder.IncBuildOutcome(metrics.ResultFailed)
		observability.ErrorContext(ctx, "Build failed", logfields.Error(err), logfields.Duration(res.Duration))
	}
	return res, err
}

type stage struct {
	name string
	fn   func(context.Context) error
}

func (b *Builder) runStages(ctx context.Context, r *run) error {
	stages := []stage{
		{StageCompileTemplates, r.compileTemplates},
		{StagePrepareOutput, r.prepareOutput},
		{StageRenderPages, r.renderPages},
		{StageOptimizeAssets, r.optimizeAssets},
		{StageCopyAssets, r.copyAssets},
		{StageSEO, r.writeSEO},
		{StagePromote, r.promote},
	}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			b.recorder.IncStageResult(st.name, metrics.ResultCanceled)
			return err
		}
		stageCtx := observability.WithStage(ctx, st.name)
		started := time.Now()
		err := st.fn(stageCtx)
		elapsed := time.Since(started)
		b.recorder.ObserveStageDuration(st.name, elapsed)
		r.result.Stages = append(r.result.Stages, StageTiming{Name: st.name, Duration: elapsed})
		if err != nil {
			if isCanceled(err) {
				b.recorder.IncStageResult(st.name, metrics.ResultCanceled)
				return err
			}
			b.recorder.IncStageResult(st.name, metrics.ResultFailed)
			return stageError(st.name, err)
		}
		b.recorder.IncStageResult(st.name, metrics.ResultSuccess)
		observability.DebugContext(stageCtx, "Stage finished", logfields.Duration(elapsed))
	}
	return nil
}

// stageError attaches the stage name to err, classifying it as a build error
// when it is not already classified.
func stageError(name string, err error) error {
	if ce, ok := errors.AsClassified(err); ok {
		return ce.WithContext("stage", name)
	}
	return errors.WrapError(err, errors.CategoryBuild, "build stage failed").
		WithContext("stage", name).Build()
}

// changedPages returns the sorted URLs whose fingerprint differs between prev and cur,
// including pages present in only one of them.
func changedPages(prev, cur map[string]string) []string {
	changed := []string{}
	for url, fp := range cur {
		if old, ok := prev[url]; !ok || old != fp {
			changed = append(changed, url)
		}
	}
	for url := range prev {
		if _, ok := cur[url]; !ok {
			changed = append(changed, url)
		}
	}
	slices.Sort(changed)
	return changed
}

func isCanceled(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
