package buildlog

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/contentforge/internal/build"
	"git.home.luguber.info/inful/contentforge/internal/logfields"
	"git.home.luguber.info/inful/contentforge/internal/observability"
)

// Builder is the build capability being tracked.
type Builder interface {
	Build(ctx context.Context) (*build.Result, error)
}

// Tracked records a started event and a terminal event around every build.
// History write failures are logged and never fail the build.
type Tracked struct {
	next  Builder
	store *Store
}

// Track decorates b so every build is recorded in store.
func Track(b Builder, store *Store) *Tracked {
	return &Tracked{next: b, store: store}
}

// Build assigns a build ID, records the start, runs the wrapped builder and
// records its outcome.
func (t *Tracked) Build(ctx context.Context) (*build.Result, error) {
	id := observability.BuildID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = observability.WithBuildID(ctx, id)
	}

	// History writes use a context that survives cancellation of the build.
	storeCtx := context.WithoutCancel(ctx)
	if err := t.store.Append(storeCtx, id, EventStarted, nil); err != nil {
		slog.Warn("Failed to record build start", logfields.BuildID(id), logfields.Error(err))
	}

	res, err := t.next.Build(ctx)

	typ, out := summarize(res, err)
	if appendErr := t.store.Append(storeCtx, id, typ, out); appendErr != nil {
		slog.Warn("Failed to record build outcome", logfields.BuildID(id), logfields.Error(appendErr))
	}
	return res, err
}

func summarize(res *build.Result, err error) (EventType, outcome) {
	var out outcome
	if res != nil {
		out.DurationMS = res.Duration.Milliseconds()
		out.Pages = res.Pages
		out.Variants = len(res.Assets.Variants)
		out.AssetFailures = len(res.Assets.Failures)
		out.ChangedPages = res.ChangedPages
	}
	if err != nil {
		out.Error = err.Error()
	}
	switch {
	case err == nil:
		return EventSucceeded, out
	case res != nil && res.Status == build.StatusCanceled:
		return EventCanceled, out
	default:
		return EventFailed, out
	}
}
