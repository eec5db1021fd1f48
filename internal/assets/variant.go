// Package assets derives optimized variants of images, stylesheets and scripts.
package assets

import (
	"log/slog"

	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/logfields"
)

// Kind is the transformation a variant was produced by.
type Kind string

const (
	KindResize   Kind = "resize"
	KindReformat Kind = "reformat"
	KindMinify   Kind = "minify"
)

// Variant is one derived asset. Paths are slash-separated; Source is relative to the
// assets directory and OutputPath to the pipeline's output directory.
type Variant struct {
	Source     string
	Kind       Kind
	Width      int    // resize only
	Format     string // reformat only
	OutputPath string
}

// Failure records one asset that could not be processed.
type Failure struct {
	Source string
	Err    error
}

// Report collects the outcome of one pipeline run.
type Report struct {
	Variants []Variant
	Failures []Failure
}

// Merge appends other's variants and failures.
func (r *Report) Merge(other Report) {
	r.Variants = append(r.Variants, other.Variants...)
	r.Failures = append(r.Failures, other.Failures...)
}

// Outputs returns the set of output paths produced.
func (r *Report) Outputs() map[string]struct{} {
	out := make(map[string]struct{}, len(r.Variants))
	for _, v := range r.Variants {
		out[v.OutputPath] = struct{}{}
	}
	return out
}

func (r *Report) fail(source string, stage string, cause error) {
	err := errors.WrapError(cause, errors.CategoryAsset, "asset processing failed").
		WithSeverity(errors.SeverityWarning).
		WithContext("path", source).
		WithContext("stage", stage).
		Build()
	slog.Warn("Skipping asset", logfields.Path(source), logfields.Stage(stage), logfields.Error(err))
	r.Failures = append(r.Failures, Failure{Source: source, Err: err})
}
