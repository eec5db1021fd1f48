package build

import (
	"time"

	"git.home.luguber.info/inful/contentforge/internal/assets"
)

// Stage names, in execution order.
const (
	StageCompileTemplates = "compile_templates"
	StagePrepareOutput    = "prepare_output"
	StageRenderPages      = "render_pages"
	StageOptimizeAssets   = "optimize_assets"
	StageCopyAssets       = "copy_assets"
	StageSEO              = "seo"
	StagePromote          = "promote"
)

// Status represents the outcome of a build.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// StageTiming records how long one stage ran.
type StageTiming struct {
	Name     string
	Duration time.Duration
}

// Result describes a finished build. It is returned for failed builds too,
// with Status set and the stages that ran so far.
type Result struct {
	ID        string
	Status    Status
	OutputDir string

	Pages int

	// Fingerprints maps each rendered page URL to its content fingerprint.
	Fingerprints map[string]string
	// ChangedPages lists, sorted, the URLs added, edited or removed since the
	// previous successful build of the same Builder. On a first build every page
	// is listed.
	ChangedPages []string

	Assets       assets.Report
	AssetsCopied int

	Stages    []StageTiming
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// IsSuccess reports whether the build was promoted.
func (r *Result) IsSuccess() bool { return r != nil && r.Status == StatusSuccess }
