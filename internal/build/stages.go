package build

import (
	"context"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/contentforge/internal/assets"
	"git.home.luguber.info/inful/contentforge/internal/content"
	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/logfields"
	"git.home.luguber.info/inful/contentforge/internal/observability"
	"git.home.luguber.info/inful/contentforge/internal/seo"
	"git.home.luguber.info/inful/contentforge/internal/templates"
)

// assetsDir is the output subdirectory receiving processed and copied assets.
const assetsDir = "assets"

// run holds the state of a single build.
type run struct {
	builder   *Builder
	result    *Result
	buildTime time.Time

	staging string
	seo     *seo.Generator
	pages   []*content.Page
}

func (r *run) compileTemplates(ctx context.Context) error {
	if err := r.builder.renderer.Load(); err != nil {
		return err
	}
	observability.DebugContext(ctx, "Compiled layouts", logfields.Template(strings.Join(r.builder.renderer.Names(), ",")))
	return nil
}

func (r *run) prepareOutput(ctx context.Context) error {
	output := r.builder.cfg.OutputDir()
	removeStaleStaging(ctx, output)

	r.staging = stagingDir(output, r.result.ID)
	if err := os.MkdirAll(r.staging, 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create staging directory").
			WithContext("path", r.staging).Build()
	}
	r.seo = seo.New(r.builder.cfg.SEO, r.staging)
	observability.DebugContext(ctx, "Prepared staging directory", logfields.Path(r.staging))
	return nil
}

func (r *run) renderPages(ctx context.Context) error {
	cfg := r.builder.cfg
	site := templates.SiteData{
		Title:       cfg.SEO.Title,
		Description: cfg.SEO.Description,
		BaseURL:     cfg.SEO.BaseURL,
	}

	loader := content.NewLoader(cfg.SourceDir(), r.builder.conv)
	for page, err := range loader.Stream(ctx).All() {
		if err != nil {
			return err
		}
		layout := page.Layout(cfg.Content.DefaultLayout)
		html, err := r.builder.renderer.Render(layout, templates.PageData{
			Title:     page.Title(cfg.SEO.Title),
			URL:       page.URL,
			Content:   template.HTML(page.RenderedBody), //nolint:gosec // rendered by the markdown converter
			Meta:      template.HTML(r.seo.MetaTags(page)), //nolint:gosec // values escaped by MetaTags
			Params:    page.Frontmatter.Map(),
			Site:      site,
			Page:      page,
			BuildTime: r.buildTime,
		})
		if err != nil {
			if ce, ok := errors.AsClassified(err); ok {
				return ce.WithContext("path", page.SourcePath)
			}
			return err
		}
		if err := r.write(page.OutputPath, []byte(html)); err != nil {
			return err
		}
		r.pages = append(r.pages, page)
		r.result.Fingerprints[page.URL] = page.Fingerprint
	}
	r.result.Pages = len(r.pages)
	observability.InfoContext(ctx, "Rendered pages", logfields.Pages(len(r.pages)))
	return nil
}

func (r *run) optimizeAssets(ctx context.Context) error {
	cfg := r.builder.cfg
	pipeline := assets.NewPipeline(cfg.Assets, cfg.AssetsDir(), filepath.Join(r.staging, assetsDir), r.builder.assetOpts...)
	report, err := pipeline.Run(ctx)
	r.result.Assets = report

	counts := map[assets.Kind]int{}
	for _, v := range report.Variants {
		counts[v.Kind]++
	}
	for kind, n := range counts {
		r.builder.recorder.AddAssetVariants(string(kind), n)
	}
	if len(report.Failures) > 0 {
		r.builder.recorder.IncAssetFailures(len(report.Failures))
	}
	return err
}

// copyAssets mirrors every source asset into the output. Files already
// written by the optimizer are left as they are.
func (r *run) copyAssets(ctx context.Context) error {
	src := r.builder.cfg.AssetsDir()
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dst := filepath.Join(r.staging, assetsDir)
	produced := r.result.Assets.Outputs()

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != src && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if _, ok := produced[filepath.ToSlash(rel)]; ok {
			return nil
		}
		target := filepath.Join(dst, rel)
		if _, err := os.Stat(target); err == nil {
			return nil
		}
		if err := copyFile(path, target); err != nil {
			return err
		}
		r.result.AssetsCopied++
		return nil
	})
	if err != nil && !isCanceled(err) {
		if _, ok := errors.AsClassified(err); !ok {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to copy assets").
				WithContext("path", src).Build()
		}
	}
	return err
}

func (r *run) writeSEO(_ context.Context) error {
	return r.seo.Generate(r.pages, r.buildTime)
}

func (r *run) promote(ctx context.Context) error {
	if err := promoteStaging(r.staging, r.builder.cfg.OutputDir()); err != nil {
		return err
	}
	observability.InfoContext(ctx, "Promoted staging directory", logfields.Path(r.builder.cfg.OutputDir()))
	r.staging = ""
	return nil
}

// abort removes the staging directory of a failed build.
func (r *run) abort(ctx context.Context) {
	if r.staging == "" {
		return
	}
	if err := os.RemoveAll(r.staging); err != nil {
		observability.WarnContext(ctx, "Failed to remove staging directory", logfields.Path(r.staging), logfields.Error(err))
	}
	r.staging = ""
}

func (r *run) write(rel string, data []byte) error {
	target := filepath.Join(r.staging, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output directory").
			WithContext("path", filepath.Dir(target)).Build()
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write page").
			WithContext("path", target).Build()
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
