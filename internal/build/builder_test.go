package build

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/contentforge/internal/assets"
	"git.home.luguber.info/inful/contentforge/internal/config"
	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/metrics"
	"git.home.luguber.info/inful/contentforge/internal/observability"
)

const pageLayout = `<!doctype html>
<html><head>
{{ .Meta }}</head>
<body>{{ .Content }}</body></html>
`

const baseConfig = `
seo:
  title: Test Site
  description: Testing
  baseUrl: https://example.com
assets:
  images:
    formats: [webp]
    sizes: [320, 640]
`

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

// newProject lays out a minimal project and returns its parsed config.
func newProject(t *testing.T, extraConfig string) *config.Config {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "templates", "page.html"), pageLayout)
	writeFile(t, filepath.Join(root, "content", "about.md"), "---\ntitle: About\n---\n# Hi\n")
	cfg, err := config.Parse([]byte(baseConfig+extraConfig), root)
	require.NoError(t, err)
	return cfg
}

func stubWebP() Option {
	return WithEncoder("webp", assets.EncoderFunc(func(w io.Writer, _ image.Image, _ int) error {
		_, err := w.Write([]byte("RIFFSTUB"))
		return err
	}))
}

func newBuilder(cfg *config.Config, opts ...Option) *Builder {
	base := []Option{WithClock(func() time.Time { return fixedNow }), stubWebP()}
	return New(cfg, append(base, opts...)...)
}

func readOutput(t *testing.T, cfg *config.Config, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.OutputDir(), filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestBuild_RendersPageWithMeta(t *testing.T) {
	cfg := newProject(t, "")

	res, err := newBuilder(cfg).Build(t.Context())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.IsSuccess())
	assert.Equal(t, 1, res.Pages)
	assert.NotEmpty(t, res.ID)

	html := readOutput(t, cfg, "about.html")
	assert.Contains(t, html, "<h1>Hi</h1>")
	assert.Contains(t, html, "<title>About</title>")
	assert.Contains(t, html, `<link rel="canonical" href="https://example.com/about.html">`)

	assert.FileExists(t, filepath.Join(cfg.OutputDir(), "sitemap.xml"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir(), "robots.txt"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir(), "manifest.json"))
	assert.Contains(t, readOutput(t, cfg, "sitemap.xml"), "<loc>https://example.com/about.html</loc>")
}

func TestBuild_StagesRunInOrder(t *testing.T) {
	cfg := newProject(t, "")

	res, err := newBuilder(cfg).Build(t.Context())
	require.NoError(t, err)

	var names []string
	for _, st := range res.Stages {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{
		StageCompileTemplates, StagePrepareOutput, StageRenderPages,
		StageOptimizeAssets, StageCopyAssets, StageSEO, StagePromote,
	}, names)
}

func TestBuild_SitemapDisabled(t *testing.T) {
	cfg := newProject(t, "")
	cfg.SEO.Sitemap = false

	_, err := newBuilder(cfg).Build(t.Context())
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(cfg.OutputDir(), "sitemap.xml"))
	assert.NotContains(t, readOutput(t, cfg, "robots.txt"), "Sitemap:")
}

func TestBuild_Idempotent(t *testing.T) {
	cfg := newProject(t, "")
	b := newBuilder(cfg)

	_, err := b.Build(t.Context())
	require.NoError(t, err)
	first := map[string]string{}
	for _, rel := range []string{"about.html", "sitemap.xml", "robots.txt", "manifest.json"} {
		first[rel] = readOutput(t, cfg, rel)
	}

	_, err = b.Build(t.Context())
	require.NoError(t, err)
	for rel, want := range first {
		assert.Equal(t, want, readOutput(t, cfg, rel), rel)
	}
}

func TestBuild_ChangedPagesFollowContentFingerprints(t *testing.T) {
	cfg := newProject(t, "")
	writeFile(t, filepath.Join(cfg.SourceDir(), "index.md"), "# Home\n")
	b := newBuilder(cfg)

	res, err := b.Build(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"/about.html", "/index.html"}, res.ChangedPages)
	require.Len(t, res.Fingerprints, 2)
	assert.NotEqual(t, res.Fingerprints["/about.html"], res.Fingerprints["/index.html"])

	res, err = b.Build(t.Context())
	require.NoError(t, err)
	assert.Empty(t, res.ChangedPages)

	writeFile(t, filepath.Join(cfg.SourceDir(), "about.md"), "---\ntitle: About\n---\n# Hello\n")
	res, err = b.Build(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"/about.html"}, res.ChangedPages)

	require.NoError(t, os.Remove(filepath.Join(cfg.SourceDir(), "index.md")))
	res, err = b.Build(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"/index.html"}, res.ChangedPages)
}

func TestBuild_FailedBuildKeepsFingerprintBaseline(t *testing.T) {
	cfg := newProject(t, "")
	b := newBuilder(cfg)
	_, err := b.Build(t.Context())
	require.NoError(t, err)

	broken := filepath.Join(cfg.SourceDir(), "broken.md")
	writeFile(t, broken, "---\ntitle: [unclosed\n---\n")
	_, err = b.Build(t.Context())
	require.Error(t, err)

	require.NoError(t, os.Remove(broken))
	res, err := b.Build(t.Context())
	require.NoError(t, err)
	assert.Empty(t, res.ChangedPages)
}

func TestBuild_ReusesBuildIDFromContext(t *testing.T) {
	cfg := newProject(t, "")
	ctx := observability.WithBuildID(t.Context(), "fixed-id")

	res, err := newBuilder(cfg).Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", res.ID)
}

func TestBuild_MalformedFrontmatterKeepsPreviousOutput(t *testing.T) {
	cfg := newProject(t, "")
	b := newBuilder(cfg)
	_, err := b.Build(t.Context())
	require.NoError(t, err)
	before := readOutput(t, cfg, "about.html")

	writeFile(t, filepath.Join(cfg.SourceDir(), "broken.md"), "---\ntitle: [unclosed\n---\nbody\n")

	res, err := b.Build(t.Context())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, errors.HasCategory(err, errors.CategoryContent))

	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	stage, _ := ce.Context().GetString("stage")
	assert.Equal(t, StageRenderPages, stage)

	assert.Equal(t, before, readOutput(t, cfg, "about.html"))
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir(), "broken.html"))

	leftovers, _ := filepath.Glob(cfg.OutputDir() + ".staging-*")
	assert.Empty(t, leftovers)
	assert.NoDirExists(t, cfg.OutputDir()+".prev")
}

func TestBuild_UnknownLayout(t *testing.T) {
	cfg := newProject(t, "")
	writeFile(t, filepath.Join(cfg.SourceDir(), "post.md"), "---\nlayout: missing\n---\ntext\n")

	_, err := newBuilder(cfg).Build(t.Context())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryTemplate))
	assert.NoDirExists(t, cfg.OutputDir())
}

func TestBuild_MissingTemplatesDir(t *testing.T) {
	cfg := newProject(t, "")
	require.NoError(t, os.RemoveAll(cfg.TemplatesDir()))

	res, err := newBuilder(cfg).Build(t.Context())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Stages, 1)
	assert.Equal(t, StageCompileTemplates, res.Stages[0].Name)
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestBuild_ProcessesAndCopiesAssets(t *testing.T) {
	cfg := newProject(t, "")
	original := jpegBytes(t, 1000, 200)
	writeFile(t, filepath.Join(cfg.AssetsDir(), "images", "a.jpg"), string(original))
	writeFile(t, filepath.Join(cfg.AssetsDir(), "css", "site.css"), "body {\n  color: red;\n}\n")
	writeFile(t, filepath.Join(cfg.AssetsDir(), "fonts", "x.woff2"), "font")

	res, err := newBuilder(cfg).Build(t.Context())
	require.NoError(t, err)

	out := filepath.Join(cfg.OutputDir(), "assets")
	for _, rel := range []string{"images/a-320w.jpg", "images/a-640w.jpg", "images/a.webp", "css/site.min.css"} {
		assert.FileExists(t, filepath.Join(out, filepath.FromSlash(rel)))
	}
	assert.Equal(t, "RIFFSTUB", readOutput(t, cfg, "assets/images/a.webp"))
	assert.Equal(t, string(original), readOutput(t, cfg, "assets/images/a.jpg"))
	assert.Equal(t, "font", readOutput(t, cfg, "assets/fonts/x.woff2"))
	assert.Equal(t, 3, res.AssetsCopied)
	assert.Len(t, res.Assets.Variants, 4)

	srcEntries, err := os.ReadDir(filepath.Join(cfg.AssetsDir(), "images"))
	require.NoError(t, err)
	assert.Len(t, srcEntries, 1, "source tree must not receive variants")
}

func TestBuild_CanceledContext(t *testing.T) {
	cfg := newProject(t, "")
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	res, err := newBuilder(cfg).Build(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusCanceled, res.Status)
	assert.NoDirExists(t, cfg.OutputDir())
}

type spyRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	outcomes []metrics.ResultLabel
	stages   map[string]metrics.ResultLabel
}

func (s *spyRecorder) IncBuildOutcome(r metrics.ResultLabel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, r)
}

func (s *spyRecorder) IncStageResult(stage string, r metrics.ResultLabel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stages == nil {
		s.stages = map[string]metrics.ResultLabel{}
	}
	s.stages[stage] = r
}

func TestBuild_RecordsMetrics(t *testing.T) {
	cfg := newProject(t, "")
	spy := &spyRecorder{}
	b := newBuilder(cfg, WithRecorder(spy))

	_, err := b.Build(t.Context())
	require.NoError(t, err)

	writeFile(t, filepath.Join(cfg.SourceDir(), "broken.md"), "---\ntitle: x\n")
	_, err = b.Build(t.Context())
	require.Error(t, err)

	assert.Equal(t, []metrics.ResultLabel{metrics.ResultSuccess, metrics.ResultFailed}, spy.outcomes)
	assert.Equal(t, metrics.ResultFailed, spy.stages[StageRenderPages])
	assert.Equal(t, metrics.ResultSuccess, spy.stages[StageCompileTemplates])
}

func TestPromoteStaging_FirstBuild(t *testing.T) {
	root := t.TempDir()
	staging := filepath.Join(root, "dist.staging-1")
	writeFile(t, filepath.Join(staging, "index.html"), "new")

	require.NoError(t, promoteStaging(staging, filepath.Join(root, "dist")))

	data, err := os.ReadFile(filepath.Join(root, "dist", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.NoDirExists(t, staging)
}

func TestPromoteStaging_ReplacesOutput(t *testing.T) {
	root := t.TempDir()
	output := filepath.Join(root, "dist")
	writeFile(t, filepath.Join(output, "old.html"), "old")
	writeFile(t, filepath.Join(output+".prev", "stale.html"), "stale")
	staging := filepath.Join(root, "dist.staging-2")
	writeFile(t, filepath.Join(staging, "index.html"), "new")

	require.NoError(t, promoteStaging(staging, output))

	assert.FileExists(t, filepath.Join(output, "index.html"))
	assert.NoFileExists(t, filepath.Join(output, "old.html"))
	assert.NoDirExists(t, output+".prev")
}
