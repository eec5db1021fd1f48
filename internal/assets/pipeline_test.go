package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/contentforge/internal/config"
	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: 80, B: 160, A: 255})
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(w, h), &jpeg.Options{Quality: 90}))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return buf.Bytes()
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

// stubEncoder records calls and writes a marker instead of real image data.
type stubEncoder struct {
	calls int
}

func (s *stubEncoder) Encode(w io.Writer, img image.Image, quality int) error {
	s.calls++
	_, err := w.Write([]byte("STUB"))
	return err
}

func assetsConfig(sizes []int, formats ...config.ImageFormat) config.AssetsConfig {
	return config.AssetsConfig{
		Images: config.ImagesConfig{Quality: 80, Sizes: sizes, Formats: formats},
		CSS:    config.MinifyConfig{Minify: true},
		JS:     config.MinifyConfig{Minify: true},
	}
}

func decodeWidth(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width
}

func TestOptimizeImages_ResponsiveVariants(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	original := writeJPEG(t, filepath.Join(src, "images", "a.jpg"), 1000, 20)
	webp := &stubEncoder{}

	p := NewPipeline(assetsConfig([]int{320, 640}, config.ImageFormatWebP), src, out, WithEncoder("webp", webp))
	report, err := p.OptimizeImages(t.Context())
	require.NoError(t, err)
	require.Empty(t, report.Failures)

	var outputs []string
	for _, v := range report.Variants {
		outputs = append(outputs, v.OutputPath)
	}
	assert.Equal(t, []string{"images/a-320w.jpg", "images/a-640w.jpg", "images/a.webp"}, outputs)
	assert.Equal(t, 320, decodeWidth(t, filepath.Join(out, "images", "a-320w.jpg")))
	assert.Equal(t, 640, decodeWidth(t, filepath.Join(out, "images", "a-640w.jpg")))
	assert.Equal(t, 1, webp.calls)

	after, err := os.ReadFile(filepath.Join(src, "images", "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, original, after)
	entries, err := os.ReadDir(filepath.Join(src, "images"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOptimizeImages_SkipsSizesNotSmallerThanImage(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeJPEG(t, filepath.Join(src, "images", "small.jpg"), 400, 10)

	p := NewPipeline(assetsConfig([]int{320, 400, 640}), src, out)
	report, err := p.OptimizeImages(t.Context())
	require.NoError(t, err)
	require.Len(t, report.Variants, 1)
	assert.Equal(t, KindResize, report.Variants[0].Kind)
	assert.Equal(t, 320, report.Variants[0].Width)
}

func TestOptimizeImages_NestedAndFormats(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(50, 50)))
	writeFile(t, filepath.Join(src, "images", "icons", "logo.png"), buf.String())
	writeFile(t, filepath.Join(src, "images", "readme.txt"), "not an image")

	webp, avif := &stubEncoder{}, &stubEncoder{}
	p := NewPipeline(assetsConfig([]int{320}, config.ImageFormatWebP, config.ImageFormatAVIF), src, out,
		WithEncoder("webp", webp), WithEncoder("avif", avif))
	report, err := p.OptimizeImages(t.Context())
	require.NoError(t, err)

	require.Len(t, report.Variants, 2)
	assert.Equal(t, "images/icons/logo.webp", report.Variants[0].OutputPath)
	assert.Equal(t, "images/icons/logo.avif", report.Variants[1].OutputPath)
	assert.FileExists(t, filepath.Join(out, "images", "icons", "logo.avif"))
	assert.NoFileExists(t, filepath.Join(out, "images", "readme.txt"))
}

func TestOptimizeImages_CorruptImageIsSkipped(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(src, "images", "a-broken.jpg"), "definitely not a jpeg")
	writeJPEG(t, filepath.Join(src, "images", "b.jpg"), 800, 10)

	p := NewPipeline(assetsConfig([]int{320}), src, out)
	report, err := p.OptimizeImages(t.Context())
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "images/a-broken.jpg", report.Failures[0].Source)
	assert.True(t, errors.HasCategory(report.Failures[0].Err, errors.CategoryAsset))
	require.Len(t, report.Variants, 1)
	assert.Equal(t, "images/b-320w.jpg", report.Variants[0].OutputPath)
}

func TestOptimizeImages_EncoderFailureIsSkipped(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeJPEG(t, filepath.Join(src, "images", "a.jpg"), 100, 10)
	writeJPEG(t, filepath.Join(src, "images", "b.jpg"), 100, 10)

	failing := EncoderFunc(func(io.Writer, image.Image, int) error { return assert.AnError })
	p := NewPipeline(assetsConfig(nil, config.ImageFormatAVIF), src, out, WithEncoder("avif", failing))
	report, err := p.OptimizeImages(t.Context())
	require.NoError(t, err)
	assert.Len(t, report.Failures, 2)
	assert.Empty(t, report.Variants)
}

func TestOptimizeImages_SameStemDifferentFormatsCollide(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeJPEG(t, filepath.Join(src, "images", "a.jpg"), 100, 10)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(100, 10)))
	writeFile(t, filepath.Join(src, "images", "a.png"), buf.String())

	webp := &stubEncoder{}
	p := NewPipeline(assetsConfig(nil, config.ImageFormatWebP), src, out, WithEncoder("webp", webp))
	report, err := p.OptimizeImages(t.Context())
	require.NoError(t, err)

	require.Len(t, report.Variants, 1)
	assert.Equal(t, "images/a.jpg", report.Variants[0].Source)
	assert.Equal(t, "images/a.webp", report.Variants[0].OutputPath)
	assert.Equal(t, 1, webp.calls)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "images/a.png", report.Failures[0].Source)
	assert.True(t, errors.HasCategory(report.Failures[0].Err, errors.CategoryAsset))
	assert.Contains(t, report.Failures[0].Err.Error(), "images/a.jpg")
}

func TestOptimizeImages_OutputMatchingSourceAssetIsSkipped(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeJPEG(t, filepath.Join(src, "images", "hero.jpg"), 100, 10)
	writeFile(t, filepath.Join(src, "images", "hero.webp"), "hand-made webp")

	webp := &stubEncoder{}
	p := NewPipeline(assetsConfig(nil, config.ImageFormatWebP), src, out, WithEncoder("webp", webp))
	report, err := p.OptimizeImages(t.Context())
	require.NoError(t, err)

	assert.Empty(t, report.Variants)
	var sources []string
	for _, f := range report.Failures {
		sources = append(sources, f.Source)
	}
	assert.Contains(t, sources, "images/hero.jpg")
	assert.Zero(t, webp.calls)
	assert.NoFileExists(t, filepath.Join(out, "images", "hero.webp"))
}

func TestOptimizeImages_RealWebPEncoder(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeJPEG(t, filepath.Join(src, "images", "tiny.jpg"), 16, 16)

	p := NewPipeline(assetsConfig(nil, config.ImageFormatWebP), src, out)
	report, err := p.OptimizeImages(t.Context())
	require.NoError(t, err)
	require.Empty(t, report.Failures)

	data, err := os.ReadFile(filepath.Join(out, "images", "tiny.webp"))
	require.NoError(t, err)
	require.Greater(t, len(data), 12)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WEBP", string(data[8:12]))
}

func TestOptimizeImages_MissingDirectory(t *testing.T) {
	report, err := NewPipeline(assetsConfig([]int{320}), t.TempDir(), t.TempDir()).OptimizeImages(t.Context())
	require.NoError(t, err)
	assert.Empty(t, report.Variants)
}

func TestOptimizeImages_Deterministic(t *testing.T) {
	src := t.TempDir()
	writeJPEG(t, filepath.Join(src, "images", "a.jpg"), 500, 10)

	run := func() []byte {
		out := t.TempDir()
		_, err := NewPipeline(assetsConfig([]int{320}), src, out).OptimizeImages(t.Context())
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(out, "images", "a-320w.jpg"))
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, run(), run())
}

func TestOptimizeCSSAndJS(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(src, "css", "site.css"), "/* header */\nbody {\n  color: red;\n}\n")
	writeFile(t, filepath.Join(src, "css", "vendor.min.css"), "a{b:c}")
	writeFile(t, filepath.Join(src, "js", "nested", "main.js"), "function add(a, b) {\n  // sum\n  return a + b;\n}\n")

	p := NewPipeline(assetsConfig(nil), src, out)

	cssReport, err := p.OptimizeCSS(t.Context())
	require.NoError(t, err)
	require.Len(t, cssReport.Variants, 1)
	assert.Equal(t, "css/site.min.css", cssReport.Variants[0].OutputPath)
	minCSS, err := os.ReadFile(filepath.Join(out, "css", "site.min.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", string(minCSS))
	assert.NoFileExists(t, filepath.Join(out, "css", "vendor.min.min.css"))

	jsReport, err := p.OptimizeJS(t.Context())
	require.NoError(t, err)
	require.Len(t, jsReport.Variants, 1)
	assert.Equal(t, KindMinify, jsReport.Variants[0].Kind)
	minJS, err := os.ReadFile(filepath.Join(out, "js", "nested", "main.min.js"))
	require.NoError(t, err)
	assert.NotContains(t, string(minJS), "// sum")
	assert.Contains(t, string(minJS), "return a+b")

	// Sources stay untouched.
	assert.NoFileExists(t, filepath.Join(src, "css", "site.min.css"))
}

func TestOptimizeCSS_DisabledIsNoop(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(src, "css", "site.css"), "body { color: red; }")
	cfg := assetsConfig(nil)
	cfg.CSS.Minify = false
	cfg.JS.Minify = false

	p := NewPipeline(cfg, src, out)
	report, err := p.Run(t.Context())
	require.NoError(t, err)
	assert.Empty(t, report.Variants)
	assert.NoFileExists(t, filepath.Join(out, "css", "site.min.css"))
}

func TestRun_Cancelled(t *testing.T) {
	src := t.TempDir()
	writeJPEG(t, filepath.Join(src, "images", "a.jpg"), 100, 10)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := NewPipeline(assetsConfig([]int{50}), src, t.TempDir()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
