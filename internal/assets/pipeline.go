package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"git.home.luguber.info/inful/contentforge/internal/config"
	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
)

const (
	imagesDir = "images"
	cssDir    = "css"
	jsDir     = "js"
)

// Pipeline writes variants of the assets under srcRoot into outRoot, mirroring
// relative paths. Source files are only read.
type Pipeline struct {
	cfg      config.AssetsConfig
	srcRoot  string
	outRoot  string
	encoders map[string]Encoder
	minifier *Minifier
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEncoder replaces the encoder used for format.
func WithEncoder(format string, enc Encoder) Option {
	return func(p *Pipeline) { p.encoders[format] = enc }
}

// NewPipeline creates a pipeline for the assets in srcRoot.
func NewPipeline(cfg config.AssetsConfig, srcRoot, outRoot string, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		srcRoot:  srcRoot,
		outRoot:  outRoot,
		encoders: defaultEncoders(),
		minifier: NewMinifier(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run optimizes images, then CSS, then JS.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	var report Report
	for _, step := range []func(context.Context) (Report, error){p.OptimizeImages, p.OptimizeCSS, p.OptimizeJS} {
		r, err := step(ctx)
		report.Merge(r)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// OptimizeImages emits, for every raster image under images/, one resized copy per
// configured size narrower than the image and one full-size copy per configured format.
// An image whose outputs would overwrite those of an earlier image, or a source
// file under assets, is skipped and recorded as a failure.
// Per-image failures are recorded in the report. Only cancellation returns an error.
func (p *Pipeline) OptimizeImages(ctx context.Context) (Report, error) {
	var report Report
	claimed := map[string]string{}
	err := p.walk(ctx, imagesDir, func(rel string) {
		if _, ok := formatForExt(path.Ext(rel)); !ok {
			return
		}
		variants, err := p.processImage(rel, claimed)
		if err != nil {
			report.fail(rel, "image", err)
			return
		}
		report.Variants = append(report.Variants, variants...)
	})
	return report, err
}

type pendingVariant struct {
	variant Variant
	format  string
}

func (p *Pipeline) processImage(rel string, claimed map[string]string) ([]Variant, error) {
	srcFormat, _ := formatForExt(path.Ext(rel))
	data, err := os.ReadFile(p.srcPath(rel))
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	bounds := img.Bounds()
	ext := path.Ext(rel)
	stem := strings.TrimSuffix(rel, ext)

	var pending []pendingVariant
	for _, size := range p.cfg.Images.Sizes {
		if bounds.Dx() <= size {
			continue
		}
		out := fmt.Sprintf("%s-%dw%s", stem, size, ext)
		pending = append(pending, pendingVariant{
			variant: Variant{Source: rel, Kind: KindResize, Width: size, OutputPath: out},
			format:  srcFormat,
		})
	}
	for _, f := range p.cfg.Images.Formats {
		format := string(f)
		if format == srcFormat {
			continue
		}
		pending = append(pending, pendingVariant{
			variant: Variant{Source: rel, Kind: KindReformat, Format: format, OutputPath: stem + "." + format},
			format:  format,
		})
	}

	for _, pv := range pending {
		out := pv.variant.OutputPath
		if prev, ok := claimed[out]; ok {
			return nil, fmt.Errorf("output %s already produced from %s", out, prev)
		}
		if _, err := os.Stat(p.srcPath(out)); err == nil {
			return nil, fmt.Errorf("output %s would overwrite a source asset", out)
		}
	}

	variants := make([]Variant, 0, len(pending))
	for _, pv := range pending {
		src := img
		if pv.variant.Kind == KindResize {
			src = resize(img, pv.variant.Width)
		}
		if err := p.encodeTo(pv.variant.OutputPath, pv.format, src, p.cfg.Images.Quality); err != nil {
			return nil, err
		}
		claimed[pv.variant.OutputPath] = rel
		variants = append(variants, pv.variant)
	}
	return variants, nil
}

func (p *Pipeline) encodeTo(rel, format string, img image.Image, quality int) error {
	enc, ok := p.encoders[format]
	if !ok {
		return fmt.Errorf("no encoder for format %q", format)
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img, quality); err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return p.write(rel, buf.Bytes())
}

// resize scales img to width, keeping its aspect ratio.
func resize(img image.Image, width int) image.Image {
	b := img.Bounds()
	height := max(1, (b.Dy()*width+b.Dx()/2)/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// OptimizeCSS writes a .min.css sibling for every stylesheet under css/. No-op when disabled.
func (p *Pipeline) OptimizeCSS(ctx context.Context) (Report, error) {
	if !p.cfg.CSS.Minify {
		return Report{}, nil
	}
	return p.minifyTree(ctx, cssDir, ".css", mediaCSS)
}

// OptimizeJS writes a .min.js sibling for every script under js/. No-op when disabled.
func (p *Pipeline) OptimizeJS(ctx context.Context) (Report, error) {
	if !p.cfg.JS.Minify {
		return Report{}, nil
	}
	return p.minifyTree(ctx, jsDir, ".js", mediaJS)
}

func (p *Pipeline) minifyTree(ctx context.Context, dir, ext, media string) (Report, error) {
	var report Report
	err := p.walk(ctx, dir, func(rel string) {
		if path.Ext(rel) != ext || strings.HasSuffix(rel, ".min"+ext) {
			return
		}
		out := strings.TrimSuffix(rel, ext) + ".min" + ext
		data, err := os.ReadFile(p.srcPath(rel))
		if err == nil {
			data, err = p.minifier.Minify(media, data)
		}
		if err == nil {
			err = p.write(out, data)
		}
		if err != nil {
			report.fail(rel, "minify", err)
			return
		}
		report.Variants = append(report.Variants, Variant{Source: rel, Kind: KindMinify, OutputPath: out})
	})
	return report, err
}

// walk calls fn with the slash-separated path (relative to srcRoot) of every
// regular file under dir, in lexical order. A missing dir is not an error.
func (p *Pipeline) walk(ctx context.Context, dir string, fn func(rel string)) error {
	root := filepath.Join(p.srcRoot, dir)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(root, func(abs string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to walk assets").
				WithContext("path", abs).Build()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if strings.HasPrefix(d.Name(), ".") && abs != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(p.srcRoot, abs)
		if relErr != nil {
			return relErr
		}
		fn(filepath.ToSlash(rel))
		return nil
	})
}

func (p *Pipeline) srcPath(rel string) string {
	return filepath.Join(p.srcRoot, filepath.FromSlash(rel))
}

func (p *Pipeline) write(rel string, data []byte) error {
	target := filepath.Join(p.outRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}
