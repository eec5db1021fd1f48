package config

import (
	"net/url"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
)

// Validate checks cross-field invariants. Every failure is a fatal config error.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, check := range []func() error{
		v.validatePaths,
		v.validateDev,
		v.validateSEO,
		v.validateImages,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func (v *configurationValidator) validatePaths() error {
	cfg := v.config
	out := cfg.OutputDir()
	dirs := []struct{ name, dir string }{
		{"source", cfg.SourceDir()},
		{"templates", cfg.TemplatesDir()},
		{"assets", cfg.AssetsDir()},
	}
	for _, d := range dirs {
		name, dir := d.name, d.dir
		if dir == out {
			return errors.ConfigError("output directory must differ from " + name + " directory").
				WithContext("path", out).Build()
		}
		if within(out, dir) || inBuildSibling(out, dir) {
			return errors.ConfigError(name + " directory must not be inside the output directory").
				WithContext("path", dir).Build()
		}
		// Staging and backup dirs are siblings of output, so they land in dir too.
		if within(dir, out) {
			return errors.ConfigError("output directory must not be inside the " + name + " directory").
				WithContext("path", out).Build()
		}
	}
	if out == cfg.Root {
		return errors.ConfigError("output directory must not be the project root").WithContext("path", out).Build()
	}
	return nil
}

func (v *configurationValidator) validateDev() error {
	if err := validatePort(v.config.Dev.Port); err != nil {
		return err
	}
	if v.config.Dev.Debounce <= 0 {
		return errors.ConfigError("dev.debounce must be positive").
			WithContext("debounce", v.config.Dev.Debounce.String()).Build()
	}
	return nil
}

// within reports whether child is parent or lies below it.
func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// inBuildSibling reports whether dir is, or lies below, one of the
// <output>.staging-* or <output>.prev directories a build creates.
func inBuildSibling(out, dir string) bool {
	parent, base := filepath.Dir(out), filepath.Base(out)
	rel, err := filepath.Rel(parent, dir)
	if err != nil || !filepath.IsLocal(rel) {
		return false
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return first == base+".prev" || strings.HasPrefix(first, base+".staging-")
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return errors.ConfigError("dev.port must be between 1 and 65535").WithContext("port", port).Build()
	}
	return nil
}

func (v *configurationValidator) validateSEO() error {
	base := v.config.SEO.BaseURL
	if base == "" {
		return nil
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.ConfigError("seo.baseUrl must be an absolute URL").WithContext("baseUrl", base).Build()
	}
	return nil
}

func (v *configurationValidator) validateImages() error {
	img := v.config.Assets.Images
	if img.Quality < 0 || img.Quality > 100 {
		return errors.ConfigError("assets.images.quality must be between 0 and 100").
			WithContext("quality", img.Quality).Build()
	}

	seen := make(map[ImageFormat]bool, len(img.Formats))
	for _, f := range img.Formats {
		parsed, err := ParseImageFormat(string(f))
		if err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "unsupported image format").
				Fatal().WithContext("format", string(f)).Build()
		}
		if seen[parsed] {
			return errors.ConfigError("duplicate image format").WithContext("format", string(f)).Build()
		}
		seen[parsed] = true
	}

	prev := 0
	for _, s := range img.Sizes {
		if s <= 0 {
			return errors.ConfigError("assets.images.sizes must be positive").WithContext("size", s).Build()
		}
		if s <= prev {
			return errors.ConfigError("assets.images.sizes must be strictly ascending").WithContext("size", s).Build()
		}
		prev = s
	}
	return nil
}
