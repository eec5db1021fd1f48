package config

import (
	"time"
)

const (
	DefaultPort     = 3000
	DefaultDebounce = 300 * time.Millisecond
	DefaultQuality  = 80
	DefaultLayout   = "page"
)

// DefaultSizes are the responsive breakpoints used when none are configured.
var DefaultSizes = []int{320, 640, 960, 1280}

// DefaultFormats are the modern encodings produced when none are configured.
var DefaultFormats = []ImageFormat{ImageFormatWebP, ImageFormatAVIF}

// Default returns a configuration populated with every default value.
// Load decodes the file on top of it, so absent keys keep these values.
func Default() *Config {
	return &Config{
		Source:    "./content",
		Templates: "./templates",
		Output:    "./dist",
		Assets: AssetsConfig{
			Dir: "./assets",
			Images: ImagesConfig{
				Quality: DefaultQuality,
				Formats: append([]ImageFormat(nil), DefaultFormats...),
				Sizes:   append([]int(nil), DefaultSizes...),
			},
			CSS: MinifyConfig{Minify: true},
			JS:  MinifyConfig{Minify: true},
		},
		Dev: DevConfig{
			Port:     DefaultPort,
			Watch:    true,
			Debounce: DefaultDebounce,
		},
		SEO: SEOConfig{
			Title:   "ContentForge",
			Robots:  true,
			Sitemap: true,
		},
		Content: ContentConfig{DefaultLayout: DefaultLayout},
		Markdown: MarkdownConfig{
			HardWraps: true,
		},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
	}
}

// DefaultApplier fills in values a decoded file left empty for one config domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type pathsDefaults struct{}

func (pathsDefaults) Domain() string { return "paths" }

func (pathsDefaults) ApplyDefaults(cfg *Config) error {
	d := Default()
	if cfg.Source == "" {
		cfg.Source = d.Source
	}
	if cfg.Templates == "" {
		cfg.Templates = d.Templates
	}
	if cfg.Output == "" {
		cfg.Output = d.Output
	}
	if cfg.Assets.Dir == "" {
		cfg.Assets.Dir = d.Assets.Dir
	}
	return nil
}

type devDefaults struct{}

func (devDefaults) Domain() string { return "dev" }

func (devDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Dev.Port == 0 {
		cfg.Dev.Port = DefaultPort
	}
	if cfg.Dev.Debounce <= 0 {
		cfg.Dev.Debounce = DefaultDebounce
	}
	return nil
}

type contentDefaults struct{}

func (contentDefaults) Domain() string { return "content" }

func (contentDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Content.DefaultLayout == "" {
		cfg.Content.DefaultLayout = DefaultLayout
	}
	return nil
}

type loggingDefaults struct{}

func (loggingDefaults) Domain() string { return "logging" }

func (loggingDefaults) ApplyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

type imagesDefaults struct{}

func (imagesDefaults) Domain() string { return "images" }

// ApplyDefaults canonicalizes format spellings. Unknown formats are left for Validate to reject.
func (imagesDefaults) ApplyDefaults(cfg *Config) error {
	for i, f := range cfg.Assets.Images.Formats {
		if parsed, err := ParseImageFormat(string(f)); err == nil {
			cfg.Assets.Images.Formats[i] = parsed
		}
	}
	return nil
}

var defaultAppliers = []DefaultApplier{
	pathsDefaults{},
	devDefaults{},
	imagesDefaults{},
	contentDefaults{},
	loggingDefaults{},
}

func applyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
