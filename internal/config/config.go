// Package config loads and validates the contentforge.yaml project file.
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
)

// DefaultFilename is the config file looked up when no --config flag is given.
const DefaultFilename = "contentforge.yaml"

// Config is the project configuration. It is loaded once per run and not mutated afterwards.
type Config struct {
	// Root is the directory holding the config file. All relative paths resolve against it.
	Root string `yaml:"-"`

	Source    string         `yaml:"source"`
	Templates string         `yaml:"templates"`
	Output    string         `yaml:"output"`
	Assets    AssetsConfig   `yaml:"assets"`
	Dev       DevConfig      `yaml:"dev"`
	SEO       SEOConfig      `yaml:"seo"`
	Content   ContentConfig  `yaml:"content"`
	Markdown  MarkdownConfig `yaml:"markdown"`
	Logging   LoggingConfig  `yaml:"logging"`
}

// DevConfig controls the preview server and watch loop.
type DevConfig struct {
	Port     int           `yaml:"port"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
	// History is the SQLite file recording build history. Empty keeps it in memory.
	History string `yaml:"history,omitempty"`
}

// SEOConfig drives sitemap, robots, manifest and meta-tag generation.
type SEOConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	BaseURL     string `yaml:"baseUrl"`
	Robots      bool   `yaml:"robots"`
	Sitemap     bool   `yaml:"sitemap"`
}

// ContentConfig holds page rendering defaults.
type ContentConfig struct {
	DefaultLayout string `yaml:"defaultLayout"`
}

// MarkdownConfig toggles markdown rendering options.
type MarkdownConfig struct {
	HardWraps bool `yaml:"hardWraps"`
	// Unsafe passes raw HTML in content through to the output.
	Unsafe bool `yaml:"unsafe"`
}

// LoggingConfig refines the logger configured by the CLI.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Load reads the config file at path, applies defaults and validates the result.
// A .env file next to the config is loaded first; ${VAR} references in the
// file are expanded from the environment.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid configuration path").
			Fatal().WithContext("path", path).Build()
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		return nil, errors.ConfigError("configuration file not found").WithContext("path", abs).Build()
	}

	root := filepath.Dir(abs)
	if err := loadEnvFiles(root); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read configuration file").
			Fatal().WithContext("path", abs).Build()
	}
	return Parse(data, root)
}

// Parse decodes YAML config content. root anchors relative paths.
func Parse(data []byte, root string) (*Config, error) {
	cfg := Default()
	cfg.Root = root

	expanded := os.ExpandEnv(string(data))
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse configuration").Fatal().Build()
	}

	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve returns p made absolute against the project root.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root, p)
}

// SourceDir returns the absolute content directory.
func (c *Config) SourceDir() string { return c.Resolve(c.Source) }

// TemplatesDir returns the absolute templates directory.
func (c *Config) TemplatesDir() string { return c.Resolve(c.Templates) }

// OutputDir returns the absolute output directory.
func (c *Config) OutputDir() string { return c.Resolve(c.Output) }

// AssetsDir returns the absolute assets directory.
func (c *Config) AssetsDir() string { return c.Resolve(c.Assets.Dir) }

// HistoryPath returns the absolute build-history database path, or "" for in-memory.
func (c *Config) HistoryPath() string {
	if c.Dev.History == "" {
		return ""
	}
	return c.Resolve(c.Dev.History)
}

// WithPort returns a copy of c with the preview port overridden. Zero keeps the configured port.
func (c *Config) WithPort(port int) (*Config, error) {
	if port == 0 {
		return c, nil
	}
	if err := validatePort(port); err != nil {
		return nil, err
	}
	cp := *c
	cp.Dev.Port = port
	return &cp, nil
}

func (c *Config) String() string {
	return fmt.Sprintf("source=%s templates=%s output=%s assets=%s", c.Source, c.Templates, c.Output, c.Assets.Dir)
}
