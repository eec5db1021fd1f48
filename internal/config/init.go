package config

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
)

// Init writes an example configuration to path. An existing file is only replaced when force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).Build()
	}

	example := Default()
	example.SEO.Title = "My Site"
	example.SEO.Description = "A site built with ContentForge"
	example.SEO.BaseURL = "https://example.com"

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", path).Build()
	}
	return nil
}

var scaffoldFiles = map[string]string{
	"content/index.md": `---
title: Home
description: Welcome to your new site
---

# Welcome

Edit ` + "`content/index.md`" + ` to get started.
`,
	"templates/page.html": `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
{{ .Meta }}
{{ template "head" . }}
</head>
<body>
<main>
{{ .Content }}
</main>
</body>
</html>
`,
	"templates/partials/head.html": `{{ define "head" }}<link rel="stylesheet" href="/assets/css/site.css">{{ end }}
`,
	"assets/css/site.css": `body {
  font-family: system-ui, sans-serif;
  max-width: 48rem;
  margin: 0 auto;
}
`,
	"assets/js/.keep":     "",
	"assets/images/.keep": "",
}

// Scaffold creates a starter content, templates and assets tree under cfg's root.
// Existing files are left untouched.
func Scaffold(cfg *Config) ([]string, error) {
	var created []string
	for _, rel := range slices.Sorted(maps.Keys(scaffoldFiles)) {
		body := scaffoldFiles[rel]
		target := scaffoldTarget(cfg, rel)
		if _, err := os.Stat(target); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return created, errors.WrapError(err, errors.CategoryFileSystem, "failed to create directory").
				WithContext("path", filepath.Dir(target)).Build()
		}
		if err := os.WriteFile(target, []byte(body), 0o644); err != nil {
			return created, errors.WrapError(err, errors.CategoryFileSystem, "failed to write scaffold file").
				WithContext("path", target).Build()
		}
		created = append(created, target)
	}
	return created, nil
}

func scaffoldTarget(cfg *Config, rel string) string {
	dir, rest, _ := strings.Cut(rel, "/")
	rest = filepath.FromSlash(rest)
	switch dir {
	case "content":
		return filepath.Join(cfg.SourceDir(), rest)
	case "templates":
		return filepath.Join(cfg.TemplatesDir(), rest)
	case "assets":
		return filepath.Join(cfg.AssetsDir(), rest)
	}
	return cfg.Resolve(rel)
}
