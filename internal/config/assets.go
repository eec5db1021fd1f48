package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// AssetsConfig locates the assets directory and configures optimization.
//
// The YAML form is either a plain path:
//
//	assets: ./assets
//
// or a mapping:
//
//	assets:
//	  dir: ./assets
//	  images: {quality: 80, formats: [webp], sizes: [320, 640]}
//	  css: {minify: true}
//	  js: {minify: true}
type AssetsConfig struct {
	Dir    string       `yaml:"dir"`
	Images ImagesConfig `yaml:"images"`
	CSS    MinifyConfig `yaml:"css"`
	JS     MinifyConfig `yaml:"js"`
}

// ImagesConfig configures responsive image variants.
type ImagesConfig struct {
	Quality int           `yaml:"quality"`
	Formats []ImageFormat `yaml:"formats"`
	Sizes   []int         `yaml:"sizes"`
}

// MinifyConfig toggles minification for one asset kind.
type MinifyConfig struct {
	Minify bool `yaml:"minify"`
}

// UnmarshalYAML accepts either a scalar directory or the full mapping.
func (a *AssetsConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&a.Dir)
	case yaml.MappingNode:
		type plain AssetsConfig
		return node.Decode((*plain)(a))
	default:
		return fmt.Errorf("line %d: assets must be a path or a mapping", node.Line)
	}
}
