// Package markdown converts content bodies to HTML with goldmark.
package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
)

// Converter turns a markdown body into an HTML fragment.
type Converter interface {
	Convert(body []byte) (string, error)
}

// Options configures the goldmark converter.
type Options struct {
	// HardWraps renders soft line breaks as <br>.
	HardWraps bool
	// Unsafe keeps raw HTML embedded in content.
	Unsafe bool
}

// Goldmark is a GitHub-flavoured markdown converter.
type Goldmark struct {
	md goldmark.Markdown
}

// New builds a converter with GFM tables, strikethrough, autolinks and task lists.
func New(opts Options) *Goldmark {
	var rendererOpts []goldmark.Option
	htmlOpts := []renderer.Option{html.WithXHTML()}
	if opts.HardWraps {
		htmlOpts = append(htmlOpts, html.WithHardWraps())
	}
	if opts.Unsafe {
		htmlOpts = append(htmlOpts, html.WithUnsafe())
	}
	rendererOpts = append(rendererOpts,
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAttribute()),
		goldmark.WithRendererOptions(htmlOpts...),
	)
	return &Goldmark{md: goldmark.New(rendererOpts...)}
}

// Convert renders body to HTML.
func (g *Goldmark) Convert(body []byte) (string, error) {
	var buf bytes.Buffer
	if err := g.md.Convert(body, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Inline renders a short text and strips the enclosing paragraph, for use inside templates.
func (g *Goldmark) Inline(text string) (string, error) {
	out, err := g.Convert([]byte(text))
	if err != nil {
		return "", err
	}
	trimmed := bytes.TrimSpace([]byte(out))
	if bytes.HasPrefix(trimmed, []byte("<p>")) && bytes.HasSuffix(trimmed, []byte("</p>")) &&
		bytes.Count(trimmed, []byte("<p>")) == 1 {
		trimmed = trimmed[len("<p>") : len(trimmed)-len("</p>")]
	}
	return string(trimmed), nil
}
