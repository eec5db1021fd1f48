package templates

import (
	"fmt"
	"html/template"
	"maps"
	"time"

	"git.home.luguber.info/inful/contentforge/internal/slug"
)

// InlineMarkdown renders a short markdown snippet to HTML.
type InlineMarkdown func(text string) (string, error)

// Helpers is a renderer-owned function registry exposed to layouts by name.
type Helpers struct {
	funcs template.FuncMap
}

// NewHelpers returns a registry holding the built-in helpers.
// A nil md makes the markdown helper escape its input instead.
func NewHelpers(md InlineMarkdown) *Helpers {
	h := &Helpers{funcs: template.FuncMap{}}
	h.Register("formatDate", formatDate)
	h.Register("slugify", slug.Make)
	h.Register("markdown", markdownHelper(md))
	return h
}

func markdownHelper(md InlineMarkdown) func(string) (template.HTML, error) {
	return func(text string) (template.HTML, error) {
		if md == nil {
			return template.HTML(template.HTMLEscapeString(text)), nil
		}
		out, err := md(text)
		if err != nil {
			return "", err
		}
		return template.HTML(out), nil //nolint:gosec // produced by the markdown renderer
	}
}

// Register adds or replaces a helper.
func (h *Helpers) Register(name string, fn any) {
	h.funcs[name] = fn
}

// Lookup returns the helper registered under name.
func (h *Helpers) Lookup(name string) (any, bool) {
	fn, ok := h.funcs[name]
	return fn, ok
}

// FuncMap returns a copy suitable for template.Funcs.
func (h *Helpers) FuncMap() template.FuncMap {
	return maps.Clone(h.funcs)
}

var dateInputLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// formatDate formats v with a Go time layout. v may be a time.Time or a date string.
// Values that cannot be parsed are returned unchanged.
func formatDate(layout string, v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format(layout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format(layout)
	case string:
		for _, in := range dateInputLayouts {
			if parsed, err := time.Parse(in, t); err == nil {
				return parsed.Format(layout)
			}
		}
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
