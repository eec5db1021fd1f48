// Package templates compiles layout files and renders pages through them.
package templates

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
)

const (
	layoutExt   = ".html"
	partialsDir = "partials"
)

// Renderer holds the compiled layouts of one templates directory.
type Renderer struct {
	dir     string
	helpers *Helpers

	mu      sync.RWMutex
	layouts map[string]*template.Template
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithHelper registers an extra helper on this renderer only.
func WithHelper(name string, fn any) Option {
	return func(r *Renderer) { r.helpers.Register(name, fn) }
}

// WithMarkdown sets the converter behind the markdown helper.
func WithMarkdown(md InlineMarkdown) Option {
	return func(r *Renderer) { r.helpers.Register("markdown", markdownHelper(md)) }
}

// NewRenderer creates a renderer for dir. Nothing is compiled until Load.
func NewRenderer(dir string, opts ...Option) *Renderer {
	r := &Renderer{dir: dir, helpers: NewHelpers(nil)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Helpers exposes the renderer's helper registry.
func (r *Renderer) Helpers() *Helpers { return r.helpers }

// Load compiles every top-level *.html file into a layout named after the file
// without its extension. Files in partials/ are parsed into every layout and can be
// invoked as {{ template "partials/<file>" . }} or through the blocks they define.
// Each call discards the previously compiled set.
func (r *Renderer) Load() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return errors.WrapError(err, errors.CategoryTemplate, "failed to read templates directory").
			WithContext("path", r.dir).Build()
	}

	partials, err := r.readPartials()
	if err != nil {
		return err
	}

	layouts := make(map[string]*template.Template)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != layoutExt {
			continue
		}
		name := strings.TrimSuffix(e.Name(), layoutExt)
		tpl, err := r.compile(name, filepath.Join(r.dir, e.Name()), partials)
		if err != nil {
			return err
		}
		layouts[name] = tpl
	}

	r.mu.Lock()
	r.layouts = layouts
	r.mu.Unlock()
	return nil
}

type partial struct {
	name string
	body string
}

func (r *Renderer) readPartials() ([]partial, error) {
	dir := filepath.Join(r.dir, partialsDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryTemplate, "failed to read partials directory").
			WithContext("path", dir).Build()
	}
	var out []partial
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != layoutExt {
			continue
		}
		p := filepath.Join(dir, e.Name())
		body, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryTemplate, "failed to read partial").
				WithContext("path", p).Build()
		}
		out = append(out, partial{name: partialsDir + "/" + strings.TrimSuffix(e.Name(), layoutExt), body: string(body)})
	}
	return out, nil
}

func (r *Renderer) compile(name, path string, partials []partial) (*template.Template, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryTemplate, "failed to read layout").
			WithContext("path", path).Build()
	}

	tpl := template.New(name).Funcs(r.helpers.FuncMap())
	for _, p := range partials {
		if _, err := tpl.New(p.name).Parse(p.body); err != nil {
			return nil, errors.WrapError(err, errors.CategoryTemplate, "failed to parse partial").
				WithContext("template", p.name).Build()
		}
	}
	if _, err := tpl.Parse(string(body)); err != nil {
		return nil, errors.WrapError(err, errors.CategoryTemplate, "failed to parse layout").
			WithContext("template", name).WithContext("path", path).Build()
	}
	return tpl, nil
}

// Names returns the compiled layout names, sorted.
func (r *Renderer) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.layouts))
	for n := range r.layouts {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Has reports whether a layout named name is compiled.
func (r *Renderer) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.layouts[name]
	return ok
}

// Render executes the layout called name with data.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	tpl, ok := r.layouts[name]
	r.mu.RUnlock()
	if !ok {
		return "", errors.TemplateNotFound(name).Build()
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", errors.WrapError(err, errors.CategoryTemplate, "failed to render layout").
			WithContext("template", name).Build()
	}
	return buf.String(), nil
}
