// Package content discovers content files and turns them into pages.
package content

import (
	"context"
	stderrors "errors"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/frontmatter"
	"git.home.luguber.info/inful/contentforge/internal/logfields"
	"git.home.luguber.info/inful/contentforge/internal/markdown"
	"git.home.luguber.info/inful/contentforge/internal/slug"
)

// ErrStreamConsumed is yielded when a Stream is iterated a second time.
var ErrStreamConsumed = stderrors.New("content stream already consumed")

// Loader produces pages from a source directory.
type Loader struct {
	root string
	conv markdown.Converter
}

// NewLoader creates a loader rooted at root that converts bodies with conv.
func NewLoader(root string, conv markdown.Converter) *Loader {
	return &Loader{root: root, conv: conv}
}

// Stream returns a lazy, single-use sequence of the pages under the root.
// Files are read only as the consumer pulls.
func (l *Loader) Stream(ctx context.Context) *Stream {
	return &Stream{ctx: ctx, loader: l}
}

// Load drains a fresh stream into a slice.
func (l *Loader) Load(ctx context.Context) ([]*Page, error) {
	var pages []*Page
	for p, err := range l.Stream(ctx).All() {
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// Stream is a finite, non-restartable page sequence.
type Stream struct {
	ctx      context.Context
	loader   *Loader
	consumed atomic.Bool
}

// All yields pages in discovery order. A directory's own files always come
// before anything in its subdirectories, so docs/index.md precedes
// docs/a/page.md even though "a/" sorts before "index.md". Files are sorted
// byte-wise, then subdirectories are visited byte-wise, depth first.
// The first error ends the sequence.
func (s *Stream) All() iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		if s.consumed.Swap(true) {
			yield(nil, ErrStreamConsumed)
			return
		}
		s.loader.walk(s.ctx, yield)
	}
}

func (l *Loader) walk(ctx context.Context, yield func(*Page, error) bool) {
	if _, err := os.Stat(l.root); err != nil {
		yield(nil, errors.WrapError(err, errors.CategoryFileSystem, "content directory not readable").
			WithContext("path", l.root).Build())
		return
	}

	urls := make(map[string]string)
	stack := []string{"."}
	for len(stack) > 0 {
		rel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}

		files, dirs, err := l.readDir(rel)
		if err != nil {
			yield(nil, err)
			return
		}

		for _, name := range files {
			page, err := l.loadPage(path.Join(rel, name))
			if err == nil {
				if prev, dup := urls[page.URL]; dup {
					err = errors.ContentError("two content files map to the same URL").
						WithContext("path", page.RelPath).
						WithContext("other", prev).
						WithContext("url", page.URL).Build()
				} else {
					urls[page.URL] = page.RelPath
				}
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				return
			}
		}

		// Push in reverse so the lexically first subdirectory is visited next.
		for i := len(dirs) - 1; i >= 0; i-- {
			stack = append(stack, path.Join(rel, dirs[i]))
		}
	}
}

// readDir lists the content files and subdirectories of rel, each sorted.
func (l *Loader) readDir(rel string) (files, dirs []string, err error) {
	abs := filepath.Join(l.root, filepath.FromSlash(rel))
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read content directory").
			WithContext("path", abs).Build()
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		switch {
		case e.IsDir():
			dirs = append(dirs, name)
		case e.Type()&fs.ModeType == 0 || e.Type()&fs.ModeSymlink != 0:
			if filepath.Ext(name) == Extension {
				files = append(files, name)
			}
		}
	}
	slices.Sort(files)
	slices.Sort(dirs)
	return files, dirs, nil
}

func (l *Loader) loadPage(rel string) (*Page, error) {
	abs := filepath.Join(l.root, filepath.FromSlash(rel))
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read content file").
			WithContext("path", abs).Build()
	}

	fmRaw, body, _, err := frontmatter.Split(raw)
	if err != nil {
		return nil, malformed(abs, err)
	}
	fields, err := frontmatter.ParseYAML(fmRaw)
	if err != nil {
		return nil, malformed(abs, err)
	}

	html, err := l.conv.Convert(body)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryContent, "markdown conversion failed").
			WithContext("path", abs).Build()
	}

	out := OutputPath(rel)
	page := &Page{
		SourcePath:   abs,
		RelPath:      rel,
		OutputPath:   out,
		URL:          "/" + out,
		Frontmatter:  fields,
		Body:         body,
		RenderedBody: html,
		Fingerprint:  mdfp.CalculateFingerprintFromParts(string(fmRaw), string(body)),
	}
	slog.Debug("Loaded page", logfields.File(rel), logfields.URL(page.URL))
	return page, nil
}

func malformed(path string, cause error) error {
	return errors.WrapError(cause, errors.CategoryContent, "malformed frontmatter").
		WithContext("path", path).Build()
}

// OutputPath maps a slash-separated source-relative path to its output path:
// every segment slugged, the content extension replaced by .html.
func OutputPath(rel string) string {
	return slug.Path(rel, Extension, ".html")
}
