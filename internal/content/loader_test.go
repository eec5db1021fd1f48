package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/markdown"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
}

func newLoader(root string) *Loader {
	return NewLoader(root, markdown.New(markdown.Options{}))
}

func TestLoader_ParsesPage(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"about.md": "---\ntitle: About\n---\n# Hi\n",
	})

	pages, err := newLoader(root).Load(t.Context())
	require.NoError(t, err)
	require.Len(t, pages, 1)

	p := pages[0]
	assert.Equal(t, filepath.Join(root, "about.md"), p.SourcePath)
	assert.Equal(t, "about.md", p.RelPath)
	assert.Equal(t, "about.html", p.OutputPath)
	assert.Equal(t, "/about.html", p.URL)
	assert.Equal(t, "About", p.Title(""))
	assert.Equal(t, "page", p.Layout("page"))
	assert.Contains(t, p.RenderedBody, "<h1>Hi</h1>")
	assert.Equal(t, "# Hi\n", string(p.Body))
	assert.NotEmpty(t, p.Fingerprint)
}

func TestLoader_DiscoveryOrder(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"b.md":          "b",
		"a.md":          "a",
		"C.md":          "C",
		"notes.txt":     "ignored",
		".hidden.md":    "ignored",
		"sub/z.md":      "z",
		"sub/deep/y.md": "y",
		"sub/a.md":      "sa",
		"alpha/x.md":    "x",
		"Zeta/q.md":     "q",
		".git/HEAD.md":  "ignored",
		"README.MD":     "wrong case extension",
	})

	pages, err := newLoader(root).Load(t.Context())
	require.NoError(t, err)

	var rels []string
	for _, p := range pages {
		rels = append(rels, p.RelPath)
	}
	assert.Equal(t, []string{
		"C.md", "a.md", "b.md",
		"Zeta/q.md",
		"alpha/x.md",
		"sub/a.md", "sub/z.md",
		"sub/deep/y.md",
	}, rels)
}

func TestStream_IsSingleUse(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.md": "a"})

	stream := newLoader(root).Stream(t.Context())
	count := 0
	for _, err := range stream.All() {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 1, count)

	for p, err := range stream.All() {
		assert.Nil(t, p)
		assert.ErrorIs(t, err, ErrStreamConsumed)
	}
}

func TestStream_IsLazy(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.md": "a",
		"b.md": "---\ntitle: [broken\n---\n",
	})

	// Stopping after the first page never reaches the malformed file.
	for p, err := range newLoader(root).Stream(t.Context()).All() {
		require.NoError(t, err)
		assert.Equal(t, "a.md", p.RelPath)
		break
	}
}

func TestLoader_MalformedFrontmatterAborts(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.md":   "fine",
		"bad.md": "---\ntitle: [unclosed\n---\nbody\n",
		"c.md":   "never reached",
	})

	var got []string
	var gotErr error
	for p, err := range newLoader(root).Stream(t.Context()).All() {
		if err != nil {
			gotErr = err
			continue
		}
		got = append(got, p.RelPath)
	}

	assert.Equal(t, []string{"a.md"}, got)
	require.Error(t, gotErr)
	ce, ok := errors.AsClassified(gotErr)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryContent, ce.Category())
	path, _ := ce.Context().GetString("path")
	assert.Equal(t, filepath.Join(root, "bad.md"), path)
}

func TestLoader_UnterminatedFrontmatter(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"bad.md": "---\ntitle: x\n# no close\n"})

	_, err := newLoader(root).Load(t.Context())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryContent))
}

func TestLoader_URLCollision(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Hello World.md": "one",
		"hello-world.md": "two",
	})

	_, err := newLoader(root).Load(t.Context())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryContent))
	assert.Contains(t, err.Error(), "same URL")
}

func TestLoader_MissingRoot(t *testing.T) {
	_, err := newLoader(filepath.Join(t.TempDir(), "missing")).Load(t.Context())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryFileSystem))
}

func TestLoader_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.md": "a"})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := newLoader(root).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutputPath_StableAcrossCalls(t *testing.T) {
	for _, rel := range []string{"about.md", "Blog/My Post.md", "a/b/c.md"} {
		assert.Equal(t, OutputPath(rel), OutputPath(rel))
	}
	assert.Equal(t, "blog/my-post.html", OutputPath("Blog/My Post.md"))
}
