package content

import (
	"path"

	"git.home.luguber.info/inful/contentforge/internal/frontmatter"
)

// Extension identifies content files. Other files in the source tree are ignored.
const Extension = ".md"

// Page is one content file, parsed and converted.
type Page struct {
	SourcePath   string // absolute path of the source file
	RelPath      string // slash-separated path relative to the source root
	OutputPath   string // slash-separated path relative to the output root
	URL          string // always starts with "/"
	Frontmatter  *frontmatter.Fields
	Body         []byte // markdown body without frontmatter
	RenderedBody string // HTML produced by the markdown converter
	Fingerprint  string // content fingerprint over frontmatter and body
}

// Title returns the frontmatter title, or def.
func (p *Page) Title(def string) string {
	return p.Frontmatter.StringOr("title", def)
}

// Layout returns the frontmatter layout, or def.
func (p *Page) Layout(def string) string {
	return p.Frontmatter.StringOr("layout", def)
}

// Dir returns the slash-separated output directory of the page ("." for the root).
func (p *Page) Dir() string {
	return path.Dir(p.OutputPath)
}
