package assets

import (
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
)

const (
	mediaCSS = "text/css"
	mediaJS  = "application/javascript"
)

// Minifier strips whitespace and comments from stylesheets and scripts.
type Minifier struct {
	m *minify.M
}

// NewMinifier returns a minifier for CSS and JavaScript.
func NewMinifier() *Minifier {
	m := minify.New()
	m.AddFunc(mediaCSS, css.Minify)
	m.AddFunc(mediaJS, js.Minify)
	return &Minifier{m: m}
}

// Minify returns the minified form of data for the given media type.
func (m *Minifier) Minify(media string, data []byte) ([]byte, error) {
	return m.m.Bytes(media, data)
}
