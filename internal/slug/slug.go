// Package slug derives URL-safe path segments.
package slug

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a name has no ASCII letters or digits left after slugging.
const Fallback = "page"

// Make lowercases s, folds accented letters to ASCII and collapses every run of
// other characters into a single hyphen. The result contains only [a-z0-9-],
// has no leading or trailing hyphen, and Make(Make(s)) == Make(s).
// It returns "" when nothing survives.
func Make(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	hyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			hyphen = false
			b.WriteRune(r)
		default:
			hyphen = true
		}
	}
	return b.String()
}

// Segment is Make with Fallback for names that slug to nothing.
func Segment(s string) string {
	if out := Make(s); out != "" {
		return out
	}
	return Fallback
}

// Path slugs every segment of a slash-separated relative path and replaces
// ext on the last segment with newExt.
//
//	Path("Blog/Hello World.md", ".md", ".html") == "blog/hello-world.html"
func Path(rel, ext, newExt string) string {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	parts := strings.Split(rel, "/")
	last := len(parts) - 1
	for i, p := range parts {
		if i == last {
			p = strings.TrimSuffix(p, ext)
		}
		parts[i] = Segment(p)
	}
	return strings.Join(parts, "/") + newExt
}
