package slug

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var slugShape = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"about", "about"},
		{"Hello World", "hello-world"},
		{"  --Leading and trailing--  ", "leading-and-trailing"},
		{"Café Crème", "cafe-creme"},
		{"Ünïcödé_Über", "unicode-uber"},
		{"a__b..c", "a-b-c"},
		{"2024-01-05 Release Notes!", "2024-01-05-release-notes"},
		{"ﬁle", "file"},
		{"日本語", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Make(tt.in))
		})
	}
}

func TestMake_IdempotentAndWellFormed(t *testing.T) {
	inputs := []string{
		"about", "Hello World", "Café Crème", "x--y", "-a-", "A.B.C", "Ω mega", "tab\tsep",
		"MiXeD CaSe 123", "emoji 🚀 launch", "über/straße", "  ", "UPPER_snake_Case",
	}
	for _, in := range inputs {
		once := Make(in)
		assert.Equal(t, once, Make(once), "slug(slug(%q))", in)
		if once != "" {
			assert.Regexp(t, slugShape, once, "input %q", in)
		}
	}
}

func TestSegment_Fallback(t *testing.T) {
	assert.Equal(t, "page", Segment("日本語"))
	assert.Equal(t, "notes", Segment("Notes"))
}

func TestPath(t *testing.T) {
	assert.Equal(t, "about.html", Path("about.md", ".md", ".html"))
	assert.Equal(t, "blog/hello-world.html", Path("Blog/Hello World.md", ".md", ".html"))
	assert.Equal(t, "docs/guide/intro.html", Path("docs/./guide/Intro.md", ".md", ".html"))
	assert.Equal(t, "page.html", Path("日本.md", ".md", ".html"))
}
