// Package seo writes sitemap.xml, robots.txt and manifest.json and renders page meta tags.
package seo

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/contentforge/internal/config"
	"git.home.luguber.info/inful/contentforge/internal/content"
	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
)

const (
	SitemapFile  = "sitemap.xml"
	RobotsFile   = "robots.txt"
	ManifestFile = "manifest.json"

	sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"
)

// Generator produces SEO artifacts for one output root.
type Generator struct {
	cfg     config.SEOConfig
	outRoot string
}

// New creates a generator writing into outRoot.
func New(cfg config.SEOConfig, outRoot string) *Generator {
	return &Generator{cfg: cfg, outRoot: outRoot}
}

// Generate writes every enabled artifact.
func (g *Generator) Generate(pages []*content.Page, now time.Time) error {
	if err := g.WriteSitemap(pages, now); err != nil {
		return err
	}
	if err := g.WriteRobots(); err != nil {
		return err
	}
	return g.WriteManifest()
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string  `xml:"loc"`
	LastMod    string  `xml:"lastmod"`
	ChangeFreq string  `xml:"changefreq,omitempty"`
	Priority   float64 `xml:"priority,omitempty"`
}

// WriteSitemap writes one <url> per page, in page order, with lastmod set to now.
// Nothing is written when sitemaps are disabled.
func (g *Generator) WriteSitemap(pages []*content.Page, now time.Time) error {
	if !g.cfg.Sitemap {
		return nil
	}
	set := urlSet{XMLNS: sitemapNS, URLs: make([]sitemapURL, 0, len(pages))}
	lastmod := now.UTC().Format(time.RFC3339)
	for _, p := range pages {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        g.absURL(p.URL),
			LastMod:    lastmod,
			ChangeFreq: p.Frontmatter.StringOr("changefreq", "weekly"),
			Priority:   priority(p),
		})
	}
	data, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to encode sitemap").Build()
	}
	return g.write(SitemapFile, append([]byte(xml.Header), append(data, '\n')...))
}

func priority(p *content.Page) float64 {
	const def = 0.5
	s, ok := p.Frontmatter.String("priority")
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 1 {
		return def
	}
	return v
}

// WriteRobots writes an allow-all robots.txt. It points to the sitemap when one is generated.
func (g *Generator) WriteRobots() error {
	if !g.cfg.Robots {
		return nil
	}
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\n")
	if g.cfg.Sitemap {
		fmt.Fprintf(&b, "Sitemap: %s\n", g.absURL("/"+SitemapFile))
	}
	return g.write(RobotsFile, []byte(b.String()))
}

// Manifest is the web app manifest.
type Manifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	Description     string         `json:"description"`
	StartURL        string         `json:"start_url"`
	Display         string         `json:"display"`
	BackgroundColor string         `json:"background_color"`
	ThemeColor      string         `json:"theme_color"`
	Icons           []ManifestIcon `json:"icons"`
}

// ManifestIcon is one icon entry of the manifest.
type ManifestIcon struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
	Type  string `json:"type"`
}

// BuildManifest derives the manifest from the site title and description.
func (g *Generator) BuildManifest() Manifest {
	return Manifest{
		Name:            g.cfg.Title,
		ShortName:       g.cfg.Title,
		Description:     g.cfg.Description,
		StartURL:        "/",
		Display:         "standalone",
		BackgroundColor: "#ffffff",
		ThemeColor:      "#000000",
		Icons: []ManifestIcon{
			{Src: "/icons/icon-192x192.png", Sizes: "192x192", Type: "image/png"},
			{Src: "/icons/icon-512x512.png", Sizes: "512x512", Type: "image/png"},
		},
	}
}

// WriteManifest writes manifest.json.
func (g *Generator) WriteManifest() error {
	data, err := json.MarshalIndent(g.BuildManifest(), "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to encode manifest").Build()
	}
	return g.write(ManifestFile, append(data, '\n'))
}

// MetaTags renders the head fragment for p: title, description, Open Graph,
// Twitter card and canonical link. Missing title or description fall back to
// the site values. Every value is HTML-escaped.
func (g *Generator) MetaTags(p *content.Page) string {
	title := html.EscapeString(p.Frontmatter.StringOr("title", g.cfg.Title))
	desc := html.EscapeString(p.Frontmatter.StringOr("description", g.cfg.Description))
	kind := html.EscapeString(p.Frontmatter.StringOr("type", "website"))
	url := html.EscapeString(g.absURL(p.URL))
	image, hasImage := p.Frontmatter.String("image")
	image = html.EscapeString(image)

	var b strings.Builder
	fmt.Fprintf(&b, "<title>%s</title>\n", title)
	fmt.Fprintf(&b, "<meta name=\"description\" content=\"%s\">\n", desc)
	fmt.Fprintf(&b, "<meta property=\"og:type\" content=\"%s\">\n", kind)
	fmt.Fprintf(&b, "<meta property=\"og:url\" content=\"%s\">\n", url)
	fmt.Fprintf(&b, "<meta property=\"og:title\" content=\"%s\">\n", title)
	fmt.Fprintf(&b, "<meta property=\"og:description\" content=\"%s\">\n", desc)
	if hasImage {
		fmt.Fprintf(&b, "<meta property=\"og:image\" content=\"%s\">\n", image)
	}
	b.WriteString("<meta name=\"twitter:card\" content=\"summary_large_image\">\n")
	fmt.Fprintf(&b, "<meta name=\"twitter:url\" content=\"%s\">\n", url)
	fmt.Fprintf(&b, "<meta name=\"twitter:title\" content=\"%s\">\n", title)
	fmt.Fprintf(&b, "<meta name=\"twitter:description\" content=\"%s\">\n", desc)
	if hasImage {
		fmt.Fprintf(&b, "<meta name=\"twitter:image\" content=\"%s\">\n", image)
	}
	fmt.Fprintf(&b, "<link rel=\"canonical\" href=\"%s\">\n", url)
	return b.String()
}

// absURL joins the base URL, without its trailing slash, and a rooted path.
func (g *Generator) absURL(p string) string {
	return strings.TrimSuffix(g.cfg.BaseURL, "/") + p
}

func (g *Generator) write(name string, data []byte) error {
	target := filepath.Join(g.outRoot, name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write "+name).
			WithContext("path", target).Build()
	}
	return nil
}
