package templates

import (
	"html/template"
	"time"

	"git.home.luguber.info/inful/contentforge/internal/content"
)

// PageData is the value layouts are executed with.
type PageData struct {
	Title     string
	URL       string
	Content   template.HTML
	Meta      template.HTML
	Params    map[string]any
	Site      SiteData
	Page      *content.Page
	BuildTime time.Time
}

// SiteData carries site-wide settings into layouts.
type SiteData struct {
	Title       string
	Description string
	BaseURL     string
}
