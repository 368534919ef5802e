package templatex

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	HomeContentTemplate     = "content-home"
	NotFoundContentTemplate = "content-404"
	AdminContentTemplate    = "content-admin"
	LoginContentTemplate    = "content-login"
	LayoutTemplate          = "layout"
)

// Engine is a thin wrapper around Go templates with a fallback default layout.
type Engine struct {
	templates *template.Template
	StaticDir string
}

// PageData represents the data model expected by the default layout. Public
// pages fill the section fields; the admin shell and login page only use the
// top block plus Admin.
type PageData struct {
	Title           string
	SiteName        string
	ContentTemplate string
	RequestedPath   string
	Live            bool
	BaseURL         string
	Year            int
	Meta            Meta

	Hero    Hero
	About   About
	Photos  []GalleryPhoto
	Videos  []VideoCard
	Events  EventGroups
	Contact Contact

	Admin AdminData
}

// Meta holds SEO-oriented metadata for the rendered page.
type Meta struct {
	Description    string
	OpenGraphType  string
	OpenGraphSite  string
	OpenGraphImage string
}

// Hero is the opening section above the fold.
type Hero struct {
	Title    string
	Subtitle string
	ImageURL string
}

// About is the rendered artist bio.
type About struct {
	HTML     template.HTML
	ImageURL string
}

// GalleryPhoto is one image card in the gallery section.
type GalleryPhoto struct {
	URL     string
	Caption string
}

// VideoCard is one playable item in the videos section. EmbedURL is set for
// platform videos, FileURL for direct uploads; exactly one of the two plays.
type VideoCard struct {
	Title    string
	EmbedURL string
	FileURL  string
	ThumbURL string
	Featured bool
}

// EventItem is one agenda row. Date is YYYY-MM-DD; times are HH:MM and may
// be empty.
type EventItem struct {
	Title       string
	Date        string
	StartTime   string
	EndTime     string
	Venue       string
	City        string
	State       string
	Description template.HTML
}

// EventGroups splits the agenda around today.
type EventGroups struct {
	Upcoming []EventItem
	Past     []EventItem
}

// Contact carries the contact section's addresses and social links.
type Contact struct {
	Email       string
	Phone       string
	Instagram   string
	YouTube     string
	SoundCloud  string
	Spotify     string
	PressKitURL string
}

// AdminData parametrizes the admin shell.
type AdminData struct {
	Email string
}

var ptMonths = [...]string{"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"}

// Load instantiates an engine using files from templateDir.
func Load(templateDir string) (*Engine, error) {
	if templateDir == "" {
		return nil, fmt.Errorf("template directory not configured")
	}

	engine := &Engine{}

	funcs := template.FuncMap{
		"safeHTML": func(v any) template.HTML {
			switch value := v.(type) {
			case template.HTML:
				return value
			case string:
				return template.HTML(value)
			default:
				return ""
			}
		},
		"baseHref": func(base string) string {
			base = strings.TrimSpace(base)
			if base == "" || base == "/" {
				return "/"
			}
			trimmed := strings.Trim(base, "/")
			return "/" + trimmed + "/"
		},
		"fmtDate":      FormatDate,
		"fmtTimeRange": FormatTimeRange,
	}

	files := make([]string, 0)
	mainPattern := filepath.Join(templateDir, "*.html")
	mainFiles, err := filepath.Glob(mainPattern)
	if err != nil {
		return nil, fmt.Errorf("glob main templates: %w", err)
	}
	files = append(files, mainFiles...)

	partialsDir := filepath.Join(templateDir, "partials")
	if info, err := os.Stat(partialsDir); err == nil && info.IsDir() {
		partialPattern := filepath.Join(partialsDir, "*.html")
		partialFiles, err := filepath.Glob(partialPattern)
		if err != nil {
			return nil, fmt.Errorf("glob partial templates: %w", err)
		}
		files = append(files, partialFiles...)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no templates found in %s", templateDir)
	}

	sort.Strings(files)

	tpl, err := template.New("root").Funcs(funcs).ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	if tpl.Lookup(LayoutTemplate) == nil {
		return nil, fmt.Errorf("template %q is not defined", LayoutTemplate)
	}

	engine.templates = tpl

	assetsPath := filepath.Join(templateDir, "assets")
	if info, err := os.Stat(assetsPath); err == nil && info.IsDir() {
		engine.StaticDir = assetsPath
	}

	return engine, nil
}

// Render writes the rendered layout into the provided writer.
func (e *Engine) Render(w io.Writer, data *PageData) error {
	if e.templates == nil {
		return fmt.Errorf("template engine not initialized")
	}
	if data != nil {
		if strings.TrimSpace(data.ContentTemplate) == "" {
			data.ContentTemplate = HomeContentTemplate
		}
		if data.Year == 0 {
			data.Year = time.Now().Year()
		}
	}
	return e.templates.ExecuteTemplate(w, LayoutTemplate, data)
}

// FormatDate renders an ISO date as a short Portuguese label, e.g.
// "2026-08-26" becomes "26 Ago 2026". Malformed dates pass through as-is.
func FormatDate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return fmt.Sprintf("%02d %s %d", t.Day(), ptMonths[t.Month()-1], t.Year())
}

// FormatTimeRange joins optional start and end times into one label.
func FormatTimeRange(start, end string) string {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	switch {
	case start == "" && end == "":
		return ""
	case end == "":
		return start
	case start == "":
		return end
	}
	return start + " – " + end
}
