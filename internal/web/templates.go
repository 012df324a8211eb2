package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/justestif/go-music-personality/internal/listening"
)

// Templates renders pages and htmx fragments. Layouts and partials are parsed
// once into a shared set that every page is cloned from.
type Templates struct {
	shared   *template.Template
	pages    map[string]*template.Template
	partials map[string]bool
}

// NewTemplates parses layouts/*.html, partials/*.html and pages/*.html from
// templatesFS. Partials must define a template named after their file.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	shared := template.New("shared").Funcs(defaultFuncs())
	partials := make(map[string]bool)

	for _, dir := range []string{"layouts", "partials"} {
		files, err := fs.Glob(templatesFS, dir+"/*.html")
		if err != nil {
			return nil, fmt.Errorf("finding %s: %w", dir, err)
		}
		if len(files) == 0 {
			continue
		}
		if _, err := shared.ParseFS(templatesFS, files...); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", dir, err)
		}
		if dir == "partials" {
			for _, f := range files {
				name := templateName(f)
				if shared.Lookup(name) == nil {
					return nil, fmt.Errorf("partial %s does not define %q", f, name)
				}
				partials[name] = true
			}
		}
	}

	pageFiles, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("finding pages: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, f := range pageFiles {
		page, err := shared.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning shared templates: %w", err)
		}
		if _, err := page.ParseFS(templatesFS, f); err != nil {
			return nil, fmt.Errorf("parsing page %s: %w", f, err)
		}
		pages[templateName(f)] = page
	}

	return &Templates{shared: shared, pages: pages, partials: partials}, nil
}

// Render writes page inside the base layout.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.pages[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

// RenderPartial writes a fragment without the layout.
func (t *Templates) RenderPartial(w io.Writer, partial string, data any) error {
	if !t.partials[partial] {
		return fmt.Errorf("partial %q not found", partial)
	}
	return t.shared.ExecuteTemplate(w, partial, data)
}

func templateName(file string) string {
	return strings.TrimSuffix(path.Base(file), ".html")
}

func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"join": func(elems []string, sep string) string {
			return strings.Join(elems, sep)
		},
		"timeRangeLabel": func(r string) string {
			switch r {
			case "short_term":
				return "last 4 weeks"
			case "long_term":
				return "all time"
			default:
				return "last 6 months"
			}
		},
		"formatDate": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
	}
}

const appTitle = "Music Personality"

// PageData contains common data passed to all page templates.
type PageData struct {
	Title string
	User  *UserData
}

// UserData contains authenticated user information.
type UserData struct {
	ID   string
	Name string
}

// HomePageData contains data for the home page template.
type HomePageData struct {
	PageData
}

// ResultPageData contains data for the result page template.
type ResultPageData struct {
	PageData
	CoverImage string
	Artists    []listening.Artist
	Tracks     []listening.Track
	Facets     []listening.Facet
	TimeRange  string
	FetchedAt  time.Time
	Analyzable bool // False when there is nothing to describe
}

// ErrorPageData contains data for the error page template.
type ErrorPageData struct {
	PageData
	Message string
}

// PersonalityData contains data for the personality partial.
type PersonalityData struct {
	Text    string
	Message string
	Failed  bool
}
