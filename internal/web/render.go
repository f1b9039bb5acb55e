package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/desertthunder/wrapped/internal/models"
	"github.com/gorilla/csrf"
)

const layout = "base.html"

// Page is the data every template receives.
type Page struct {
	Title     string
	Profile   *models.Profile
	Theme     string
	Lang      models.Language
	Languages []models.Language
	Themes    []string
	Flashes   []Flash
	Data      any

	// CSRFField is the hidden form input carrying CSRFToken.
	CSRFField template.HTML
	CSRFToken string
}

// LoggedIn reports whether the page is rendered for a logged-in profile.
func (p Page) LoggedIn() bool { return p.Profile != nil }

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"datetime": func(w *models.Wrap) string {
		return w.CreatedAt().Local().Format("Jan 2, 2006 15:04")
	},
	"join": strings.Join,
}

// parseTemplates parses every page together with the shared layout, keyed by file name without
// the extension.
func parseTemplates() (map[string]*template.Template, error) {
	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		name := path.Base(page)
		if name == layout {
			continue
		}

		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/"+layout, page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		templates[strings.TrimSuffix(name, ".html")] = t
	}
	return templates, nil
}

// page builds the common template data for r and consumes its flashes.
func (a *App) page(w http.ResponseWriter, r *http.Request, title string, data any) Page {
	s := a.session(r)
	flashes := popFlashes(s)
	if len(flashes) > 0 {
		a.saveSession(w, r, s)
	}

	p, _ := a.currentProfile(r)
	return Page{
		Title:     title,
		Profile:   p,
		Theme:     themeOf(s),
		Lang:      languageOf(s),
		Languages: models.Languages,
		Themes:    Themes,
		Flashes:   flashes,
		Data:      data,
		CSRFField: csrf.TemplateField(r),
		CSRFToken: csrf.Token(r),
	}
}

// render executes the named template into a buffer so a failing template never sends a partial page.
func (a *App) render(w http.ResponseWriter, status int, name string, page Page) {
	t, ok := a.templates[name]
	if !ok {
		a.logger.Error("template not found", "template", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, layout, page); err != nil {
		a.logger.Error("failed to render template", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
