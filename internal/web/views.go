package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/starford/sitepanel/internal/content"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

type views struct {
	login *template.Template
	panel *template.Template
}

var funcs = template.FuncMap{
	"path": func(p content.Path) (string, error) {
		raw, err := p.MarshalJSON()
		return string(raw), err
	},
	"inc": func(i int) int { return i + 1 },
}

func parseViews() (*views, error) {
	parse := func(page string) (*template.Template, error) {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/blocks.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("web: parse %s: %w", page, err)
		}
		return t, nil
	}
	login, err := parse("login.html")
	if err != nil {
		return nil, err
	}
	panel, err := parse("panel.html")
	if err != nil {
		return nil, err
	}
	return &views{login: login, panel: panel}, nil
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
