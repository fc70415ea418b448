package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"photoflow-web/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page is the data every template receives.
type Page struct {
	Title  string
	Path   string
	User   *model.User
	Tenant *model.Tenant
	// Loading renders skeletons where user data would go.
	Loading   bool
	Flash     *Flash
	Form      map[string]string
	FormError string
	Success   string
	Data      map[string]any
}

func (p Page) Value(field string) string {
	if p.Form == nil {
		return ""
	}
	return p.Form[field]
}

// Renderer executes the embedded page templates inside the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	entries, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: map[string]*template.Template{}}
	for _, entry := range entries {
		name := strings.TrimSuffix(path.Base(entry), ".html")
		if name == "layout" || name == "partials" {
			continue
		}

		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/partials.html", entry)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}

	return r, nil
}

// Render writes page with status. Execution errors turn into a plain 500.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Page) {
	tmpl, ok := r.pages[page]
	if !ok {
		slog.Error("unknown template", "page", page)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("template execution failed", "page", page, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error renders the error page. It matches middleware.ErrorRenderer.
func (r *Renderer) Error(w http.ResponseWriter, req *http.Request, status int, message string) {
	r.Render(w, status, "error", Page{
		Title: http.StatusText(status),
		Path:  req.URL.Path,
		Data:  map[string]any{"Status": status, "Message": message},
	})
}

// Static serves the embedded assets under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

var funcs = template.FuncMap{
	"dict": func(pairs ...any) (map[string]any, error) {
		if len(pairs)%2 != 0 {
			return nil, fmt.Errorf("dict: odd number of arguments")
		}
		out := make(map[string]any, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			key, ok := pairs[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
			}
			out[key] = pairs[i+1]
		}
		return out, nil
	},
	"avatarURL": func(u *model.User) string {
		if u == nil {
			return "/avatar/_.png"
		}
		initials := u.Initials()
		if initials == "" {
			initials = "_"
		}
		return "/avatar/" + initials + ".png"
	},
	"longDate": func(raw string) string {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.Format("January 2, 2006")
			}
		}
		return raw
	},
	"bytes": func(n int64) string {
		const unit = 1024
		if n < unit {
			return fmt.Sprintf("%d B", n)
		}
		div, exp := int64(unit), 0
		for v := n / unit; v >= unit; v /= unit {
			div *= unit
			exp++
		}
		return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
	},
	"active": func(current string, prefix string) bool {
		return current == prefix || strings.HasPrefix(current, prefix+"/")
	},
	"year": func() int { return time.Now().Year() },
}
