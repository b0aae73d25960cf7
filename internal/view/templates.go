package view

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flashes     []shared.FlashMessage
	User        shared.Principal
	Banner      string
	CurrentPath string
	Data        any
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02-01-2006")
		},
		"formatDateTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"inputDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"formatMoney": shared.FormatMoney,
		"balanceTone": shared.BalanceTone,
		"isNegative":  func(d decimal.Decimal) bool { return d.IsNegative() },
		"add":         func(a, b int) int { return a + b },
		"sub":         func(a, b int) int { return a - b },
		"dict":        dict,
		"hasRole": func(p shared.Principal, roles ...string) bool {
			for _, r := range roles {
				if string(p.Role) == r {
					return true
				}
			}
			return false
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "layouts/*.html", "partials/*.html", "pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// dict builds a map from alternating keys and values so partials can take several
// arguments.
func dict(pairs ...any) (map[string]any, error) {
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
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// Execute renders a named template into w without page headers. Used for documents handed to
// the PDF renderer.
func (e *Engine) Execute(w io.Writer, name string, data any) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	return e.templates.ExecuteTemplate(w, name, data)
}

// Hook decorates the page data of a request, e.g. with a status banner.
type Hook func(ctx context.Context, sess *shared.Session, data *TemplateData)

// Pages assembles TemplateData from the request session and renders it.
type Pages struct {
	Engine *Engine
	CSRF   *shared.CSRFManager
	Logger *slog.Logger
	Hooks  []Hook
}

// Render draws name for the current request.
func (p *Pages) Render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	p.RenderStatus(w, r, http.StatusOK, name, title, data)
}

// RenderStatus draws name with an explicit status code.
func (p *Pages) RenderStatus(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	td := TemplateData{
		Title:       title,
		User:        shared.PrincipalFromContext(ctx),
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if p.CSRF != nil && sess != nil {
		token, err := p.CSRF.EnsureToken(ctx, sess)
		if err != nil {
			p.Logger.Error("csrf token", slog.Any("error", err))
		}
		td.CSRFToken = token
	}
	for _, hook := range p.Hooks {
		hook(ctx, sess, &td)
	}
	td.Flashes = append(td.Flashes, shared.DrainFlashes(sess)...)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := p.Engine.templates.ExecuteTemplate(w, name, td); err != nil {
		p.Logger.Error("render template", slog.String("template", name), slog.Any("error", err))
	}
}

// Redirect queues flash on the session and redirects with 303.
func Redirect(w http.ResponseWriter, r *http.Request, to string, flashes ...shared.FlashMessage) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		for _, f := range flashes {
			sess.AddFlash(f)
		}
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}
