package handler

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/kazna/internal/auth"
	"github.com/dukerupert/kazna/internal/treasury"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"date": func(v any) string {
		switch t := v.(type) {
		case time.Time:
			return t.Format("02.01.2006")
		case *time.Time:
			if t != nil {
				return t.Format("02.01.2006")
			}
		}
		return ""
	},
}

type PageHandler struct {
	service   *treasury.Service
	templates *template.Template
	logger    *slog.Logger
}

func NewPageHandler(svc *treasury.Service, logger *slog.Logger) *PageHandler {
	tmpl := template.Must(template.New("").Funcs(pageFuncs).ParseFS(templateFS, "templates/*.html"))
	return &PageHandler{
		service:   svc,
		templates: tmpl,
		logger:    logger,
	}
}

// Dashboard handles GET / and renders the view for the caller's role.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	d, err := h.service.Dashboard(r.Context(), auth.IsAdmin(r.Context()))
	if err != nil {
		h.logger.Error("load dashboard", "error", err)
		http.Error(w, "failed to load data", http.StatusInternalServerError)
		return
	}

	h.render(w, "dashboard.html", map[string]any{"D": d, "Lang": h.service.Locale()})
}

func (h *PageHandler) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("render template", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}
