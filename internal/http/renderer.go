package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// On-disk template locations, relative to the repo root and to this package.
const (
	TemplatePathFromRoot = "frontend/templates"
	StaticPathFromRoot   = "frontend/static"
	TemplatePathFromTest = "../../frontend/templates"
)

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("January 2, 2006")
	},
}

// TemplateRenderer renders the server-side HTML pages. Output is buffered so
// a failing template never leaves a partial page on the wire.
type TemplateRenderer struct {
	t      *template.Template
	logger *slog.Logger
	bufs   sync.Pool
}

// TemplateRendererConfig configures NewTemplateRenderer. TemplateFS must hold
// pages/*.tmpl and partials/*.tmpl.
type TemplateRendererConfig struct {
	TemplateFS fs.FS
	Logger     *slog.Logger
}

// NewTemplateRenderer parses every page and partial up front.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("template filesystem is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	t, err := template.New("root").Funcs(templateFuncs).ParseFS(cfg.TemplateFS, "pages/*.tmpl", "partials/*.tmpl")
	if err != nil {
		logger.Error("parse templates", "error", err)
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &TemplateRenderer{
		t:      t,
		logger: logger,
		bufs:   sync.Pool{New: func() any { return new(bytes.Buffer) }},
	}, nil
}

// Render executes the named page and writes it with status.
func (r *TemplateRenderer) Render(w http.ResponseWriter, status int, name string, data any) error {
	buf, _ := r.bufs.Get().(*bytes.Buffer)
	buf.Reset()
	defer r.bufs.Put(buf)

	if err := r.t.ExecuteTemplate(buf, name, data); err != nil {
		r.logger.Error("render template", "template", name, "error", err)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.Warn("write rendered page", "template", name, "error", err)
		return err
	}
	return nil
}
