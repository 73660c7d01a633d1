package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
	"github.com/hpungsan/nosh/internal/ops"
	"github.com/hpungsan/nosh/internal/reply"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Phone   string
	Nav     string // active nav item: "summary", "entries"
}

// DayPageData is the template data for the daily summary page.
type DayPageData struct {
	PageData
	Date         string
	PrevDate     string
	NextDate     string
	RenderedHTML template.HTML
}

// EntriesPageData is the template data for the entry list page.
type EntriesPageData struct {
	PageData
	Items      []nutrition.FoodLogEntry
	Pagination ops.Pagination
	Location   *time.Location
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	markdown  goldmark.Markdown
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
		"formatTime": formatTime,
		"calories":   func(v *float64) string { return reply.Amount(nutrition.Calories, v) },
		"grams":      func(v *float64) string { return reply.Amount(nutrition.Protein, v) },
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"day":     "day.html",
		"entries": "entries.html",
		"error":   "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
	}
}

// page returns PageData with the renderer's version filled in.
func (r *Renderer) page(title, phone, nav string) PageData {
	return PageData{Title: title, Version: r.version, Phone: phone, Nav: nav}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For HTMX requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		slog.ErrorContext(req.Context(), "template not found", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if req.Header.Get("HX-Request") == "true" {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		slog.ErrorContext(req.Context(), "template execution failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	nErr := asNoshError(err)
	logError(req, nErr)

	// HTMX request: return HTML fragment
	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(nErr.Status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(nErr.Message))
		return
	}

	if wantsJSON(req) {
		writeJSONError(w, nErr)
		return
	}

	// Full error page
	r.renderPageStatus(w, req, nErr.Status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", nErr.Status), "", ""),
		StatusCode: nErr.Status,
		Message:    nErr.Message,
	})
}

// renderMarkdown converts markdown text to HTML using goldmark with GFM tables.
func (r *Renderer) renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(md) + "</pre>")
	}
	return template.HTML(buf.String())
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderJSONError logs err and writes it in the API error envelope.
func renderJSONError(w http.ResponseWriter, req *http.Request, err error) {
	nErr := asNoshError(err)
	logError(req, nErr)
	writeJSONError(w, nErr)
}

func writeJSONError(w http.ResponseWriter, nErr *errors.NoshError) {
	renderJSON(w, nErr.Status, map[string]any{
		"error": map[string]any{
			"code":    string(nErr.Code),
			"message": nErr.Message,
			"status":  nErr.Status,
		},
	})
}

func asNoshError(err error) *errors.NoshError {
	if nErr, ok := errors.As(err); ok {
		return nErr
	}
	return errors.NewInternal(err)
}

// logError reports server-side failures; client errors stay at debug.
func logError(req *http.Request, nErr *errors.NoshError) {
	if nErr.Status >= 500 {
		slog.ErrorContext(req.Context(), "request failed",
			"method", req.Method, "path", req.URL.Path, "request_id", RequestID(req.Context()),
			"code", string(nErr.Code), "error", nErr)
		return
	}
	slog.DebugContext(req.Context(), "request rejected",
		"method", req.Method, "path", req.URL.Path, "code", string(nErr.Code), "message", nErr.Message)
}

// wantsJSON reports whether the client asked for JSON.
func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" in loc.
func formatTime(unix int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(unix, 0).In(loc).Format("2006-01-02 15:04")
}
