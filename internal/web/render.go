package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/logflags"
	"github.com/hpungsan/memclass/internal/ops"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "classes", "inspect"
}

// ClassesPageData is the template data for the class list page.
type ClassesPageData struct {
	PageData
	Items   []ops.ClassSummary
	Source  *ops.SourceOutput
	Project string
}

// ClassPageData is the template data for the class layout page.
type ClassPageData struct {
	PageData
	Class      *ops.ClassDetail
	LayoutHTML template.HTML
	GoSource   string
}

// InspectPageData is the template data for the inspect page.
type InspectPageData struct {
	PageData
	Classes []ops.ClassSummary
	Class   string
	Base    string
	Chain   string
	Depth   int
	Result  *ops.InspectOutput
	Error   string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Code       string
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
		"add": func(a, b int) int { return a + b },
		"hex": func(n int) string { return fmt.Sprintf("0x%02X", n) },
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"classes": "classes.html",
		"class":   "class.html",
		"inspect": "inspect.html",
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
		markdown:  goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

func (r *Renderer) page(title, nav string) PageData {
	return PageData{Title: title, Version: r.version, Nav: nav}
}

// renderPage renders a named page template with HTTP 200.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given status.
// For htmx requests only the "content" block is rendered.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	block := "layout"
	if req != nil && req.Header.Get("HX-Request") == "true" {
		block = "content"
	}
	r.renderBlock(w, status, name, block, data)
}

// renderBlock renders a specific named block from a page template.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, page, block string, data any) {
	log := logflags.WebLogger()
	t, ok := r.templates[page]
	if !ok {
		log.WithField("template", page).Error("template not found")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		log.WithError(err).WithField("template", page).WithField("block", block).Error("template execution failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// asMemclassError maps any error to a MemclassError, wrapping unknown
// errors as INTERNAL.
func asMemclassError(err error) *errors.MemclassError {
	var mErr *errors.MemclassError
	if !stderrors.As(err, &mErr) {
		mErr = errors.NewInternal(err)
	}
	return mErr
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	mErr := asMemclassError(err)
	status := mErr.Status
	message := mErr.Message
	if status >= 500 {
		logflags.WebLogger().WithError(err).WithField("path", req.URL.Path).Error("request failed")
	}

	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		body := map[string]any{
			"code":    string(mErr.Code),
			"message": message,
			"status":  status,
		}
		if mErr.Details != nil && mErr.Code != errors.ErrInternal {
			body["details"] = mErr.Details
		}
		renderJSON(w, status, map[string]any{"error": body})
		return
	}

	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", status), ""),
		StatusCode: status,
		Code:       string(mErr.Code),
		Message:    message,
	})
}

// wantsJSON reports whether the client asked for JSON.
func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML. Raw HTML in the input is
// omitted by goldmark's default renderer.
func (r *Renderer) renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(md) + "</pre>")
	}
	return template.HTML(buf.String())
}

// layoutMarkdown renders a class layout as a Markdown table.
func layoutMarkdown(c *ops.ClassDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** is 0x%X bytes with %d fields.\n\n", escapeMarkdown(c.Name), c.Size, c.FieldCount)
	if len(c.Fields) == 0 {
		return b.String()
	}
	b.WriteString("| # | Offset | Name | Kind | Width | Target |\n")
	b.WriteString("|--:|-------:|------|------|------:|--------|\n")
	for _, f := range c.Fields {
		target := ""
		switch {
		case f.Ref == "valid":
			target = escapeMarkdown(f.TargetName)
		case f.Ref != "":
			target = "*broken*"
		}
		fmt.Fprintf(&b, "| %d | `0x%02X` | %s | `%s` | %d | %s |\n",
			f.Index, f.Offset, escapeMarkdown(f.Name), f.Kind, f.Width, target)
	}
	return b.String()
}

// escapeMarkdown backslash-escapes ASCII punctuation so user text renders
// literally.
func escapeMarkdown(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x80 && strings.ContainsRune("\\`*_{}[]()<>#+-.!|~&", r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
