package web

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	sess     *ops.Session
	renderer *Renderer
}

// HandleClasses handles GET /classes, the class list.
func (h *Handlers) HandleClasses(w http.ResponseWriter, r *http.Request) {
	list := h.sess.ListClasses()
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, list)
		return
	}
	h.renderer.renderPage(w, r, "classes", ClassesPageData{
		PageData: h.renderer.page("Classes", "classes"),
		Items:    list.Items,
		Source:   h.sess.SourceInfo(),
		Project:  h.sess.ProjectPath(),
	})
}

// HandleClass handles GET /classes/{id}, one class layout with its
// generated Go declaration.
func (h *Handlers) HandleClass(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("class id is required"))
		return
	}

	class, err := h.sess.GetClass(ops.GetClassInput{Class: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, class)
		return
	}

	gen, err := h.sess.Generate(ops.GenerateInput{Classes: []string{class.ID}, Language: "go"})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "class", ClassPageData{
		PageData:   h.renderer.page(class.Name, "classes"),
		Class:      class,
		LayoutHTML: h.renderer.renderMarkdown(layoutMarkdown(class)),
		GoSource:   gen.Source,
	})
}

// HandleInspect handles GET /inspect. Query parameters class, base, chain
// and depth are optional; empty values fall back to the session selection.
func (h *Handlers) HandleInspect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := InspectPageData{
		PageData: h.renderer.page("Inspect", "inspect"),
		Classes:  h.sess.ListClasses().Items,
		Class:    q.Get("class"),
		Base:     q.Get("base"),
		Chain:    q.Get("chain"),
	}

	depth, err := parseIntParam(r, "depth", 0)
	if err == nil {
		data.Depth = depth
		data.Result, err = h.sess.Inspect(r.Context(), ops.InspectInput{
			Class: data.Class,
			Base:  data.Base,
			Chain: data.Chain,
			Depth: depth,
		})
	}

	if wantsJSON(r) {
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, data.Result)
		return
	}

	status := http.StatusOK
	if err != nil {
		mErr := asMemclassError(err)
		status = mErr.Status
		data.Error = mErr.Message
		data.Result = nil
	}
	h.renderer.renderPageStatus(w, r, status, "inspect", data)
}

// HandleWrite handles POST /inspect/write. The form carries the selection
// (class, base, chain), the field (index or field name) and the value text.
func (h *Handlers) HandleWrite(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	input := ops.WriteFieldInput{
		Class: r.PostFormValue("class"),
		Base:  r.PostFormValue("base"),
		Chain: r.PostFormValue("chain"),
		Value: r.PostFormValue("value"),
		Field: ops.FieldRef{Name: r.PostFormValue("field")},
	}
	if s := r.PostFormValue("index"); s != "" {
		i, err := strconv.Atoi(s)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("index must be an integer"))
			return
		}
		input.Field.Index = &i
	}

	result, err := h.sess.WriteField(r.Context(), input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	back := url.Values{}
	for _, key := range []string{"class", "base", "chain", "depth"} {
		if v := r.PostFormValue(key); v != "" {
			back.Set(key, v)
		}
	}
	target := "/inspect"
	if len(back) > 0 {
		target += "?" + back.Encode()
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewInvalidRequest(name + " must be an integer")
	}
	return v, nil
}
