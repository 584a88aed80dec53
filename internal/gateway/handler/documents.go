package handler

import (
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"

	"screendeck/internal/apperr"
	"screendeck/internal/emit"
	docrepo "screendeck/internal/gateway/repository/document"
)

type DocumentHandler struct {
	store docrepo.Store
}

func NewDocumentHandler(store docrepo.Store) *DocumentHandler {
	return &DocumentHandler{store: store}
}

type documentEntry struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// owner resolves the storage owner the same way the emitter names files.
func owner(r *http.Request) string {
	return emit.Sanitize(query(r, "username"))
}

func (h *DocumentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	who := owner(r)
	names, err := h.store.List(r.Context(), who)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Host, err, "failed to list documents"))
		return
	}
	entries := make([]documentEntry, 0, len(names))
	for _, n := range names {
		e := documentEntry{Name: n}
		if u, err := h.store.GetURL(r.Context(), who, n); err == nil {
			e.URL = u
		}
		entries = append(entries, e)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":     who,
		"documents": entries,
	})
}

func (h *DocumentHandler) load(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" || name == ".." || strings.ContainsAny(name, `/\`) {
		writeError(w, r, apperr.New(apperr.Input, "invalid document name"))
		return "", nil, false
	}
	data, err := h.store.Get(r.Context(), owner(r), name)
	switch {
	case errors.Is(err, docrepo.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "document not found"})
		return "", nil, false
	case err != nil:
		writeError(w, r, apperr.Wrap(apperr.Host, err, "failed to read document"))
		return "", nil, false
	}
	return name, data, true
}

func (h *DocumentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name, data, ok := h.load(w, r)
	if !ok {
		return
	}
	attachment(w, name, emit.Format(strings.TrimPrefix(path.Ext(name), ".")).ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// HandlePreview renders ?slide= (1-based, default 1) at ?width= pixels.
func (h *DocumentHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	name, data, ok := h.load(w, r)
	if !ok {
		return
	}
	if !emit.Format(strings.TrimPrefix(path.Ext(name), ".")).Package() {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "only presentations can be previewed"})
		return
	}
	slide, width := 1, 0
	if v := query(r, "slide"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "slide must be a positive integer"})
			return
		}
		slide = n
	}
	if v := query(r, "width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 16 || n > 4096 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "width must be between 16 and 4096"})
			return
		}
		width = n
	}
	img, err := emit.Preview(data, slide-1, width)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, err, "preview failed"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(img)
}
