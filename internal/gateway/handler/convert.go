package handler

import (
	"net/http"
	"strconv"

	"screendeck/internal/convert"
)

// DocumentURLHeader carries a presigned link when the deck was stored.
const DocumentURLHeader = "X-Document-URL"

type ConvertHandler struct {
	pipeline *convert.Pipeline
}

func NewConvertHandler(p *convert.Pipeline) *ConvertHandler {
	return &ConvertHandler{pipeline: p}
}

func (h *ConvertHandler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "")
}

// HandleConvertOCR forces the OCR path regardless of the body's mode.
func (h *ConvertHandler) HandleConvertOCR(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, convert.ModeOCR)
}

func (h *ConvertHandler) serve(w http.ResponseWriter, r *http.Request, force convert.Mode) {
	var req convert.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if force != "" {
		req.Mode = string(force)
	}
	out, err := h.pipeline.Convert(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	attachment(w, out.Name, out.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	if out.URL != "" {
		w.Header().Set(DocumentURLHeader, out.URL)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}
