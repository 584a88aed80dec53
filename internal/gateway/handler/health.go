package handler

import "net/http"

type HealthHandler struct {
	providers       []string
	defaultProvider string
	ocr             bool
	persist         bool
}

func NewHealthHandler(providers []string, defaultProvider string, ocr, persist bool) *HealthHandler {
	return &HealthHandler{providers: providers, defaultProvider: defaultProvider, ocr: ocr, persist: persist}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"providers":        h.providers,
		"default_provider": h.defaultProvider,
		"ocr":              h.ocr,
		"persist":          h.persist,
	})
}
