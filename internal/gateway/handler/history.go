package handler

import (
	"net/http"
	"strconv"

	"screendeck/internal/apperr"
	"screendeck/internal/gateway/repository/history"
)

type HistoryHandler struct {
	store history.Store
}

func NewHistoryHandler(store history.Store) *HistoryHandler {
	return &HistoryHandler{store: store}
}

func (h *HistoryHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if v := query(r, "limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, apperr.New(apperr.Input, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	recs, err := h.store.Recent(r.Context(), query(r, "username"), limit)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Host, err, "failed to read history"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}
