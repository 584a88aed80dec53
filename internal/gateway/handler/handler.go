// Package handler implements the gateway HTTP endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"screendeck/internal/apperr"
	"screendeck/internal/logging"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status and a client-safe message. Details of
// 5xx errors are only logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	entry := logging.From(r.Context()).WithError(err).WithField("kind", apperr.KindOf(err).String())
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}
	writeJSON(w, status, errorBody{Error: apperr.PublicMessage(err)})
}

// decodeJSON reads a JSON body into v. Failures are Input errors.
func decodeJSON(r *http.Request, v any) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/json" {
		return apperr.New(apperr.Input, "request must be JSON")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Wrap(apperr.Input, err, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return apperr.Wrap(apperr.Input, err, "request must be JSON")
	}
	return nil
}

func attachment(w http.ResponseWriter, name, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
}

func query(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
