package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPHost talks to a remote automation agent. Each HTTPHost is one
// session; create a new one per conversion.
//
// Agent protocol (JSON unless noted):
//
//	POST   /sessions                    -> {"session": id}
//	POST   /sessions/{id}/documents
//	POST   /sessions/{id}/modules       {"name", "source"}
//	POST   /sessions/{id}/run           {"procedure"}
//	POST   /sessions/{id}/save          {"name", "format"} -> document bytes
//	POST   /sessions/{id}/close
//	DELETE /sessions/{id}
//
// Errors are {"error": msg, "macro": bool}; macro=true marks a fault in the
// injected code.
type HTTPHost struct {
	base    string
	http    *http.Client
	session string
}

const maxDocumentBytes = 64 << 20

func NewHTTPHost(baseURL string, client *http.Client) *HTTPHost {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &HTTPHost{base: strings.TrimRight(baseURL, "/"), http: client}
}

// NewHTTPHostFactory returns a constructor suitable for per-request sessions.
func NewHTTPHostFactory(baseURL string, client *http.Client) func() Host {
	return func() Host { return NewHTTPHost(baseURL, client) }
}

type agentError struct {
	Error string `json:"error"`
	Macro bool   `json:"macro"`
}

var errNoSession = errors.New("automation: no session")

func (h *HTTPHost) Start(ctx context.Context) error {
	var out struct {
		Session string `json:"session"`
	}
	body, err := h.do(ctx, http.MethodPost, "/sessions", nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("automation: decode session: %w", err)
	}
	if out.Session == "" {
		return errNoSession
	}
	h.session = out.Session
	return nil
}

func (h *HTTPHost) NewDocument(ctx context.Context) error {
	_, err := h.sessionCall(ctx, http.MethodPost, "/documents", nil)
	return err
}

func (h *HTTPHost) InjectModule(ctx context.Context, name, source string) error {
	_, err := h.sessionCall(ctx, http.MethodPost, "/modules", map[string]string{"name": name, "source": source})
	return err
}

func (h *HTTPHost) RunProcedure(ctx context.Context, qualified string) error {
	_, err := h.sessionCall(ctx, http.MethodPost, "/run", map[string]string{"procedure": qualified})
	return err
}

func (h *HTTPHost) SaveAs(ctx context.Context, name string, format int) ([]byte, error) {
	return h.sessionCall(ctx, http.MethodPost, "/save", map[string]any{"name": name, "format": format})
}

func (h *HTTPHost) Close(ctx context.Context) error {
	_, err := h.sessionCall(ctx, http.MethodPost, "/close", nil)
	return err
}

func (h *HTTPHost) Quit(ctx context.Context) error {
	if h.session == "" {
		return nil
	}
	_, err := h.do(ctx, http.MethodDelete, "/sessions/"+h.session, nil)
	h.session = ""
	return err
}

func (h *HTTPHost) sessionCall(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if h.session == "" {
		return nil, errNoSession
	}
	return h.do(ctx, method, "/sessions/"+h.session+path, payload)
}

func (h *HTTPHost) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.base+path, rd)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae agentError
		if json.Unmarshal(body, &ae) == nil && ae.Error != "" {
			if ae.Macro {
				return nil, &MacroError{Message: ae.Error}
			}
			return nil, fmt.Errorf("automation: %s %s: %s", method, path, ae.Error)
		}
		return nil, errors.New("automation: unexpected status " + resp.Status)
	}
	return body, nil
}
