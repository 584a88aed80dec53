package automation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screendeck/internal/apperr"
	"screendeck/internal/tester"
)

const macro = "Sub CreatePresentation()\n  Dim s As Slide\nEnd Sub"

type fakeHost struct {
	calls  []string
	failAt string
	err    error
	doc    []byte
}

func (f *fakeHost) step(name string) error {
	f.calls = append(f.calls, name)
	if name == f.failAt {
		return f.err
	}
	return nil
}

func (f *fakeHost) Start(context.Context) error       { return f.step("start") }
func (f *fakeHost) NewDocument(context.Context) error { return f.step("new") }
func (f *fakeHost) InjectModule(_ context.Context, name, _ string) error {
	return f.step("inject:" + name)
}
func (f *fakeHost) RunProcedure(_ context.Context, q string) error { return f.step("run:" + q) }
func (f *fakeHost) SaveAs(_ context.Context, _ string, format int) ([]byte, error) {
	if err := f.step("save"); err != nil {
		return nil, err
	}
	if format != FormatMacroEnabled {
		return nil, errors.New("wrong format")
	}
	return f.doc, nil
}
func (f *fakeHost) Close(context.Context) error { return f.step("close") }
func (f *fakeHost) Quit(context.Context) error  { return f.step("quit") }

func TestRunMacroSequence(t *testing.T) {
	h := &fakeHost{doc: []byte("PK-pptm")}
	out, err := RunMacro(context.Background(), h, "deck.pptm", macro)
	tester.NoErr(t, err)
	tester.Eq(t, string(out), "PK-pptm")
	tester.Eq(t, h.calls, []string{"start", "new", "inject:MyModule", "run:MyModule.CreatePresentation", "save", "close", "quit"})
}

func TestRunMacroAlwaysCloses(t *testing.T) {
	for _, step := range []string{"new", "inject:MyModule", "run:MyModule.CreatePresentation", "save"} {
		t.Run(step, func(t *testing.T) {
			h := &fakeHost{failAt: step, err: errors.New("rpc failed")}
			_, err := RunMacro(context.Background(), h, "x.pptm", macro)
			require.Error(t, err)
			assert.Equal(t, apperr.Host, apperr.KindOf(err))
			n := len(h.calls)
			require.GreaterOrEqual(t, n, 2)
			tester.Eq(t, h.calls[n-2:], []string{"close", "quit"})
		})
	}
}

func TestRunMacroStartFailureSkipsCleanup(t *testing.T) {
	h := &fakeHost{failAt: "start", err: errors.New("no host")}
	_, err := RunMacro(context.Background(), h, "x.pptm", macro)
	tester.Eq(t, apperr.KindOf(err), apperr.Host)
	tester.Eq(t, h.calls, []string{"start"})
}

func TestRunMacroFaultIsExecution(t *testing.T) {
	h := &fakeHost{failAt: "run:MyModule.CreatePresentation", err: &MacroError{Message: "Compile error: Sub or Function not defined"}}
	_, err := RunMacro(context.Background(), h, "x.pptm", macro)
	require.Error(t, err)
	tester.Eq(t, apperr.KindOf(err), apperr.Execution)
	assert.Contains(t, err.Error(), "Sub or Function not defined")
	tester.Eq(t, apperr.HTTPStatus(err), http.StatusBadRequest)
}

func TestRunMacroRequiresEntryPoint(t *testing.T) {
	h := &fakeHost{}
	_, err := RunMacro(context.Background(), h, "x.pptm", "Sub Other()\nEnd Sub")
	tester.Eq(t, apperr.KindOf(err), apperr.Validation)
	tester.Eq(t, len(h.calls), 0)
}

func TestRunMacroEmptyDocument(t *testing.T) {
	_, err := RunMacro(context.Background(), &fakeHost{}, "x.pptm", macro)
	tester.Eq(t, apperr.KindOf(err), apperr.Host)
}

// agent is an in-memory automation agent speaking the HTTPHost protocol.
type agent struct {
	mu      sync.Mutex
	paths   []string
	modules map[string]string
	runErr  string
}

func (a *agent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, r.Method+" "+r.URL.Path)
	switch {
	case r.URL.Path == "/sessions" && r.Method == http.MethodPost:
		_ = json.NewEncoder(w).Encode(map[string]string{"session": "s1"})
	case r.URL.Path == "/sessions/s1/modules":
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		a.modules[in["name"]] = in["source"]
	case r.URL.Path == "/sessions/s1/run" && a.runErr != "":
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": a.runErr, "macro": true})
	case r.URL.Path == "/sessions/s1/save":
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["format"] != float64(FormatMacroEnabled) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "bad format"})
			return
		}
		_, _ = w.Write([]byte("PK\x03\x04pptm"))
	case strings.HasPrefix(r.URL.Path, "/sessions/s1"):
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func TestHTTPHostRoundTrip(t *testing.T) {
	a := &agent{modules: map[string]string{}}
	srv := httptest.NewServer(a)
	defer srv.Close()

	out, err := RunMacro(context.Background(), NewHTTPHost(srv.URL+"/", srv.Client()), "deck.pptm", macro)
	tester.NoErr(t, err)
	tester.Eq(t, string(out), "PK\x03\x04pptm")
	tester.Eq(t, a.modules["MyModule"], macro)
	tester.Eq(t, a.paths, []string{
		"POST /sessions",
		"POST /sessions/s1/documents",
		"POST /sessions/s1/modules",
		"POST /sessions/s1/run",
		"POST /sessions/s1/save",
		"POST /sessions/s1/close",
		"DELETE /sessions/s1",
	})
}

func TestHTTPHostMacroFault(t *testing.T) {
	a := &agent{modules: map[string]string{}, runErr: "Run-time error '91'"}
	srv := httptest.NewServer(a)
	defer srv.Close()

	_, err := RunMacro(context.Background(), NewHTTPHost(srv.URL, nil), "deck.pptm", macro)
	require.Error(t, err)
	tester.Eq(t, apperr.KindOf(err), apperr.Execution)
	assert.Contains(t, err.Error(), "Run-time error '91'")
	assert.Equal(t, "DELETE /sessions/s1", a.paths[len(a.paths)-1])
}

func TestHTTPHostUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	_, err := RunMacro(context.Background(), NewHTTPHost(srv.URL, nil), "deck.pptm", macro)
	tester.Eq(t, apperr.KindOf(err), apperr.Host)
	tester.Eq(t, apperr.PublicMessage(err), "automation host failure")
}
