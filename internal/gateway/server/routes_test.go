package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"screendeck/internal/codegen"
	"screendeck/internal/convert"
	"screendeck/internal/emit"
	"screendeck/internal/gateway/handler"
	"screendeck/internal/gateway/middleware"
	"screendeck/internal/llm"
	"screendeck/internal/metrics"
	"screendeck/internal/sandbox"
)

func testMux(t *testing.T) http.Handler {
	t.Helper()
	reg := llm.NewRegistry("fake")
	reg.Register("fake", llm.NewFakeModel("fake"))
	promReg := prometheus.NewRegistry()
	m, err := metrics.New("test", promReg)
	if err != nil {
		t.Fatal(err)
	}
	p := convert.New(codegen.New(reg), sandbox.New(sandbox.Config{}), emit.New(), convert.WithMetrics(m))
	return NewMux(Handlers{
		Convert:  handler.NewConvertHandler(p),
		Health:   handler.NewHealthHandler(reg.Names(), reg.Default(), false, false),
		Gatherer: promReg,
		MaxBody:  1 << 20,
	})
}

func TestRoutes(t *testing.T) {
	mux := testMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "documents are not routed without persistence")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/convert", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsAfterConversion(t *testing.T) {
	mux := testMux(t)
	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(`{"image":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_conversions_total{mode="script",outcome="input"} 1`)
}

func TestBodyLimitApplies(t *testing.T) {
	mux := testMux(t)
	big := `{"image":"` + strings.Repeat("A", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "request body exceeds")
}
