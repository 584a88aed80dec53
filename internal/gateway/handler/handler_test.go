package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screendeck/internal/codegen"
	"screendeck/internal/convert"
	"screendeck/internal/emit"
	docrepo "screendeck/internal/gateway/repository/document"
	"screendeck/internal/gateway/repository/history"
	"screendeck/internal/llm"
	"screendeck/internal/pptx"
	"screendeck/internal/sandbox"
	"screendeck/internal/tester"
)

const reply = "```python\ndef create_slide():\n    prs = Presentation()\n    slide = prs.slides.add_slide(prs.slide_layouts[6])\n    tb = slide.shapes.add_textbox(Inches(1), Inches(1), Inches(3), Inches(1))\n    tf = tb.text_frame\n    tf.text = \"Hello\"\n    return prs\n```"

type env struct {
	model   *llm.FakeModel
	docs    *docrepo.MemoryStore
	history *history.MemoryStore
	convert *ConvertHandler
}

func newEnv(t *testing.T, replies ...string) *env {
	t.Helper()
	if len(replies) == 0 {
		replies = []string{reply}
	}
	e := &env{
		model:   llm.FakeText("fake", replies...),
		docs:    docrepo.NewMemoryStore(),
		history: history.NewMemoryStore(10),
	}
	reg := llm.NewRegistry("fake")
	reg.Register("fake", e.model)
	p := convert.New(codegen.New(reg), sandbox.New(sandbox.Config{}), emit.New(emit.WithStore(e.docs)), convert.WithHistory(e.history))
	e.convert = NewConvertHandler(p)
	return e
}

func post(h http.HandlerFunc, body, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func body(t *testing.T, image string, extra map[string]any) string {
	t.Helper()
	m := map[string]any{"image": image}
	for k, v := range extra {
		m[k] = v
	}
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	return string(raw)
}

func TestConvertReturnsAttachment(t *testing.T) {
	e := newEnv(t)
	rec := post(e.convert.HandleConvert, body(t, tester.RedSquareDataURI(t), map[string]any{"username": "zoe"}), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, emit.FormatPPTX.ContentType(), rec.Header().Get("Content-Type"))
	cd := rec.Header().Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(cd, "attachment; filename=zoe_"), cd)

	sum, err := pptx.Inspect(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello"}, sum.Slides[0].Texts)
	assert.Equal(t, 1, sum.Slides[0].Shapes)

	names, err := e.docs.List(context.Background(), "zoe")
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

const redSquareReply = "```python\n" + `from pptx import Presentation
from pptx.util import Inches
from pptx.dml.color import RGBColor
from pptx.enum.shapes import MSO_SHAPE

def create_slide():
    prs = Presentation()
    slide = prs.slides.add_slide(prs.slide_layouts[6])
    sq = slide.shapes.add_shape(MSO_SHAPE.RECTANGLE, Inches(1), Inches(1), Inches(2), Inches(2))
    sq.fill.solid()
    sq.fill.fore_color.rgb = RGBColor(255, 0, 0)
    return prs
` + "```"

func TestConvertRedSquareHasOneShape(t *testing.T) {
	e := newEnv(t, redSquareReply)
	rec := post(e.convert.HandleConvert, body(t, tester.RedSquareDataURI(t), nil), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sum, err := pptx.Inspect(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, sum.Slides, 1)
	assert.Equal(t, 1, sum.Slides[0].Shapes)
}

func TestConvertForbiddenFreeformIs400(t *testing.T) {
	freeform := "```python\ndef create_slide():\n    prs = Presentation()\n    slide = prs.slides.add_slide(prs.slide_layouts[6])\n    slide.shapes.add_freeform(0, 0)\n    return prs\n```"
	e := newEnv(t, freeform)
	rec := post(e.convert.HandleConvert, body(t, tester.RedSquareDataURI(t), map[string]any{"username": "eve"}), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Disposition"))

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Contains(t, got["error"], "add_freeform")

	_, err := pptx.Inspect(rec.Body.Bytes())
	assert.ErrorIs(t, err, pptx.ErrNotPackage)
	names, err := e.docs.List(context.Background(), "eve")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestConvertRejectsNonJSON(t *testing.T) {
	e := newEnv(t)
	rec := post(e.convert.HandleConvert, "image=abc", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"request must be JSON"}`, rec.Body.String())

	rec = post(e.convert.HandleConvert, "{not json", "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"request must be JSON"}`, rec.Body.String())
}

func TestConvertMissingImage(t *testing.T) {
	e := newEnv(t)
	rec := post(e.convert.HandleConvert, `{"username":"x"}`, "application/json; charset=utf-8")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"no image provided"}`, rec.Body.String())
	assert.Equal(t, 0, e.model.Calls())
}

func TestConvertUnknownProvider(t *testing.T) {
	e := newEnv(t)
	rec := post(e.convert.HandleConvert, body(t, tester.RedSquareDataURI(t), map[string]any{"provider": "nope"}), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown provider: nope")
}

func TestConvertExtractionFailure(t *testing.T) {
	e := newEnv(t, "I cannot help with that.")
	rec := post(e.convert.HandleConvert, body(t, tester.RedSquareDataURI(t), nil), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"no valid code generated"}`, rec.Body.String())
	assert.Equal(t, 2, e.model.Calls(), "one retry")
}

func TestConvertOCRUnavailableIs500(t *testing.T) {
	e := newEnv(t)
	rec := post(e.convert.HandleConvertOCR, body(t, tester.RedSquareDataURI(t), map[string]any{"mode": "script"}), "application/json")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, e.model.Calls())
}

func TestHistoryHandler(t *testing.T) {
	e := newEnv(t)
	post(e.convert.HandleConvert, body(t, tester.RedSquareDataURI(t), map[string]any{"username": "kim"}), "application/json")

	h := NewHistoryHandler(e.history)
	rec := httptest.NewRecorder()
	h.HandleRecent(rec, httptest.NewRequest(http.MethodGet, "/history?username=kim", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Records []history.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Records, 1)
	assert.Equal(t, history.StatusSucceeded, out.Records[0].Status)

	rec = httptest.NewRecorder()
	h.HandleRecent(rec, httptest.NewRequest(http.MethodGet, "/history?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentHandler(t *testing.T) {
	store := docrepo.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "lee", "lee_20260101_000000.pptx", []byte("PK")))
	h := NewDocumentHandler(store)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /documents", h.HandleList)
	mux.HandleFunc("GET /documents/{name}", h.HandleGet)
	mux.HandleFunc("GET /documents/{name}/preview.png", h.HandlePreview)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents?username=lee", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"owner":"lee","documents":[{"name":"lee_20260101_000000.pptx"}]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/lee_20260101_000000.pptx?username=lee", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PK", rec.Body.String())
	assert.Equal(t, emit.FormatPPTX.ContentType(), rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/missing.pptx?username=lee", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/lee_20260101_000000.pptx/preview.png?username=lee&slide=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler([]string{"fake"}, "fake", false, true).HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.JSONEq(t, `{"status":"ok","providers":["fake"],"default_provider":"fake","ocr":false,"persist":true}`, rec.Body.String())
}

func TestStreamEndsWithDoneAndDocument(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(e.convert.HandleStream))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(body(t, tester.RedSquareDataURI(t), map[string]any{"username": "ws"}))))

	var (
		events []convert.Event
		doc    []byte
	)
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if kind == websocket.BinaryMessage {
			doc = data
			continue
		}
		var ev convert.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.Done)
	assert.Equal(t, convert.EventDone, last.Type)
	assert.Equal(t, len(doc), last.Size)
	_, err = pptx.Inspect(doc)
	assert.NoError(t, err)
}

func TestStreamBadRequest(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(e.convert.HandleStream))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("nope")))

	var ev convert.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.True(t, ev.Done)
	assert.Equal(t, "request must be JSON", ev.Error)
}
