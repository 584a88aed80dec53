package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"screendeck/internal/gateway/handler"
	"screendeck/internal/gateway/middleware"
)

type Handlers struct {
	Convert *handler.ConvertHandler
	History *handler.HistoryHandler
	Health  *handler.HealthHandler
	// Documents is nil when persistence is off.
	Documents *handler.DocumentHandler
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	MaxBody  int64
}

func NewMux(h Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /convert", h.Convert.HandleConvert)
	mux.HandleFunc("POST /convert/ocr", h.Convert.HandleConvertOCR)
	mux.HandleFunc("GET /convert/stream", h.Convert.HandleStream)

	if h.Documents != nil {
		mux.HandleFunc("GET /documents", h.Documents.HandleList)
		mux.HandleFunc("GET /documents/{name}", h.Documents.HandleGet)
		mux.HandleFunc("GET /documents/{name}/preview.png", h.Documents.HandlePreview)
	}
	if h.History != nil {
		mux.HandleFunc("GET /history", h.History.HandleRecent)
	}
	mux.HandleFunc("GET /healthz", h.Health.HandleHealth)

	gatherer := h.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return middleware.Chain(mux,
		middleware.Recover,
		middleware.RequestID,
		middleware.AccessLog,
		middleware.CORS,
		middleware.BodyLimit(h.MaxBody),
	)
}
