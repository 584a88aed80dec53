package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"screendeck/internal/apperr"
	"screendeck/internal/convert"
	"screendeck/internal/logging"
)

const (
	streamWriteWait = 10 * time.Second
	streamReadWait  = 30 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = (streamPongWait * 9) / 10
	streamMaxFrame  = 32 << 20
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type frame struct {
	event  *convert.Event
	binary []byte
}

// HandleStream converts one request sent over a websocket. Stage events are
// streamed as JSON, then a done message, then the document as one binary
// frame.
func (h *ConvertHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	log := logging.From(r.Context()).WithField("component", "stream")

	conn.SetReadLimit(streamMaxFrame)
	out := make(chan frame, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(streamPingEvery)
		defer ticker.Stop()
		for {
			select {
			case f, ok := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
				var err error
				if f.event != nil {
					err = conn.WriteJSON(f.event)
				} else {
					err = conn.WriteMessage(websocket.BinaryMessage, f.binary)
				}
				if err != nil {
					log.WithError(err).Debug("stream write failed")
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
	push := func(f frame) {
		select {
		case out <- f:
		case <-writerDone:
		}
	}
	finish := func() {
		close(out)
		<-writerDone
	}

	_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))
	var req convert.Request
	_, raw, err := conn.ReadMessage()
	if err == nil {
		err = json.Unmarshal(raw, &req)
	}
	if err != nil {
		push(frame{event: &convert.Event{Type: convert.EventError, Done: true, Error: "request must be JSON"}})
		finish()
		return
	}

	// Keep reading so pongs and close frames are processed.
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	req.Observe = func(ev convert.Event) { push(frame{event: &ev}) }
	res, err := h.pipeline.Convert(r.Context(), req)
	if err != nil {
		log.WithField("kind", apperr.KindOf(err).String()).WithError(err).Info("stream conversion failed")
	} else {
		push(frame{binary: res.Data})
	}
	finish()
}
