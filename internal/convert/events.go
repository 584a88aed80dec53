package convert

import "screendeck/internal/sandbox"

type Stage string

const (
	StageIngest     Stage = "ingest"
	StageOCR        Stage = "ocr"
	StageGenerate   Stage = "generate"
	StageExecute    Stage = "execute"
	StageAutomation Stage = "automation"
	StageEmit       Stage = "emit"
)

type EventType string

const (
	EventStage EventType = "stage"
	// EventLifecycle reports a script lifecycle transition.
	EventLifecycle EventType = "lifecycle"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

type Event struct {
	Type      EventType `json:"type"`
	Stage     string    `json:"stage,omitempty"`
	Status    string    `json:"status,omitempty"`
	ElapsedMs int64     `json:"elapsed_ms,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Error     string    `json:"error,omitempty"`

	Done        bool   `json:"done,omitempty"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size,omitempty"`
	URL         string `json:"document_url,omitempty"`
}

// Observer receives events on the converting goroutine. It must not block
// for long.
type Observer func(Event)

func lifecycleEvent(t sandbox.Transition) Event {
	return Event{Type: EventLifecycle, Stage: t.To.String(), Detail: t.From.String(), Error: t.Reason}
}
