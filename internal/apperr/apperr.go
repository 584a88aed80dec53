// Package apperr classifies conversion failures so the gateway can map them
// to client-visible statuses without inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// Kind is the failure class of an error.
type Kind int

const (
	// Internal covers anything unanticipated. It is the zero value so that
	// unclassified errors never leak as client faults.
	Internal Kind = iota
	// Input is a malformed or missing request field.
	Input
	// Generation is a provider failure or an empty response after retry.
	Generation
	// Extraction means no code block could be found in the model output.
	Extraction
	// Validation is a static rejection of the generated script.
	Validation
	// Execution is a runtime fault inside the sandbox or the macro.
	Execution
	// Host is a failure of the environment (automation host, storage).
	Host
)

func (k Kind) String() string {
	switch k {
	case Input:
		return "input"
	case Generation:
		return "generation"
	case Extraction:
		return "extraction"
	case Validation:
		return "validation"
	case Execution:
		return "execution"
	case Host:
		return "host"
	default:
		return "internal"
	}
}

// MaxMessageRunes bounds messages derived from untrusted script output.
const MaxMessageRunes = 300

// Error carries a kind, a message safe to return to callers, and the cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and message to err. A nil err yields nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps err to the status the gateway responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Input, Generation, Extraction, Validation, Execution:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text returned to clients. Internal details stay in logs.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	switch e.Kind {
	case Internal:
		return "internal server error"
	case Host:
		if e.Message == "" {
			return "internal server error"
		}
		return e.Message
	}
	return e.Error()
}

// Truncate shortens s to at most MaxMessageRunes runes.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxMessageRunes {
		return s
	}
	r := []rune(s)
	return string(r[:MaxMessageRunes]) + "..."
}
