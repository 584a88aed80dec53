package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"screendeck/internal/tester"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := map[Kind]int{
		Input:      http.StatusBadRequest,
		Generation: http.StatusBadRequest,
		Extraction: http.StatusBadRequest,
		Validation: http.StatusBadRequest,
		Execution:  http.StatusBadRequest,
		Host:       http.StatusInternalServerError,
		Internal:   http.StatusInternalServerError,
	}
	for kind, want := range cases {
		tester.Eq(t, HTTPStatus(New(kind, "x")), want, kind.String())
	}
}

func TestKindOfWrappedChain(t *testing.T) {
	base := New(Validation, "forbidden call add_freeform")
	err := fmt.Errorf("run script: %w", base)
	tester.Eq(t, KindOf(err), Validation)
	tester.True(t, Is(err, Validation))
	tester.Eq(t, KindOf(errors.New("plain")), Internal)
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	err := Wrap(Internal, errors.New("dial tcp 10.0.0.1: refused"), "store failed")
	tester.Eq(t, PublicMessage(err), "internal server error")
	tester.Eq(t, PublicMessage(errors.New("boom")), "internal server error")
	tester.Eq(t, PublicMessage(New(Input, "no image provided")), "no image provided")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", MaxMessageRunes+10)
	out := Truncate(long)
	tester.True(t, strings.HasSuffix(out, "..."))
	tester.Eq(t, len([]rune(out)), MaxMessageRunes+3)
	tester.Eq(t, Truncate("short"), "short")
}
