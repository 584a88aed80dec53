// Package history records one row per conversion attempt.
package history

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

const DefaultLimit = 50

type Record struct {
	ID        string        `json:"id"`
	Username  string        `json:"username"`
	Mode      string        `json:"mode"`
	Provider  string        `json:"provider,omitempty"`
	Status    Status        `json:"status"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Filename  string        `json:"filename,omitempty"`
	Bytes     int           `json:"bytes"`
	Duration  time.Duration `json:"duration_ns"`
	CreatedAt time.Time     `json:"created_at"`
}

type Store interface {
	Record(ctx context.Context, rec Record) error
	// Recent returns the newest records first. An empty username lists all.
	Recent(ctx context.Context, username string, limit int) ([]Record, error)
}

// prepare fills ID and CreatedAt when unset.
func prepare(rec Record) Record {
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return DefaultLimit
	}
	return limit
}
