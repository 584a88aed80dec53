// Package document persists emitted decks, grouped by owner (the sanitized
// username).
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store defines operations for persisting emitted documents.
type Store interface {
	Put(ctx context.Context, owner, name string, content []byte) error
	Get(ctx context.Context, owner, name string) ([]byte, error)
	GetURL(ctx context.Context, owner, name string) (string, error)
	List(ctx context.Context, owner string) ([]string, error)
}

var ErrNotFound = errors.New("document not found")

// normalize trims both keys and rejects empty or nested names.
func normalize(owner, name string) (string, string, error) {
	owner = strings.TrimSpace(owner)
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if owner == "" {
		return "", "", fmt.Errorf("owner is required")
	}
	if name == "" {
		return "", "", fmt.Errorf("name is required")
	}
	if strings.ContainsAny(owner, `/\`) || strings.ContainsAny(name, `/\`) || name == ".." || owner == ".." {
		return "", "", fmt.Errorf("invalid document key %q/%q", owner, name)
	}
	return owner, name, nil
}

func normalizeOwner(owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", fmt.Errorf("owner is required")
	}
	return owner, nil
}

func objectKey(owner, name string) string {
	return owner + "/" + name
}
