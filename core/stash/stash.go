// Package stash keeps values too large to travel in a callback button and
// hands out short keys for them.
package stash

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or expired keys.
var ErrNotFound = errors.New("stash: not found")

// Store saves a value and returns a key for it.
type Store interface {
	Put(ctx context.Context, value string) (string, error)
	Get(ctx context.Context, key string) (string, error)
	Close() error
}

// newKey returns a 32-character key.
func newKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
