// Package store defines the shared document tree the game synchronizes through,
// along with an embeddable in-memory implementation of it.
//
// Paths are slash-separated segment lists ("rooms/1234/players/player_x"). Interior
// nodes are maps; leaves are whatever value was written. Every subscriber of a path
// receives a full snapshot of that subtree on every change anywhere beneath it.
package store

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrEmptyPath     = errors.New("empty path")
	ErrNotAContainer = errors.New("value at path is not a container")
	ErrClosed        = errors.New("store session closed")
)

// SnapshotFunc receives a deep copy of the subscribed subtree, or nil if the
// subtree does not exist. Callbacks for one subscription are delivered in order
// on a dedicated goroutine and must not block indefinitely.
type SnapshotFunc func(value any)

// Store is the primitive surface the session core is written against.
type Store interface {
	// WriteValue replaces the subtree at path, creating intermediate segments.
	WriteValue(ctx context.Context, path string, value any) error
	// MergeFields shallow-merges fields into the map at path, leaving siblings alone.
	MergeFields(ctx context.Context, path string, fields map[string]any) error
	// AppendToList stores value under a fresh insertion-ordered key beneath path
	// and returns that key. Keys sort lexicographically in append order.
	AppendToList(ctx context.Context, path string, value any) (string, error)
	// RemoveValue deletes the subtree at path. Removing an absent path is a no-op.
	RemoveValue(ctx context.Context, path string) error
	// Subscribe delivers the current value immediately, then again after every
	// change under path, until the returned cancel func is called.
	Subscribe(path string, fn SnapshotFunc) (cancel func(), err error)
	// OnDisconnectCleanup registers removal of path when this session's
	// connection drops without an explicit cleanup.
	OnDisconnectCleanup(path string) error
}

func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, ErrEmptyPath
	}
	return strings.Split(trimmed, "/"), nil
}

func hasPrefix(path, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

// deepCopy clones a document subtree so snapshots never alias live state.
func deepCopy(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, child := range m {
		out[k] = deepCopy(child)
	}
	return out
}
