package store

import (
	"context"
	"strings"
)

// Event describes a change at or under a watched prefix. Watchers should
// treat events as hints and re-read state; values may already be stale by
// the time the event is observed.
type Event struct {
	Path    string
	Value   []byte
	Deleted bool
}

// Store is a key-path view over a shared, multi-writer, eventually
// consistent data store. Paths are slash-separated, e.g.
// "rooms/{roomId}/advanceToken". Values are raw JSON.
//
// TryCAS is the only ordering primitive: everything else is read with
// eventual visibility and callers must tolerate stale reads between their
// own write and its propagation.
type Store interface {
	// Get returns the value at path, or nil if the path is absent.
	Get(ctx context.Context, path string) ([]byte, error)

	// Put writes value at path, overwriting any previous value.
	Put(ctx context.Context, path string, value []byte) error

	// Delete removes path. Deleting an absent path is not an error.
	Delete(ctx context.Context, path string) error

	// List returns all leaf values at or under prefix, keyed by full path.
	List(ctx context.Context, prefix string) (map[string][]byte, error)

	// TryCAS atomically replaces the value at path if the current value
	// equals expectedOld. expectedOld == nil means the path must be absent;
	// newValue == nil deletes the path. A lost race returns (false, nil),
	// never an error.
	TryCAS(ctx context.Context, path string, expectedOld, newValue []byte) (bool, error)

	// Watch emits one initial event for prefix followed by an event per
	// change at or under prefix, until ctx is cancelled.
	Watch(ctx context.Context, prefix string) (<-chan Event, error)
}

// Join builds a slash-separated store path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Under reports whether path lies at or under prefix.
func Under(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
