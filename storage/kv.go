// Package storage defines the shared key-value substrate used to persist
// client state and to propagate it between tabs of the same origin. Any store
// providing durable keys plus a change notification satisfies the interface;
// implementations live in the memstore and filestore subpackages.
package storage

// Event describes a single key change observed in a shared store.
type Event struct {
	Key    string
	Value  string // empty when the key was deleted
	Origin string // identifier of the writing handle, empty when unknown
}

// KV is an origin-scoped key-value store with change notification. A handle
// never receives events for its own writes, mirroring how shared-storage
// change events behave in the substrate this abstracts.
//
// Cross-tab sync is a best-effort enhancement: implementations must degrade
// gracefully (no-op, never panic) when the underlying storage is unavailable.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool)

	// Set stores value under key and notifies other handles' watchers.
	Set(key, value string)

	// Delete removes key.
	Delete(key string)

	// Watch registers fn for change events until the returned cancel func is
	// called. fn may be invoked from another goroutine.
	Watch(fn func(Event)) (cancel func())
}

// Discard is a KV that stores nothing and notifies no one. It stands in when
// shared storage is unavailable so that single-tab operation keeps working.
var Discard KV = discard{}

type discard struct{}

func (discard) Get(string) (string, bool)      { return "", false }
func (discard) Set(string, string)             {}
func (discard) Delete(string)                  {}
func (discard) Watch(func(Event)) (cancel func()) { return func() {} }
