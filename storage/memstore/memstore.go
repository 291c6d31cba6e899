// Package memstore provides an in-process implementation of storage.KV in
// which any number of tab handles share one value space. Used by tests and by
// single-process hosts that still want the multi-tab sync semantics.
package memstore

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jrsteele09/go-catalog-client/storage"
)

// Hub is the shared value space. Each handle created via Tab carries its own
// origin ID; a handle's watchers only receive events caused by other handles.
type Hub struct {
	mu       sync.Mutex
	values   map[string]string
	watchers map[int]watcher
	nextID   int
}

type watcher struct {
	origin string
	fn     func(storage.Event)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		values:   make(map[string]string),
		watchers: make(map[int]watcher),
	}
}

// Tab returns a new handle onto the hub with a unique origin.
func (h *Hub) Tab() storage.KV {
	return &tabHandle{hub: h, origin: uuid.New().String()}
}

func (h *Hub) get(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.values[key]
	return v, ok
}

func (h *Hub) set(origin, key, value string) {
	h.mu.Lock()
	h.values[key] = value
	targets := h.snapshotWatchersLocked(origin)
	h.mu.Unlock()

	for _, fn := range targets {
		fn(storage.Event{Key: key, Value: value, Origin: origin})
	}
}

func (h *Hub) delete(origin, key string) {
	h.mu.Lock()
	if _, ok := h.values[key]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.values, key)
	targets := h.snapshotWatchersLocked(origin)
	h.mu.Unlock()

	for _, fn := range targets {
		fn(storage.Event{Key: key, Origin: origin})
	}
}

// snapshotWatchersLocked returns the callbacks of every handle except the
// writer, so events can be dispatched outside the lock.
func (h *Hub) snapshotWatchersLocked(origin string) []func(storage.Event) {
	targets := make([]func(storage.Event), 0, len(h.watchers))
	for _, w := range h.watchers {
		if w.origin == origin {
			continue
		}
		targets = append(targets, w.fn)
	}
	return targets
}

func (h *Hub) watch(origin string, fn func(storage.Event)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.watchers[id] = watcher{origin: origin, fn: fn}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.watchers, id)
		h.mu.Unlock()
	}
}

type tabHandle struct {
	hub    *Hub
	origin string
}

var _ storage.KV = (*tabHandle)(nil)

func (t *tabHandle) Get(key string) (string, bool) { return t.hub.get(key) }
func (t *tabHandle) Set(key, value string)         { t.hub.set(t.origin, key, value) }
func (t *tabHandle) Delete(key string)             { t.hub.delete(t.origin, key) }

func (t *tabHandle) Watch(fn func(storage.Event)) (cancel func()) {
	return t.hub.watch(t.origin, fn)
}
