// Package filestore implements storage.KV over a JSON file, giving separate
// processes the shared-storage semantics tabs get from their origin store.
// Change detection is polling based, which keeps the watcher deterministic and
// free of platform notification quirks.
package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-catalog-client/storage"
)

const defaultPollInterval = 1 * time.Second

// Store is a file-backed storage.KV. All IO errors are logged and swallowed:
// shared storage is a best-effort enhancement and must not break the caller.
type Store struct {
	path     string
	origin   string
	interval time.Duration

	mu       sync.Mutex
	seen     map[string]string // last state observed by this handle
	watchers map[int]func(storage.Event)
	nextID   int
	stop     chan struct{}
	closed   bool
}

// Option configures a Store.
type Option func(*Store)

// WithPollInterval overrides how often the watcher re-reads the file.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// New creates a Store backed by the file at path. The file and its parent
// directory are created lazily on first write.
func New(path string, options ...Option) *Store {
	s := &Store{
		path:     path,
		origin:   uuid.New().String(),
		interval: defaultPollInterval,
		seen:     make(map[string]string),
		watchers: make(map[int]func(storage.Event)),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

var _ storage.KV = (*Store)(nil)

func (s *Store) Get(key string) (string, bool) {
	values := s.load()
	v, ok := values[key]
	return v, ok
}

func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.load()
	values[key] = value
	s.save(values)
	s.seen[key] = value
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.load()
	delete(values, key)
	s.save(values)
	delete(s.seen, key)
}

// Watch registers fn for changes made by other processes. The poller starts
// with the first watcher and stops when Close is called.
func (s *Store) Watch(fn func(storage.Event)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	if s.stop == nil && !s.closed {
		s.seen = s.load()
		stop := make(chan struct{})
		s.stop = stop
		go s.poll(stop)
	}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Close stops the change poller. The store remains usable for Get/Set.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Store) poll(stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.diff()
		}
	}
}

// diff compares the file against the last observed state and dispatches an
// event per changed key. Events carry an empty origin: the writer is another
// process and its identity is unknown.
func (s *Store) diff() {
	s.mu.Lock()
	current := s.load()
	var events []storage.Event
	for key, value := range current {
		if s.seen[key] != value {
			events = append(events, storage.Event{Key: key, Value: value})
		}
	}
	for key := range s.seen {
		if _, ok := current[key]; !ok {
			events = append(events, storage.Event{Key: key})
		}
	}
	s.seen = current
	targets := make([]func(storage.Event), 0, len(s.watchers))
	for _, fn := range s.watchers {
		targets = append(targets, fn)
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range targets {
			fn(ev)
		}
	}
}

func (s *Store) load() map[string]string {
	values := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", s.path).Msg("filestore read failed")
		}
		return values
	}
	if err := json.Unmarshal(data, &values); err != nil {
		log.Debug().Err(err).Str("path", s.path).Msg("filestore contains invalid state")
	}
	return values
}

// save writes via a temp file and rename so concurrent readers never observe
// a partially written state file.
func (s *Store) save(values map[string]string) {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		log.Debug().Err(err).Msg("filestore marshal failed")
		return
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Debug().Err(err).Str("dir", dir).Msg("filestore mkdir failed")
		return
	}
	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		log.Debug().Err(err).Msg("filestore temp file failed")
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		log.Debug().Err(err).Msg("filestore write failed")
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		log.Debug().Err(err).Str("path", s.path).Msg("filestore rename failed")
	}
}
