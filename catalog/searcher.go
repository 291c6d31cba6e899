package catalog

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	defaultDebounce    = 400 * time.Millisecond
	defaultSearchPage  = 1
	defaultSearchLimit = 10
)

// Searcher applies the caller-level search policy on top of a Cache: input is
// buffered with a trailing-edge debounce, a new keystroke cancels the pending
// search, and a final query that is empty or whitespace routes back to
// FetchAll instead of the search endpoint.
type Searcher[T Resource[T]] struct {
	cache *Cache[T]
	delay time.Duration
	page  int
	limit int

	mu    sync.Mutex
	timer *time.Timer
}

// SearcherOption configures a Searcher.
type SearcherOption[T Resource[T]] func(*Searcher[T])

// WithDebounce overrides the debounce delay.
func WithDebounce[T Resource[T]](d time.Duration) SearcherOption[T] {
	return func(s *Searcher[T]) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithPagination sets the page and limit sent with every search.
func WithPagination[T Resource[T]](page, limit int) SearcherOption[T] {
	return func(s *Searcher[T]) {
		s.page = page
		s.limit = limit
	}
}

// NewSearcher creates a Searcher over cache.
func NewSearcher[T Resource[T]](cache *Cache[T], options ...SearcherOption[T]) *Searcher[T] {
	s := &Searcher[T]{
		cache: cache,
		delay: defaultDebounce,
		page:  defaultSearchPage,
		limit: defaultSearchLimit,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Input registers a keystroke's worth of query text. Only the value standing
// when the debounce window closes triggers a request. Request failures are
// not returned here; the cache records them for the UI to render.
func (s *Searcher[T]) Input(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		s.run(query)
	})
}

// Stop cancels any pending search.
func (s *Searcher[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Searcher[T]) run(query string) {
	ctx := context.Background()
	if strings.TrimSpace(query) == "" {
		_ = s.cache.FetchAll(ctx)
		return
	}
	_ = s.cache.Search(ctx, query, s.page, s.limit)
}
