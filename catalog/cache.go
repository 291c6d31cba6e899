package catalog

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// EpochSource reports the session epoch, which advances on every logout. The
// cache discards the apply step of any operation whose issuing epoch has
// passed, so a late-arriving response cannot write into the wrong session.
// session.Store satisfies this interface.
type EpochSource interface {
	Epoch() uint64
}

// Cache is the optimistic in-memory list for one resource collection.
// Mutations apply their own response to the list rather than refetching.
// Operations are not serialized against each other: concurrent creates may
// complete, and therefore append, in either order.
type Cache[T Resource[T]] struct {
	svc    *Service[T]
	epochs EpochSource // nil when no session gating is wanted

	mu      sync.Mutex
	items   []T
	pending int
	lastErr string
}

// CacheOption configures a Cache.
type CacheOption[T Resource[T]] func(*Cache[T])

// WithEpochSource gates applies on the session epoch.
func WithEpochSource[T Resource[T]](src EpochSource) CacheOption[T] {
	return func(c *Cache[T]) { c.epochs = src }
}

// New creates a Cache over svc.
func New[T Resource[T]](svc *Service[T], options ...CacheOption[T]) *Cache[T] {
	c := &Cache[T]{svc: svc}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Items returns a copy of the cached list in display order.
func (c *Cache[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Loading reports whether any operation is in flight.
func (c *Cache[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending > 0
}

// Err returns the message of the last failed operation, "" when the most
// recent operation succeeded.
func (c *Cache[T]) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// FetchAll replaces the cached list with the server's collection. On failure
// the prior list is left untouched and the error is recorded and returned.
func (c *Cache[T]) FetchAll(ctx context.Context) error {
	epoch := c.epochSnapshot()
	c.begin()
	defer c.end()

	items, err := c.svc.List(ctx)
	if err != nil {
		c.fail(err)
		return err
	}

	c.apply(epoch, func() {
		c.items = items
	})
	return nil
}

// Search replaces the cached list with the search results. Routing an empty
// query back to FetchAll is the caller's policy (see Searcher).
func (c *Cache[T]) Search(ctx context.Context, query string, page, limit int) error {
	epoch := c.epochSnapshot()
	c.begin()
	defer c.end()

	items, err := c.svc.Search(ctx, query, page, limit)
	if err != nil {
		c.fail(err)
		return err
	}

	c.apply(epoch, func() {
		c.items = items
	})
	return nil
}

// Create stores a new item and appends the server's version to the end of the
// cached list without refetching.
func (c *Cache[T]) Create(ctx context.Context, payload T) (T, error) {
	var zero T
	epoch := c.epochSnapshot()
	c.begin()
	defer c.end()

	item, err := c.svc.Create(ctx, payload)
	if err != nil {
		c.fail(err)
		return zero, err
	}

	c.apply(epoch, func() {
		c.items = append(c.items, item)
	})
	return item, nil
}

// Update replaces the cached item matching id (by either identifier) with the
// server's version, preserving its position. Non-matching items are
// untouched.
func (c *Cache[T]) Update(ctx context.Context, id string, payload T) (T, error) {
	var zero T
	epoch := c.epochSnapshot()
	c.begin()
	defer c.end()

	item, err := c.svc.Update(ctx, id, payload)
	if err != nil {
		c.fail(err)
		return zero, err
	}

	c.apply(epoch, func() {
		for i := range c.items {
			if c.items[i].MatchesID(id) {
				c.items[i] = item
			}
		}
	})
	return item, nil
}

// Delete removes the cached item matching id (by either identifier).
func (c *Cache[T]) Delete(ctx context.Context, id string) error {
	epoch := c.epochSnapshot()
	c.begin()
	defer c.end()

	if err := c.svc.Delete(ctx, id); err != nil {
		c.fail(err)
		return err
	}

	c.apply(epoch, func() {
		kept := c.items[:0]
		for _, item := range c.items {
			if !item.MatchesID(id) {
				kept = append(kept, item)
			}
		}
		c.items = kept
	})
	return nil
}

func (c *Cache[T]) begin() {
	c.mu.Lock()
	c.pending++
	c.lastErr = ""
	c.mu.Unlock()
}

func (c *Cache[T]) end() {
	c.mu.Lock()
	c.pending--
	c.mu.Unlock()
}

func (c *Cache[T]) fail(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
}

func (c *Cache[T]) epochSnapshot() uint64 {
	if c.epochs == nil {
		return 0
	}
	return c.epochs.Epoch()
}

// apply runs mutate under the cache lock unless the session epoch has moved
// since the operation was issued, in which case the result is discarded.
func (c *Cache[T]) apply(epoch uint64, mutate func()) {
	if c.epochs != nil && c.epochs.Epoch() != epoch {
		log.Debug().Msg("discarding stale resource response, session changed mid-flight")
		return
	}
	c.mu.Lock()
	mutate()
	c.mu.Unlock()
}
