// Package catalog provides the optimistic client cache for the list
// resources the API serves. The cache applies each mutation's own response to
// its in-memory list instead of refetching, and normalizes the API's dual
// identifier fields to a single canonical one at the boundary.
package catalog

import "time"

// Resource is a cacheable list item. The API historically identifies items by
// either of two fields (a primary "_id" and a legacy "id"); implementations
// must match on whichever is present and collapse the pair in Normalize.
type Resource[T any] interface {
	// CanonicalID returns the item's single canonical identifier.
	CanonicalID() string

	// MatchesID reports whether id names this item via either identifier.
	MatchesID(id string) bool

	// Normalize returns a copy with the canonical identifier populated.
	// Called on every item entering the cache.
	Normalize() T
}

// Book is the Book Catalog variant's resource.
type Book struct {
	ID        string    `json:"_id,omitempty"`
	LegacyID  string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

var _ Resource[Book] = Book{}

func (b Book) CanonicalID() string {
	if b.ID != "" {
		return b.ID
	}
	return b.LegacyID
}

func (b Book) MatchesID(id string) bool {
	return matchesEither(id, b.ID, b.LegacyID)
}

func (b Book) Normalize() Book {
	if b.ID == "" {
		b.ID = b.LegacyID
	}
	return b
}

// Script is the Script Labs variant's resource.
type Script struct {
	ID          string    `json:"_id,omitempty"`
	LegacyID    string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

var _ Resource[Script] = Script{}

func (s Script) CanonicalID() string {
	if s.ID != "" {
		return s.ID
	}
	return s.LegacyID
}

func (s Script) MatchesID(id string) bool {
	return matchesEither(id, s.ID, s.LegacyID)
}

func (s Script) Normalize() Script {
	if s.ID == "" {
		s.ID = s.LegacyID
	}
	return s
}

func matchesEither(id, primary, legacy string) bool {
	if id == "" {
		return false
	}
	return id == primary || id == legacy
}
