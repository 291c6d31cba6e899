package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-catalog-client/api"
)

// NoItemDataErr marks a mutation the server accepted without returning the
// resulting item. Applying it optimistically would corrupt the cache, so it
// is a hard failure.
var NoItemDataErr = errors.New("server reported success but returned no item data")

// Service issues the CRUD and search calls for one resource collection.
type Service[T Resource[T]] struct {
	client   *api.Client
	basePath string // e.g. "/api/books"
}

// NewService creates a Service for the collection rooted at basePath.
func NewService[T Resource[T]](client *api.Client, basePath string) *Service[T] {
	return &Service[T]{client: client, basePath: basePath}
}

// List fetches the whole collection. An absent data field decodes to an empty
// slice, never an error.
func (s *Service[T]) List(ctx context.Context) ([]T, error) {
	env, err := s.client.Get(ctx, s.basePath)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.List] list request")
	}
	return s.decodeItems(env)
}

// Search queries the collection's search endpoint with pagination. Zero page
// or limit values are omitted, matching the endpoint's defaults.
func (s *Service[T]) Search(ctx context.Context, query string, page, limit int) ([]T, error) {
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	env, err := s.client.Get(ctx, s.basePath+"/search?"+params.Encode())
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Search] search request")
	}
	return s.decodeItems(env)
}

// Create posts a new item and returns the server's stored version.
func (s *Service[T]) Create(ctx context.Context, payload T) (T, error) {
	var zero T
	env, err := s.client.Post(ctx, s.basePath, payload)
	if err != nil {
		return zero, errors.Wrap(err, "[Service.Create] create request")
	}
	return s.decodeItem(env)
}

// Update puts payload at id and returns the server's stored version.
func (s *Service[T]) Update(ctx context.Context, id string, payload T) (T, error) {
	var zero T
	env, err := s.client.Put(ctx, s.itemPath(id), payload)
	if err != nil {
		return zero, errors.Wrap(err, "[Service.Update] update request")
	}
	return s.decodeItem(env)
}

// Delete removes the item at id.
func (s *Service[T]) Delete(ctx context.Context, id string) error {
	if _, err := s.client.Delete(ctx, s.itemPath(id)); err != nil {
		return errors.Wrap(err, "[Service.Delete] delete request")
	}
	return nil
}

func (s *Service[T]) itemPath(id string) string {
	return fmt.Sprintf("%s/%s", s.basePath, url.PathEscape(id))
}

func (s *Service[T]) decodeItems(env *api.Envelope) ([]T, error) {
	var items []T
	if err := env.DecodeData(&items); err != nil {
		return nil, errors.Wrap(err, "[Service.decodeItems] decode data")
	}
	normalized := make([]T, 0, len(items))
	for _, item := range items {
		normalized = append(normalized, item.Normalize())
	}
	return normalized, nil
}

func (s *Service[T]) decodeItem(env *api.Envelope) (T, error) {
	var zero T
	if len(env.Data) == 0 {
		return zero, NoItemDataErr
	}
	var item T
	if err := env.DecodeData(&item); err != nil {
		return zero, errors.Wrap(err, "[Service.decodeItem] decode data")
	}
	return item.Normalize(), nil
}
