// Package catalog holds the read-only book catalog the authorization pipeline filters.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"bookstore/internal/domain"
)

// Store is an immutable, ordered collection of catalog items. It is loaded once
// at start-up and safe for concurrent use without locking: there is no mutation
// path after Load, and every read hands out a copy.
type Store struct {
	items []domain.Item
	index map[string]int
}

// New builds a store from items, preserving their order.
// Items must have a non-empty, unique ID.
func New(items []domain.Item) (*Store, error) {
	s := &Store{
		items: make([]domain.Item, len(items)),
		index: make(map[string]int, len(items)),
	}
	copy(s.items, items)
	for i, it := range s.items {
		if it.ID == "" {
			return nil, fmt.Errorf("%w: item %d has no id", domain.ErrCatalogLoad, i)
		}
		if _, dup := s.index[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate item id %q", domain.ErrCatalogLoad, it.ID)
		}
		s.index[it.ID] = i
	}
	return s, nil
}

// Load reads the catalog document from src and builds a store.
func Load(ctx context.Context, src Source) (*Store, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", domain.ErrCatalogLoad, src, err)
	}
	defer rc.Close()

	items, err := decode(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", domain.ErrCatalogLoad, src, err)
	}
	return New(items)
}

// document is the on-disk catalog format: {"books": [...]}. A bare array of
// items is accepted too.
type document struct {
	Books []domain.Item `json:"books"`
}

func decode(r io.Reader) ([]domain.Item, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	if raw[0] == '[' {
		var items []domain.Item
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Books == nil {
		return nil, fmt.Errorf(`missing "books" array`)
	}
	return doc.Books, nil
}

// Len returns the number of items.
func (s *Store) Len() int {
	return len(s.items)
}

// All returns every item in load order.
func (s *Store) All() []domain.Item {
	out := make([]domain.Item, len(s.items))
	copy(out, s.items)
	return out
}

// ByID returns the item with the given id.
func (s *Store) ByID(id string) (domain.Item, bool) {
	i, ok := s.index[id]
	if !ok {
		return domain.Item{}, false
	}
	return s.items[i], true
}

// Filter returns the items matching pred, in load order. The result is never nil.
func (s *Store) Filter(pred func(domain.Item) bool) []domain.Item {
	out := make([]domain.Item, 0, len(s.items))
	for _, it := range s.items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}

// PublishedBy matches items whose publisher is username.
func PublishedBy(username string) func(domain.Item) bool {
	return func(it domain.Item) bool { return it.Publisher == username }
}

// NotPremium matches items that are not premium offers.
func NotPremium(it domain.Item) bool {
	return !it.PremiumOffer
}
