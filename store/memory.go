package store

import (
	"context"
	"sync"

	"github.com/arnellebalane/instagram-graphql/errors"
)

// MemoryGateway is an in-process Gateway used by tests and local
// development. Collections preserve insertion order, matching the
// ordering the remote store returns for subtree reads.
type MemoryGateway struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
	order       map[string][]string
}

// NewMemoryGateway creates an empty in-memory store
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		collections: make(map[string]map[string][]byte),
		order:       make(map[string][]string),
	}
}

// Seed writes an entity without going through context plumbing.
// Test setup helper.
func (g *MemoryGateway) Seed(collection, id string, value []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.put(collection, id, value)
}

// ReadEntity reads a single entity. Absence surfaces as errors.ErrNotFound.
func (g *MemoryGateway) ReadEntity(ctx context.Context, path string) ([]byte, error) {
	collection, id, err := splitEntityPath(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	value, ok := g.collections[collection][id]
	if !ok {
		return nil, errors.ErrNotFound
	}

	// Copy so callers cannot mutate stored state
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// ReadCollection reads every entity under a collection path in insertion
// order. A missing collection yields an empty slice.
func (g *MemoryGateway) ReadCollection(ctx context.Context, path string) ([]Entry, error) {
	if err := validateCollectionPath(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	entries := []Entry{}
	for _, id := range g.order[path] {
		value := g.collections[path][id]
		out := make([]byte, len(value))
		copy(out, value)
		entries = append(entries, Entry{ID: id, Value: out})
	}
	return entries, nil
}

// WriteEntity persists a single entity record (last writer wins)
func (g *MemoryGateway) WriteEntity(ctx context.Context, path string, value []byte) error {
	collection, id, err := splitEntityPath(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	g.put(collection, id, stored)
	return nil
}

// put assumes g.mu is held
func (g *MemoryGateway) put(collection, id string, value []byte) {
	if g.collections[collection] == nil {
		g.collections[collection] = make(map[string][]byte)
	}
	if _, exists := g.collections[collection][id]; !exists {
		g.order[collection] = append(g.order[collection], id)
	}
	g.collections[collection][id] = value
}
