// Package store provides path-addressed access to the hierarchical
// key-value tree that backs the feed. A path addresses either a whole
// collection ("posts", "users") or a single entity ("posts/{id}").
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/arnellebalane/instagram-graphql/errors"
)

// Well-known top-level collections.
const (
	PostsCollection = "posts"
	UsersCollection = "users"
)

// Entry is a single entity read from a collection, in store order.
type Entry struct {
	ID    string
	Value []byte
}

// Gateway is the read/write contract against the hierarchical store.
//
// ReadEntity returns errors.ErrNotFound when the entity is absent.
// ReadCollection returns an empty slice (never an error) when the
// collection does not exist yet.
type Gateway interface {
	ReadEntity(ctx context.Context, path string) ([]byte, error)
	ReadCollection(ctx context.Context, path string) ([]Entry, error)
	WriteEntity(ctx context.Context, path string, value []byte) error
}

// EntityPath builds the path for a single entity within a collection
func EntityPath(collection, id string) string {
	return collection + "/" + id
}

// splitEntityPath validates and splits an entity path into its
// collection and id segments
func splitEntityPath(path string) (collection, id string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrInvalidArgument, path),
			"store", "splitEntityPath", "entity path must be collection/id")
	}
	return parts[0], parts[1], nil
}

// validateCollectionPath rejects paths that address anything other
// than a top-level collection
func validateCollectionPath(path string) error {
	if path == "" || strings.Contains(path, "/") {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrInvalidArgument, path),
			"store", "validateCollectionPath", "collection path must be a single segment")
	}
	return nil
}
