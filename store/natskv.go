package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arnellebalane/instagram-graphql/errors"
)

// KVOptions configures KV gateway behavior
type KVOptions struct {
	Timeout      time.Duration // Operation timeout
	MaxValueSize int           // Maximum size for values (default: 1MB)
}

// DefaultKVOptions returns sensible defaults
func DefaultKVOptions() KVOptions {
	return KVOptions{
		Timeout:      5 * time.Second,
		MaxValueSize: 1024 * 1024,
	}
}

// KVGateway implements Gateway on a NATS JetStream KV bucket. Slash-separated
// paths map onto dot-separated KV keys, so "posts/{id}" is stored under
// "posts.{id}" and a collection read lists "posts.*".
type KVGateway struct {
	bucket  jetstream.KeyValue
	options KVOptions
}

// NewKVGateway creates a gateway backed by the given bucket
func NewKVGateway(bucket jetstream.KeyValue, opts ...func(*KVOptions)) *KVGateway {
	options := DefaultKVOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &KVGateway{
		bucket:  bucket,
		options: options,
	}
}

// WithTimeout overrides the per-operation timeout
func WithTimeout(timeout time.Duration) func(*KVOptions) {
	return func(o *KVOptions) {
		o.Timeout = timeout
	}
}

// applyTimeout applies the configured timeout to the context if set
func (g *KVGateway) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.options.Timeout > 0 {
		return context.WithTimeout(ctx, g.options.Timeout)
	}
	return ctx, func() {}
}

// ReadEntity reads a single entity. Absence surfaces as errors.ErrNotFound.
func (g *KVGateway) ReadEntity(ctx context.Context, path string) ([]byte, error) {
	collection, id, err := splitEntityPath(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := g.applyTimeout(ctx)
	defer cancel()

	entry, err := g.bucket.Get(ctx, entityKey(collection, id))
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, errors.WrapTransient(err, "KVGateway", "ReadEntity", fmt.Sprintf("kv get %s", path))
	}

	return entry.Value(), nil
}

// ReadCollection reads every entity under a collection path. A bucket with
// no keys under the prefix yields an empty slice, not an error.
func (g *KVGateway) ReadCollection(ctx context.Context, path string) ([]Entry, error) {
	if err := validateCollectionPath(path); err != nil {
		return nil, err
	}

	ctx, cancel := g.applyTimeout(ctx)
	defer cancel()

	lister, err := g.bucket.ListKeysFiltered(ctx, path+".*")
	if err != nil {
		return nil, errors.WrapTransient(err, "KVGateway", "ReadCollection", fmt.Sprintf("kv list %s", path))
	}

	entries := []Entry{}
	for key := range lister.Keys() {
		entry, err := g.bucket.Get(ctx, key)
		if err != nil {
			if stderrors.Is(err, jetstream.ErrKeyNotFound) {
				// Key deleted between list and get
				continue
			}
			return nil, errors.WrapTransient(err, "KVGateway", "ReadCollection", fmt.Sprintf("kv get %s", key))
		}
		entries = append(entries, Entry{
			ID:    strings.TrimPrefix(key, path+"."),
			Value: entry.Value(),
		})
	}

	return entries, nil
}

// WriteEntity persists a single entity record (last writer wins)
func (g *KVGateway) WriteEntity(ctx context.Context, path string, value []byte) error {
	collection, id, err := splitEntityPath(path)
	if err != nil {
		return err
	}

	if g.options.MaxValueSize > 0 && len(value) > g.options.MaxValueSize {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %d bytes exceeds max %d", errors.ErrValueTooLarge, len(value), g.options.MaxValueSize),
			"KVGateway", "WriteEntity", fmt.Sprintf("kv put %s", path))
	}

	ctx, cancel := g.applyTimeout(ctx)
	defer cancel()

	if _, err := g.bucket.Put(ctx, entityKey(collection, id), value); err != nil {
		return errors.WrapTransient(err, "KVGateway", "WriteEntity", fmt.Sprintf("kv put %s", path))
	}

	return nil
}

// entityKey maps an entity path onto its KV key
func entityKey(collection, id string) string {
	return collection + "." + id
}
