package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnellebalane/instagram-graphql/errors"
)

func TestMemoryGateway_ReadEntity(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	g.Seed("users", "u1", []byte(`{"id":"u1"}`))

	t.Run("existing entity", func(t *testing.T) {
		value, err := g.ReadEntity(ctx, "users/u1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"u1"}`, string(value))
	})

	t.Run("missing entity is absence", func(t *testing.T) {
		_, err := g.ReadEntity(ctx, "users/nope")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("malformed path is invalid", func(t *testing.T) {
		_, err := g.ReadEntity(ctx, "users")
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))

		_, err = g.ReadEntity(ctx, "users/u1/extra")
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	})
}

func TestMemoryGateway_ReadCollection(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	t.Run("missing collection is empty, not error", func(t *testing.T) {
		entries, err := g.ReadCollection(ctx, "posts")
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.NotNil(t, entries)
	})

	t.Run("preserves insertion order", func(t *testing.T) {
		require.NoError(t, g.WriteEntity(ctx, "posts/p1", []byte(`{"id":"p1"}`)))
		require.NoError(t, g.WriteEntity(ctx, "posts/p2", []byte(`{"id":"p2"}`)))
		require.NoError(t, g.WriteEntity(ctx, "posts/p3", []byte(`{"id":"p3"}`)))

		entries, err := g.ReadCollection(ctx, "posts")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "p1", entries[0].ID)
		assert.Equal(t, "p2", entries[1].ID)
		assert.Equal(t, "p3", entries[2].ID)
	})

	t.Run("overwrite keeps original position", func(t *testing.T) {
		require.NoError(t, g.WriteEntity(ctx, "posts/p1", []byte(`{"id":"p1","v":2}`)))

		entries, err := g.ReadCollection(ctx, "posts")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "p1", entries[0].ID)
		assert.JSONEq(t, `{"id":"p1","v":2}`, string(entries[0].Value))
	})

	t.Run("entity path rejected", func(t *testing.T) {
		_, err := g.ReadCollection(ctx, "posts/p1")
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	})
}

func TestMemoryGateway_CallerCannotMutateStoredState(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	g.Seed("users", "u1", []byte(`{"id":"u1"}`))

	value, err := g.ReadEntity(ctx, "users/u1")
	require.NoError(t, err)
	value[0] = 'X'

	again, err := g.ReadEntity(ctx, "users/u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1"}`, string(again))
}

func TestEntityPath(t *testing.T) {
	assert.Equal(t, "posts/abc", EntityPath("posts", "abc"))

	collection, id, err := splitEntityPath("posts/abc")
	require.NoError(t, err)
	assert.Equal(t, "posts", collection)
	assert.Equal(t, "abc", id)
}

func TestEntityKey(t *testing.T) {
	assert.Equal(t, "posts.abc-123", entityKey("posts", "abc-123"))
}
