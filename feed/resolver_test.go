package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnellebalane/instagram-graphql/errors"
	"github.com/arnellebalane/instagram-graphql/store"
)

func seededGateway(t *testing.T) *store.MemoryGateway {
	t.Helper()

	g := store.NewMemoryGateway()
	g.Seed("users", "u1", []byte(`{"id":"u1","name":"Ann","handle":"@ann"}`))
	g.Seed("users", "u2", []byte(`{"id":"u2","name":"Ben","handle":"@ben"}`))
	g.Seed("posts", "p1", []byte(`{"id":"p1","caption":"first","comments_count":2,"like_count":5,"permalink":"http://x/1","author_id":"u1"}`))
	g.Seed("posts", "p2", []byte(`{"id":"p2","caption":"second","comments_count":0,"like_count":0,"permalink":"http://x/2","author_id":"u2"}`))
	g.Seed("posts", "p3", []byte(`{"id":"p3","caption":"third","comments_count":1,"like_count":3,"permalink":"http://x/3","author_id":"u1"}`))
	return g
}

func TestResolver_Posts(t *testing.T) {
	r := NewResolver(seededGateway(t), nil)
	ctx := context.Background()

	views, err := r.Posts(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)

	// Store order preserved
	assert.Equal(t, "p1", views[0].ID)
	assert.Equal(t, "p2", views[1].ID)
	assert.Equal(t, "p3", views[2].ID)

	// Authors embedded
	require.NotNil(t, views[0].Author)
	assert.Equal(t, "@ann", views[0].Author.Handle)
	require.NotNil(t, views[1].Author)
	assert.Equal(t, "@ben", views[1].Author.Handle)

	// Same author resolves to one record across posts
	assert.Same(t, views[0].Author, views[2].Author)
}

func TestResolver_Posts_EmptyCollection(t *testing.T) {
	r := NewResolver(store.NewMemoryGateway(), nil)

	views, err := r.Posts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.NotNil(t, views)
}

func TestResolver_Post(t *testing.T) {
	r := NewResolver(seededGateway(t), nil)
	ctx := context.Background()

	t.Run("existing post", func(t *testing.T) {
		view, err := r.Post(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, view)
		assert.Equal(t, "first", view.Caption)
		assert.Equal(t, 2, view.CommentsCount)
		assert.Equal(t, 5, view.LikeCount)
		require.NotNil(t, view.Author)
		assert.Equal(t, "Ann", view.Author.Name)
	})

	t.Run("absent post is nil, not error", func(t *testing.T) {
		view, err := r.Post(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, view)
	})
}

func TestResolver_Post_DanglingAuthor(t *testing.T) {
	g := seededGateway(t)
	g.Seed("posts", "p4", []byte(`{"id":"p4","permalink":"http://x/4","author_id":"ghost"}`))
	r := NewResolver(g, nil)

	view, err := r.Post(context.Background(), "p4")
	require.NoError(t, err)
	require.NotNil(t, view)

	// The anomaly is visible per field; the rest of the post survives
	assert.Nil(t, view.Author)
	require.Error(t, view.AuthorErr)
	assert.ErrorIs(t, view.AuthorErr, errors.ErrDanglingAuthor)
	assert.Equal(t, "http://x/4", view.Permalink)

	// Sibling posts still resolve
	views, err := r.Posts(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 4)
	assert.NotNil(t, views[0].Author)
	assert.Nil(t, views[3].Author)
}

func TestResolver_Users(t *testing.T) {
	r := NewResolver(seededGateway(t), nil)
	ctx := context.Background()

	users, err := r.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users[0].ID)
	assert.Equal(t, "u2", users[1].ID)
}

func TestResolver_User(t *testing.T) {
	r := NewResolver(seededGateway(t), nil)
	ctx := context.Background()

	t.Run("existing user", func(t *testing.T) {
		user, err := r.User(ctx, "u2")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "Ben", user.Name)
		assert.Equal(t, "@ben", user.Handle)
	})

	t.Run("absent user is nil, not error", func(t *testing.T) {
		user, err := r.User(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, user)
	})
}

func TestResolver_PostsByAuthor(t *testing.T) {
	r := NewResolver(seededGateway(t), nil)
	ctx := context.Background()

	ann, err := r.User(ctx, "u1")
	require.NoError(t, err)

	views, err := r.PostsByAuthor(ctx, ann)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "p1", views[0].ID)
	assert.Equal(t, "p3", views[1].ID)

	// Round trip: every returned post re-resolves to the same author
	for _, view := range views {
		assert.Equal(t, "u1", view.AuthorID)
		require.NotNil(t, view.Author)
		assert.Equal(t, *ann, *view.Author)
	}
}

func TestResolver_PostsByAuthor_NoPosts(t *testing.T) {
	g := store.NewMemoryGateway()
	g.Seed("users", "u9", []byte(`{"id":"u9","handle":"@mute"}`))
	r := NewResolver(g, nil)

	user, err := r.User(context.Background(), "u9")
	require.NoError(t, err)

	views, err := r.PostsByAuthor(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, views)
}
