package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/arnellebalane/instagram-graphql/errors"
	"github.com/arnellebalane/instagram-graphql/store"
)

// Resolver maps graph-shaped read queries onto tree reads against the
// store, performing the client-side author join and the author-to-posts
// filter. All lookups treat absence as a normal result, never a fault.
type Resolver struct {
	store  store.Gateway
	logger *slog.Logger
}

// NewResolver creates a resolver over the given store gateway
func NewResolver(gateway store.Gateway, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  gateway,
		logger: logger.With("component", "resolver"),
	}
}

// Posts returns every post with its author embedded, in the order the
// store returns the collection. An empty or missing collection yields an
// empty slice.
func (r *Resolver) Posts(ctx context.Context) ([]*PostView, error) {
	entries, err := r.store.ReadCollection(ctx, store.PostsCollection)
	if err != nil {
		return nil, errors.Wrap(err, "Resolver", "Posts", "read posts collection")
	}

	views := make([]*PostView, 0, len(entries))
	authors := map[string]*User{}
	for _, entry := range entries {
		view, err := r.composeView(ctx, entry, authors)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Post returns a single post with its author embedded, or nil when no
// post exists under the id.
func (r *Resolver) Post(ctx context.Context, id string) (*PostView, error) {
	value, err := r.store.ReadEntity(ctx, store.EntityPath(store.PostsCollection, id))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "Resolver", "Post", "read post")
	}

	return r.composeView(ctx, store.Entry{ID: id, Value: value}, nil)
}

// Users returns every user, in store order
func (r *Resolver) Users(ctx context.Context) ([]*User, error) {
	entries, err := r.store.ReadCollection(ctx, store.UsersCollection)
	if err != nil {
		return nil, errors.Wrap(err, "Resolver", "Users", "read users collection")
	}

	users := make([]*User, 0, len(entries))
	for _, entry := range entries {
		user, err := decodeUser(entry.Value)
		if err != nil {
			return nil, errors.Wrap(err, "Resolver", "Users", fmt.Sprintf("decode user %s", entry.ID))
		}
		users = append(users, user)
	}
	return users, nil
}

// User returns a single user, or nil when no user exists under the id
func (r *Resolver) User(ctx context.Context, id string) (*User, error) {
	value, err := r.store.ReadEntity(ctx, store.EntityPath(store.UsersCollection, id))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "Resolver", "User", "read user")
	}

	user, err := decodeUser(value)
	if err != nil {
		return nil, errors.Wrap(err, "Resolver", "User", fmt.Sprintf("decode user %s", id))
	}
	return user, nil
}

// PostsByAuthor derives a user's posts by filtering the full post
// collection on the author reference. Full scan per invocation, linear
// in the size of the posts collection.
func (r *Resolver) PostsByAuthor(ctx context.Context, author *User) ([]*PostView, error) {
	entries, err := r.store.ReadCollection(ctx, store.PostsCollection)
	if err != nil {
		return nil, errors.Wrap(err, "Resolver", "PostsByAuthor", "read posts collection")
	}

	views := []*PostView{}
	for _, entry := range entries {
		post, err := decodePost(entry.Value)
		if err != nil {
			return nil, errors.Wrap(err, "Resolver", "PostsByAuthor", fmt.Sprintf("decode post %s", entry.ID))
		}
		if post.AuthorID != author.ID {
			continue
		}
		views = append(views, &PostView{Post: *post, Author: author})
	}
	return views, nil
}

// composeView decodes a stored post and resolves its author. A dangling
// author reference is recorded on the view rather than failing the whole
// read; only infrastructure failures abort. The authors map, when
// non-nil, memoizes lookups within a single collection read.
func (r *Resolver) composeView(ctx context.Context, entry store.Entry, authors map[string]*User) (*PostView, error) {
	post, err := decodePost(entry.Value)
	if err != nil {
		return nil, errors.Wrap(err, "Resolver", "composeView", fmt.Sprintf("decode post %s", entry.ID))
	}

	view := &PostView{Post: *post}

	if author, ok := authors[post.AuthorID]; ok {
		view.Author = author
		return view, nil
	}

	author, err := r.User(ctx, post.AuthorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		r.logger.Warn("post references missing author", "post_id", post.ID, "author_id", post.AuthorID)
		view.AuthorErr = errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrDanglingAuthor, post.AuthorID),
			"Resolver", "composeView", fmt.Sprintf("resolve author of post %s", post.ID))
		return view, nil
	}

	if authors != nil {
		authors[post.AuthorID] = author
	}
	view.Author = author
	return view, nil
}

func decodePost(value []byte) (*Post, error) {
	var post Post
	if err := json.Unmarshal(value, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func decodeUser(value []byte) (*User, error) {
	var user User
	if err := json.Unmarshal(value, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
