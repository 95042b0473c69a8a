package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/arnellebalane/instagram-graphql/errors"
	"github.com/arnellebalane/instagram-graphql/store"
)

// Announcer receives the composed view of each newly created post.
// Satisfied by hub.Hub[*feed.PostView].
type Announcer interface {
	Publish(view *PostView) int
}

// CreatePostInput carries the caller-supplied fields for a new post.
// Counter fields default to zero when nil.
type CreatePostInput struct {
	Caption       string
	CommentsCount *int
	LikeCount     *int
	MediaType     *MediaType
	MediaURL      string
	Permalink     string
	AuthorID      string
}

// Coordinator is the write path for posts: it validates referential
// integrity, assigns the identifier, persists the reference-form record,
// and announces the composed view to live subscribers. Persist strictly
// happens-before announce.
type Coordinator struct {
	store     store.Gateway
	announcer Announcer
	logger    *slog.Logger
	newID     func() string
}

// NewCoordinator creates a write coordinator. The announcer may be nil
// when no live feed is wired (tests, batch tooling).
func NewCoordinator(gateway store.Gateway, announcer Announcer, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:     gateway,
		announcer: announcer,
		logger:    logger.With("component", "coordinator"),
		newID:     uuid.NewString,
	}
}

// CreatePost validates and persists a new post, then announces it.
// The author must already exist; on any validation failure nothing is
// written and nothing is announced.
func (c *Coordinator) CreatePost(ctx context.Context, input CreatePostInput) (*PostView, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	authorValue, err := c.store.ReadEntity(ctx, store.EntityPath(store.UsersCollection, input.AuthorID))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %q", errors.ErrUnknownAuthor, input.AuthorID),
				"Coordinator", "CreatePost", "validate author")
		}
		return nil, errors.Wrap(err, "Coordinator", "CreatePost", "read author")
	}

	author, err := decodeUser(authorValue)
	if err != nil {
		return nil, errors.Wrap(err, "Coordinator", "CreatePost", "decode author")
	}

	post := Post{
		ID:        c.newID(),
		Caption:   input.Caption,
		MediaURL:  input.MediaURL,
		Permalink: input.Permalink,
		AuthorID:  input.AuthorID,
	}
	if input.CommentsCount != nil {
		post.CommentsCount = *input.CommentsCount
	}
	if input.LikeCount != nil {
		post.LikeCount = *input.LikeCount
	}
	if input.MediaType != nil {
		post.MediaType = *input.MediaType
	}

	value, err := json.Marshal(post)
	if err != nil {
		return nil, errors.Wrap(err, "Coordinator", "CreatePost", "encode post")
	}

	// Reference form only; the embedded author exists solely in the
	// returned view
	if err := c.store.WriteEntity(ctx, store.EntityPath(store.PostsCollection, post.ID), value); err != nil {
		return nil, errors.Wrap(err, "Coordinator", "CreatePost", "persist post")
	}

	view := &PostView{Post: post, Author: author}

	// Announce only after the store commit acknowledged
	if c.announcer != nil {
		delivered := c.announcer.Publish(view)
		c.logger.Debug("post announced", "post_id", post.ID, "subscribers", delivered)
	}

	c.logger.Info("post created", "post_id", post.ID, "author_id", author.ID)
	return view, nil
}

// validateInput checks required fields and value ranges before any store
// access
func validateInput(input CreatePostInput) error {
	if input.Permalink == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: permalink", errors.ErrMissingField),
			"Coordinator", "CreatePost", "validate input")
	}
	if input.AuthorID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: author_id", errors.ErrMissingField),
			"Coordinator", "CreatePost", "validate input")
	}
	if input.CommentsCount != nil && *input.CommentsCount < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: comments_count must not be negative", errors.ErrInvalidArgument),
			"Coordinator", "CreatePost", "validate input")
	}
	if input.LikeCount != nil && *input.LikeCount < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: like_count must not be negative", errors.ErrInvalidArgument),
			"Coordinator", "CreatePost", "validate input")
	}
	if input.MediaType != nil && !input.MediaType.Valid() {
		return errors.WrapInvalid(
			fmt.Errorf("%w: media_type %q", errors.ErrInvalidArgument, *input.MediaType),
			"Coordinator", "CreatePost", "validate input")
	}
	return nil
}
