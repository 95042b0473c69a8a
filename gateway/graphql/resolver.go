package graphql

import (
	"context"
	"log/slog"
	"time"

	"github.com/arnellebalane/instagram-graphql/errors"
	"github.com/arnellebalane/instagram-graphql/feed"
	"github.com/arnellebalane/instagram-graphql/hub"
	"github.com/arnellebalane/instagram-graphql/metric"
)

// RootResolver is the query facade: the externally visible composition
// of the entity resolvers, the write coordinator, and the broadcast hub.
// It is the only place operation metrics are recorded and the only
// component with externally visible error shapes.
type RootResolver struct {
	feed        *feed.Resolver
	coordinator *feed.Coordinator
	hub         *hub.Hub[*feed.PostView]
	metrics     *metric.Metrics
	logger      *slog.Logger
}

// NewRootResolver wires the facade. Metrics may be nil.
func NewRootResolver(
	resolver *feed.Resolver,
	coordinator *feed.Coordinator,
	h *hub.Hub[*feed.PostView],
	metrics *metric.Metrics,
	logger *slog.Logger,
) *RootResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &RootResolver{
		feed:        resolver,
		coordinator: coordinator,
		hub:         h,
		metrics:     metrics,
		logger:      logger.With("component", "graphql-resolver"),
	}
}

// record wraps an operation with metrics and logging
func (r *RootResolver) record(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start)

	if r.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
			r.metrics.RecordError(errors.Classify(err).String())
		}
		r.metrics.RecordOperation(operation, status, duration)
	}

	if err != nil {
		r.logger.Error("operation failed", "operation", operation, "duration", duration, "error", err)
	} else {
		r.logger.Debug("operation done", "operation", operation, "duration", duration)
	}
	return err
}

// Posts lists every post with its author embedded
func (r *RootResolver) Posts(ctx context.Context) ([]*feed.PostView, error) {
	var views []*feed.PostView
	err := r.record("posts", func() error {
		var err error
		views, err = r.feed.Posts(ctx)
		return err
	})
	return views, err
}

// Post fetches one post by id; nil when absent
func (r *RootResolver) Post(ctx context.Context, id string) (*feed.PostView, error) {
	var view *feed.PostView
	err := r.record("post", func() error {
		var err error
		view, err = r.feed.Post(ctx, id)
		return err
	})
	return view, err
}

// Users lists every user
func (r *RootResolver) Users(ctx context.Context) ([]*feed.User, error) {
	var users []*feed.User
	err := r.record("users", func() error {
		var err error
		users, err = r.feed.Users(ctx)
		return err
	})
	return users, err
}

// User fetches one user by id; nil when absent
func (r *RootResolver) User(ctx context.Context, id string) (*feed.User, error) {
	var user *feed.User
	err := r.record("user", func() error {
		var err error
		user, err = r.feed.User(ctx, id)
		return err
	})
	return user, err
}

// PostsByAuthor derives a user's posts
func (r *RootResolver) PostsByAuthor(ctx context.Context, author *feed.User) ([]*feed.PostView, error) {
	var views []*feed.PostView
	err := r.record("user.posts", func() error {
		var err error
		views, err = r.feed.PostsByAuthor(ctx, author)
		return err
	})
	return views, err
}

// AddPost creates a post and announces it to subscribers
func (r *RootResolver) AddPost(ctx context.Context, input feed.CreatePostInput) (*feed.PostView, error) {
	var view *feed.PostView
	err := r.record("addPost", func() error {
		var err error
		view, err = r.coordinator.CreatePost(ctx, input)
		return err
	})
	if err == nil && r.metrics != nil {
		r.metrics.RecordPublish()
	}
	return view, err
}

// SubscribeLatestPost opens a live stream of newly created posts,
// starting from the moment of subscription
func (r *RootResolver) SubscribeLatestPost() (*hub.Subscription[*feed.PostView], error) {
	sub, err := r.hub.Subscribe()
	if err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.SetActiveSubscribers(r.hub.SubscriberCount())
	}
	return sub, nil
}

// ReleaseSubscription closes a live stream and updates the gauge.
// Safe to call more than once.
func (r *RootResolver) ReleaseSubscription(sub *hub.Subscription[*feed.PostView]) {
	sub.Close()
	if r.metrics != nil {
		r.metrics.SetActiveSubscribers(r.hub.SubscriberCount())
	}
}
