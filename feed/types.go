// Package feed implements the resolution and consistency layer between
// the typed query surface and the hierarchical store: graph-shaped reads
// with client-side joins, the validated write path for new posts, and
// the composed views handed to subscribers.
package feed

// MediaType enumerates the kinds of media a post can carry
type MediaType string

// Known media types
const (
	MediaTypeCarouselAlbum MediaType = "CAROUSEL_ALBUM"
	MediaTypeImage         MediaType = "IMAGE"
	MediaTypeVideo         MediaType = "VIDEO"
)

// Valid reports whether the value is a known media type
func (mt MediaType) Valid() bool {
	switch mt {
	case MediaTypeCarouselAlbum, MediaTypeImage, MediaTypeVideo:
		return true
	default:
		return false
	}
}

// User is an author record. Users pre-exist in the store; this service
// never creates them.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Handle string `json:"handle"`
}

// Post is the persisted form of a post. The author is kept strictly as a
// reference: embedding the user record here would let the author's
// mutable fields drift out of sync with the live user on later reads.
type Post struct {
	ID            string    `json:"id"`
	Caption       string    `json:"caption,omitempty"`
	CommentsCount int       `json:"comments_count"`
	LikeCount     int       `json:"like_count"`
	MediaType     MediaType `json:"media_type,omitempty"`
	MediaURL      string    `json:"media_url,omitempty"`
	Permalink     string    `json:"permalink"`
	AuthorID      string    `json:"author_id"`
}

// PostView is the composed read-time projection of a post: the stored
// record with its author reference resolved to the full user record.
// Never persisted in this form.
//
// When the referenced author no longer exists, Author is nil and
// AuthorErr carries the integrity anomaly so callers can surface it per
// field instead of discarding the rest of the post.
type PostView struct {
	Post
	Author    *User
	AuthorErr error
}
