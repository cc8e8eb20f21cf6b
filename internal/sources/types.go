package sources

import (
	"context"
)

//go:generate mockgen -destination=mocks/mock_source.go -package=mocks github.com/pagepulse/comment-sync/internal/sources Source

// Source is an interface with methods to fetch posts and comments from an upstream page
type Source interface {
	// FetchChanges lists posts with their comments attached. When since is non-zero
	// the upstream is asked to filter comments to those created after it; callers
	// must still classify every comment themselves.
	FetchChanges(ctx context.Context, since uint64) ([]Post, error)

	// FetchPostDetail looks up a single post's message, permalink and creation time
	FetchPostDetail(ctx context.Context, postID string) (*Post, error)
}

// Author identifies who wrote a comment
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Comment is a child record of a Post
type Comment struct {
	ID          string  `json:"id"`
	Message     string  `json:"message,omitempty"`
	CreatedTime string  `json:"created_time,omitempty"`
	Author      *Author `json:"from,omitempty"`
}

// Post is a parent record carrying the comments fetched with it, in upstream order
type Post struct {
	ID           string    `json:"id"`
	Message      string    `json:"message,omitempty"`
	CreatedTime  string    `json:"created_time,omitempty"`
	PermalinkURL string    `json:"permalink_url,omitempty"`
	Comments     []Comment `json:"-"`
}

// PlaceholderPost is the degraded detail used when a post lookup fails: only the id is kept.
func PlaceholderPost(id string) *Post {
	return &Post{ID: id}
}
