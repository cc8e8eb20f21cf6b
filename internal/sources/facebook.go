package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/pagepulse/comment-sync/internal/httpclient"
)

const (
	postListFields   = "id,message,created_time"
	commentFields    = "id,message,from,created_time"
	postDetailFields = "id,message,permalink_url,created_time"
)

// GraphOptions configures a GraphSource
type GraphOptions struct {
	BaseURL     string
	APIVersion  string
	PageID      string
	AccessToken string
	PageSize    int
	MaxPages    int
}

// GraphSource reads posts and comments of one page from the Facebook Graph API
type GraphSource struct {
	client httpclient.Client
	opts   GraphOptions
}

var _ Source = (*GraphSource)(nil)

// NewGraphSource creates a new Graph API source
func NewGraphSource(client httpclient.Client, opts GraphOptions) *GraphSource {
	if opts.PageSize <= 0 {
		opts.PageSize = 25
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	return &GraphSource{client: client, opts: opts}
}

// graphPage is the envelope of every Graph list response
type graphPage[T any] struct {
	Data   []T `json:"data"`
	Paging struct {
		Next string `json:"next,omitempty"`
	} `json:"paging"`
}

// FetchChanges lists the page's posts and attaches each post's comments. since
// only filters the comment listings: an old post can still receive new comments.
func (g *GraphSource) FetchChanges(ctx context.Context, since uint64) ([]Post, error) {
	posts, err := listAll[Post](ctx, g, g.listURL(g.opts.PageID+"/posts", postListFields, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts for page %s: %w", g.opts.PageID, err)
	}

	for i := range posts {
		comments, err := listAll[Comment](ctx, g, g.listURL(posts[i].ID+"/comments", commentFields, since))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.WarnContext(ctx, "Failed to fetch comments, treating post as having none",
				"post_id", posts[i].ID,
				"error", err,
			)
			continue
		}
		posts[i].Comments = comments
	}

	slog.DebugContext(ctx, "Fetched posts", "page_id", g.opts.PageID, "count", len(posts), "since", since)
	return posts, nil
}

// FetchPostDetail fetches message, permalink and creation time of a single post
func (g *GraphSource) FetchPostDetail(ctx context.Context, postID string) (*Post, error) {
	q := url.Values{}
	q.Set("fields", postDetailFields)
	body, err := g.client.Get(ctx, g.endpoint(postID, q))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch post %s: %w", postID, err)
	}

	var post Post
	if err := json.Unmarshal(body, &post); err != nil {
		return nil, fmt.Errorf("failed to decode post %s: %w", postID, err)
	}
	if post.ID == "" {
		post.ID = postID
	}
	return &post, nil
}

// listAll follows paging.next links until exhausted or MaxPages is reached
func listAll[T any](ctx context.Context, g *GraphSource, first string) ([]T, error) {
	var items []T
	next := first
	for page := 0; next != "" && page < g.opts.MaxPages; page++ {
		body, err := g.client.Get(ctx, next)
		if err != nil {
			return nil, err
		}

		var resp graphPage[T]
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode list response: %w", err)
		}
		items = append(items, resp.Data...)
		next = g.withToken(resp.Paging.Next)
	}
	return items, nil
}

func (g *GraphSource) listURL(path, fields string, since uint64) string {
	q := url.Values{}
	q.Set("fields", fields)
	q.Set("limit", strconv.Itoa(g.opts.PageSize))
	if since > 0 {
		q.Set("since", strconv.FormatUint(since, 10))
	}
	return g.endpoint(path, q)
}

func (g *GraphSource) endpoint(path string, q url.Values) string {
	q.Set("access_token", g.opts.AccessToken)
	return fmt.Sprintf("%s/%s/%s?%s", g.opts.BaseURL, g.opts.APIVersion, path, q.Encode())
}

// withToken makes sure a paging link carries the access token
func (g *GraphSource) withToken(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return next
	}
	q := u.Query()
	if q.Get("access_token") != "" {
		return next
	}
	q.Set("access_token", g.opts.AccessToken)
	u.RawQuery = q.Encode()
	return u.String()
}
