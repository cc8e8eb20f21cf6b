package sources_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/pagepulse/comment-sync/internal/httpclient"
	httpmocks "github.com/pagepulse/comment-sync/internal/httpclient/mocks"
	"github.com/pagepulse/comment-sync/internal/sources"
)

// graphFake serves a tiny slice of the Graph API and records every query it receives.
type graphFake struct {
	mu      sync.Mutex
	queries map[string][]url.Values
	server  *httptest.Server
}

func newGraphFake(t *testing.T) *graphFake {
	t.Helper()
	f := &graphFake{queries: map[string][]url.Values{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	f.server.Config.SetKeepAlivesEnabled(false)
	t.Cleanup(f.server.Close)
	return f
}

func (f *graphFake) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.queries[r.URL.Path] = append(f.queries[r.URL.Path], r.URL.Query())
	f.mu.Unlock()

	if r.URL.Query().Get("access_token") != "page-token" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token."}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/v19.0/page-1/posts":
		if r.URL.Query().Get("after") == "" {
			_, _ = w.Write([]byte(`{"data":[{"id":"page-1_p1","message":"First","created_time":"2025-08-30T10:00:00+0000"}],` +
				`"paging":{"next":"` + f.server.URL + `/v19.0/page-1/posts?after=c1&limit=25"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"page-1_p2","message":"Second","created_time":"2025-08-30T11:00:00+0000"}],"paging":{}}`))
	case "/v19.0/page-1_p1/comments":
		_, _ = w.Write([]byte(`{"data":[` +
			`{"id":"c1","message":"call 555-123-4567","created_time":"2025-08-30T10:05:00+0000","from":{"id":"u1","name":"Ann"}},` +
			`{"id":"c2","message":"hello","created_time":"2025-08-30T10:06:00+0000"}]}`))
	case "/v19.0/page-1_p2/comments":
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Unsupported get request."}}`))
	case "/v19.0/page-1_p1":
		_, _ = w.Write([]byte(`{"id":"page-1_p1","message":"First","permalink_url":"https://facebook.com/p1",` +
			`"created_time":"2025-08-30T10:00:00+0000"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *graphFake) recorded(path string) []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[path]
}

func (f *graphFake) source(token string, maxPages int) *sources.GraphSource {
	client := httpclient.NewDefaultClient(
		httpclient.WithInitialBackoff(time.Millisecond),
		httpclient.WithMaxRetries(1),
	)
	return sources.NewGraphSource(client, sources.GraphOptions{
		BaseURL:     f.server.URL,
		APIVersion:  "v19.0",
		PageID:      "page-1",
		AccessToken: token,
		PageSize:    25,
		MaxPages:    maxPages,
	})
}

func TestGraphSource_FetchChanges(t *testing.T) {
	t.Parallel()

	fake := newGraphFake(t)
	posts, err := fake.source("page-token", 10).FetchChanges(context.Background(), 1756548000)
	require.NoError(t, err)

	require.Len(t, posts, 2)
	assert.Equal(t, "page-1_p1", posts[0].ID)
	assert.Equal(t, "page-1_p2", posts[1].ID)

	require.Len(t, posts[0].Comments, 2)
	assert.Equal(t, "c1", posts[0].Comments[0].ID)
	require.NotNil(t, posts[0].Comments[0].Author)
	assert.Equal(t, "Ann", posts[0].Comments[0].Author.Name)
	assert.Equal(t, "u1", posts[0].Comments[0].Author.ID)
	assert.Nil(t, posts[0].Comments[1].Author)

	assert.Empty(t, posts[1].Comments, "a failed comment listing yields no comments")

	listQueries := fake.recorded("/v19.0/page-1/posts")
	require.Len(t, listQueries, 2)
	assert.Equal(t, "id,message,created_time", listQueries[0].Get("fields"))
	assert.Equal(t, "25", listQueries[0].Get("limit"))
	assert.False(t, listQueries[0].Has("since"), "posts older than the cursor can have new comments")
	assert.Equal(t, "page-token", listQueries[1].Get("access_token"), "paging links get the token")

	commentQueries := fake.recorded("/v19.0/page-1_p1/comments")
	require.Len(t, commentQueries, 1)
	assert.Equal(t, "id,message,from,created_time", commentQueries[0].Get("fields"))
	assert.Equal(t, "1756548000", commentQueries[0].Get("since"))
}

func TestGraphSource_FetchChanges_NoSince(t *testing.T) {
	t.Parallel()

	fake := newGraphFake(t)
	_, err := fake.source("page-token", 10).FetchChanges(context.Background(), 0)
	require.NoError(t, err)

	for _, q := range fake.recorded("/v19.0/page-1_p1/comments") {
		assert.False(t, q.Has("since"))
	}
}

func TestGraphSource_FetchChanges_MaxPages(t *testing.T) {
	t.Parallel()

	fake := newGraphFake(t)
	posts, err := fake.source("page-token", 1).FetchChanges(context.Background(), 0)
	require.NoError(t, err)

	require.Len(t, posts, 1)
	assert.Len(t, fake.recorded("/v19.0/page-1/posts"), 1)
}

func TestGraphSource_FetchChanges_ListFailure(t *testing.T) {
	t.Parallel()

	fake := newGraphFake(t)
	posts, err := fake.source("wrong-token", 10).FetchChanges(context.Background(), 0)
	require.Error(t, err)
	assert.Nil(t, posts)
	assert.Equal(t, http.StatusUnauthorized, httpclient.StatusCode(err))
	assert.NotContains(t, err.Error(), "wrong-token")
}

func TestGraphSource_FetchPostDetail(t *testing.T) {
	t.Parallel()

	fake := newGraphFake(t)
	src := fake.source("page-token", 10)

	post, err := src.FetchPostDetail(context.Background(), "page-1_p1")
	require.NoError(t, err)
	assert.Equal(t, "First", post.Message)
	assert.Equal(t, "https://facebook.com/p1", post.PermalinkURL)
	assert.Equal(t, "2025-08-30T10:00:00+0000", post.CreatedTime)

	queries := fake.recorded("/v19.0/page-1_p1")
	require.Len(t, queries, 1)
	assert.Equal(t, "id,message,permalink_url,created_time", queries[0].Get("fields"))

	_, err = src.FetchPostDetail(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httpclient.StatusCode(err))
}

func TestGraphSource_DecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		call    func(*sources.GraphSource) error
		wantErr string
	}{
		{
			name: "malformed post list",
			body: `{"data":`,
			call: func(s *sources.GraphSource) error {
				_, err := s.FetchChanges(context.Background(), 0)
				return err
			},
			wantErr: "failed to decode list response",
		},
		{
			name: "malformed detail",
			body: `not json`,
			call: func(s *sources.GraphSource) error {
				_, err := s.FetchPostDetail(context.Background(), "p1")
				return err
			},
			wantErr: "failed to decode post p1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			client := httpmocks.NewMockClient(ctrl)
			client.EXPECT().Get(gomock.Any(), gomock.Any()).Return([]byte(tt.body), nil)

			src := sources.NewGraphSource(client, sources.GraphOptions{
				BaseURL: "https://graph.example", APIVersion: "v19.0", PageID: "page", AccessToken: "t",
			})
			err := tt.call(src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGraphSource_CommentFailureAbortsOnCancel(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := httpmocks.NewMockClient(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	client.EXPECT().
		Get(gomock.Any(), gomock.Cond(func(u string) bool { return strings.Contains(u, "/posts?") })).
		Return([]byte(`{"data":[{"id":"p1"}]}`), nil)
	client.EXPECT().
		Get(gomock.Any(), gomock.Cond(func(u string) bool { return strings.Contains(u, "/p1/comments?") })).
		DoAndReturn(func(context.Context, string) ([]byte, error) {
			cancel()
			return nil, errors.New("connection reset")
		})

	src := sources.NewGraphSource(client, sources.GraphOptions{
		BaseURL: "https://graph.example", APIVersion: "v19.0", PageID: "page", AccessToken: "t",
	})
	_, err := src.FetchChanges(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
