package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// GraphComment is a comment served by FakeGraph
type GraphComment struct {
	ID          string
	Message     string
	AuthorID    string
	AuthorName  string
	CreatedTime string
}

// GraphPost is a post served by FakeGraph
type GraphPost struct {
	ID           string
	Message      string
	PermalinkURL string
	CreatedTime  string
	Comments     []GraphComment

	// DetailMissing makes the single-post lookup answer 404
	DetailMissing bool
}

// FakeGraph serves one page's posts, comments and post details the way the
// Graph API does, and records the "since" parameter of every comments listing.
type FakeGraph struct {
	server     *httptest.Server
	apiVersion string
	pageID     string
	token      string

	mu     sync.Mutex
	posts  []GraphPost
	sinces []string
}

// NewFakeGraph starts a fake Graph API for pageID expecting token on every request
func NewFakeGraph(apiVersion, pageID, token string) *FakeGraph {
	g := &FakeGraph{apiVersion: apiVersion, pageID: pageID, token: token}
	g.server = httptest.NewServer(http.HandlerFunc(g.serve))
	return g
}

// URL returns the base URL to configure as source.facebook.baseUrl
func (g *FakeGraph) URL() string {
	return g.server.URL
}

// Close stops the server
func (g *FakeGraph) Close() {
	g.server.Close()
}

// SetPosts replaces the served posts
func (g *FakeGraph) SetPosts(posts ...GraphPost) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.posts = posts
}

// AddComment appends a comment to the post with postID
func (g *FakeGraph) AddComment(postID string, c GraphComment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.posts {
		if g.posts[i].ID == postID {
			g.posts[i].Comments = append(g.posts[i].Comments, c)
		}
	}
}

// Sinces returns the "since" values of the comments listings received so far
func (g *FakeGraph) Sinces() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.sinces...)
}

func (g *FakeGraph) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Query().Get("access_token") != g.token {
		writeGraphError(w, http.StatusUnauthorized, "Invalid OAuth access token.")
		return
	}

	prefix := "/" + g.apiVersion + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeGraphError(w, http.StatusNotFound, "Unknown path components")
		return
	}
	segments := strings.Split(strings.TrimPrefix(r.URL.Path, prefix), "/")

	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case len(segments) == 2 && segments[0] == g.pageID && segments[1] == "posts":
		data := make([]map[string]any, 0, len(g.posts))
		for _, p := range g.posts {
			data = append(data, map[string]any{
				"id":           p.ID,
				"message":      p.Message,
				"created_time": p.CreatedTime,
			})
		}
		writeList(w, data)
	case len(segments) == 2 && segments[1] == "comments":
		post, ok := g.find(segments[0])
		if !ok {
			writeGraphError(w, http.StatusNotFound, "Object does not exist")
			return
		}
		g.sinces = append(g.sinces, r.URL.Query().Get("since"))
		data := make([]map[string]any, 0, len(post.Comments))
		for _, c := range post.Comments {
			data = append(data, map[string]any{
				"id":           c.ID,
				"message":      c.Message,
				"created_time": c.CreatedTime,
				"from":         map[string]string{"id": c.AuthorID, "name": c.AuthorName},
			})
		}
		writeList(w, data)
	case len(segments) == 1:
		post, ok := g.find(segments[0])
		if !ok || post.DetailMissing {
			writeGraphError(w, http.StatusNotFound, "Object does not exist")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            post.ID,
			"message":       post.Message,
			"permalink_url": post.PermalinkURL,
			"created_time":  post.CreatedTime,
		})
	default:
		writeGraphError(w, http.StatusNotFound, "Unknown path components")
	}
}

func (g *FakeGraph) find(id string) (GraphPost, bool) {
	for _, p := range g.posts {
		if p.ID == id {
			return p, true
		}
	}
	return GraphPost{}, false
}

func writeList(w http.ResponseWriter, data []map[string]any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "paging": map[string]any{}})
}

func writeGraphError(w http.ResponseWriter, code int, message string) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "GraphMethodException", "code": 100},
	})
}
