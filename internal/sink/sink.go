// Package sink provides the append-only destinations rows are written to.
package sink

import (
	"context"
)

//go:generate mockgen -destination=mocks/mock_sink.go -package=mocks github.com/pagepulse/comment-sync/internal/sink Sink

// Sink is an append-only destination for rows
type Sink interface {
	// AppendRow appends a single row
	AppendRow(ctx context.Context, row Row) error

	// Readiness reports whether the destination can currently accept rows
	Readiness(ctx context.Context) error

	// Close releases resources held by the sink
	Close() error
}

// Row is one flattened comment, written as ten columns in field order
type Row struct {
	Timestamp       string `json:"timestamp"`
	PostID          string `json:"postId"`
	CommentID       string `json:"commentId"`
	AuthorName      string `json:"authorName"`
	AuthorID        string `json:"authorId"`
	Message         string `json:"message"`
	Phone           string `json:"phone"`
	PostMessage     string `json:"postMessage"`
	PostURL         string `json:"postUrl"`
	PostCreatedTime string `json:"postCreatedTime"`
}

// Values returns the row's columns in sheet order
func (r Row) Values() []string {
	return []string{
		r.Timestamp,
		r.PostID,
		r.CommentID,
		r.AuthorName,
		r.AuthorID,
		r.Message,
		r.Phone,
		r.PostMessage,
		r.PostURL,
		r.PostCreatedTime,
	}
}
