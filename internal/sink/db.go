package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const insertRowQuery = `
INSERT INTO comment_rows (
    comment_time, post_id, comment_id, author_name, author_id,
    message, phone, post_message, post_url, post_created_time
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// DBSink appends rows to the comment_rows table
type DBSink struct {
	pool *pgxpool.Pool
}

var _ Sink = (*DBSink)(nil)

// NewDBSink creates a sink writing through pool. The pool stays owned by the caller.
func NewDBSink(pool *pgxpool.Pool) *DBSink {
	return &DBSink{pool: pool}
}

// AppendRow inserts row
func (d *DBSink) AppendRow(ctx context.Context, row Row) error {
	_, err := d.pool.Exec(ctx, insertRowQuery,
		row.Timestamp, row.PostID, row.CommentID, row.AuthorName, row.AuthorID,
		row.Message, row.Phone, row.PostMessage, row.PostURL, row.PostCreatedTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert row for comment %s: %w", row.CommentID, err)
	}
	return nil
}

// Readiness pings the database
func (d *DBSink) Readiness(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Close is a no-op: the pool is owned by the storage factory.
func (*DBSink) Close() error {
	return nil
}
