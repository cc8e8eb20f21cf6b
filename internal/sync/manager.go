package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/pagepulse/comment-sync/internal/cursor"
	"github.com/pagepulse/comment-sync/internal/detect"
	"github.com/pagepulse/comment-sync/internal/otel"
	"github.com/pagepulse/comment-sync/internal/phone"
	"github.com/pagepulse/comment-sync/internal/sink"
	"github.com/pagepulse/comment-sync/internal/sources"
	"github.com/pagepulse/comment-sync/internal/status"
)

// TracerName is the name of the tracer used for sync passes
const TracerName = "github.com/pagepulse/comment-sync/sync"

// UnknownAuthor fills the author columns of comments that carry no author
const UnknownAuthor = "Unknown"

// Sync failure reasons
const (
	// ReasonFetchFailed means the post listing could not be fetched; nothing was emitted or committed
	ReasonFetchFailed = "fetch-failed"
)

// Result contains the outcome of a pass that got past fetching
type Result struct {
	// CursorAtStart is the cursor read at the beginning of the pass
	CursorAtStart uint64

	// SyncStartTime is taken before fetching and is the value committed on success
	SyncStartTime time.Time

	PostsFetched    int
	PostsWithNew    int
	NewComments     int
	RowsEmitted     int
	RowsFailed      int
	DetailFallbacks int

	// Committed is true when a commit was attempted and did not fail
	Committed bool

	// Commit is the store's report for the commit attempt
	Commit cursor.CommitResult

	// CommitErr is the swallowed commit error, if any
	CommitErr error

	Duration time.Duration
}

// Error represents a failed pass
type Error struct {
	Err     error
	Message string
	Reason  string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PhaseObserver is notified when a pass enters a new phase
type PhaseObserver func(ctx context.Context, phase status.SyncPhase)

// Manager runs sync passes
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/pagepulse/comment-sync/internal/sync Manager
type Manager interface {
	// PerformSync runs one FETCHING..COMMITTING pass.
	// Row and commit failures are reported in Result; only a fetch failure returns an Error.
	PerformSync(ctx context.Context) (*Result, *Error)
}

// Option configures the default manager
type Option func(*defaultSyncManager)

// WithServerSideSince controls whether the cursor is sent to the source as a filter
func WithServerSideSince(enabled bool) Option {
	return func(m *defaultSyncManager) {
		m.serverSideSince = enabled
	}
}

// WithPhaseObserver registers a callback for phase transitions
func WithPhaseObserver(observer PhaseObserver) Option {
	return func(m *defaultSyncManager) {
		m.observer = observer
	}
}

// WithTracerProvider enables tracing of passes
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *defaultSyncManager) {
		if tp != nil {
			m.tracer = tp.Tracer(TracerName)
		}
	}
}

// WithClock overrides the clock used for the pass start time
func WithClock(now func() time.Time) Option {
	return func(m *defaultSyncManager) {
		if now != nil {
			m.now = now
		}
	}
}

// defaultSyncManager is the default implementation of Manager
type defaultSyncManager struct {
	source     sources.Source
	store      cursor.Store
	classifier detect.Classifier
	sink       sink.Sink

	serverSideSince bool
	observer        PhaseObserver
	tracer          trace.Tracer
	now             func() time.Time
}

// NewDefaultSyncManager creates a new Manager
func NewDefaultSyncManager(
	source sources.Source,
	store cursor.Store,
	classifier detect.Classifier,
	rowSink sink.Sink,
	opts ...Option,
) Manager {
	m := &defaultSyncManager{
		source:          source,
		store:           store,
		classifier:      classifier,
		sink:            rowSink,
		serverSideSince: true,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// pendingPost is a post with the comments classified as new in this pass
type pendingPost struct {
	post     sources.Post
	comments []sources.Comment
}

// PerformSync runs one pass
func (m *defaultSyncManager) PerformSync(ctx context.Context) (*Result, *Error) {
	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.PerformSync")
	defer span.End()

	result := &Result{
		CursorAtStart: m.store.Get(ctx),
		SyncStartTime: m.now(),
	}
	span.SetAttributes(otel.AttrCursor.Int64(int64(result.CursorAtStart)))
	defer func() {
		result.Duration = m.now().Sub(result.SyncStartTime)
	}()

	m.enter(ctx, status.SyncPhaseFetching)
	since := uint64(0)
	if m.serverSideSince {
		since = result.CursorAtStart
	}
	posts, err := m.source.FetchChanges(ctx, since)
	if err != nil {
		otel.RecordError(span, err)
		slog.ErrorContext(ctx, "Failed to fetch posts", "cursor", result.CursorAtStart, "error", err)
		return nil, &Error{
			Err:     err,
			Message: fmt.Sprintf("Failed to fetch posts: %v", err),
			Reason:  ReasonFetchFailed,
		}
	}
	result.PostsFetched = len(posts)

	m.enter(ctx, status.SyncPhaseFiltering)
	pending := m.filter(posts, result)

	m.enter(ctx, status.SyncPhaseEnriching)
	details := m.enrich(ctx, pending, result)

	m.enter(ctx, status.SyncPhaseEmitting)
	m.emit(ctx, pending, details, result)

	if result.RowsEmitted > 0 {
		m.enter(ctx, status.SyncPhaseCommitting)
		m.commit(ctx, result)
	}

	span.SetAttributes(otel.AttrResultCount.Int(result.RowsEmitted))
	slog.InfoContext(ctx, "Sync pass finished",
		"cursor", result.CursorAtStart,
		"posts", result.PostsFetched,
		"new_comments", result.NewComments,
		"rows_emitted", result.RowsEmitted,
		"rows_failed", result.RowsFailed,
		"committed", result.Committed,
	)
	return result, nil
}

func (m *defaultSyncManager) enter(ctx context.Context, phase status.SyncPhase) {
	slog.DebugContext(ctx, "Sync phase", "phase", phase)
	otel.MarkPhase(ctx, string(phase))
	if m.observer != nil {
		m.observer(ctx, phase)
	}
}

// filter keeps the new comments of each post, in source order
func (m *defaultSyncManager) filter(posts []sources.Post, result *Result) []pendingPost {
	var pending []pendingPost
	for _, post := range posts {
		var fresh []sources.Comment
		for _, c := range post.Comments {
			if m.classifier.IsNew(c, result.CursorAtStart) {
				fresh = append(fresh, c)
			}
		}
		if len(fresh) == 0 {
			continue
		}
		pending = append(pending, pendingPost{post: post, comments: fresh})
		result.NewComments += len(fresh)
	}
	result.PostsWithNew = len(pending)
	return pending
}

// enrich looks up each pending post, degrading to a placeholder on failure
func (m *defaultSyncManager) enrich(ctx context.Context, pending []pendingPost, result *Result) []*sources.Post {
	details := make([]*sources.Post, len(pending))
	for i, p := range pending {
		detail, err := m.source.FetchPostDetail(ctx, p.post.ID)
		if err != nil || detail == nil {
			slog.WarnContext(ctx, "Failed to fetch post detail, using placeholder",
				"post_id", p.post.ID,
				"error", err,
			)
			otel.AddEvent(ctx, otel.EventDetailFallback, otel.AttrPostID.String(p.post.ID))
			detail = sources.PlaceholderPost(p.post.ID)
			result.DetailFallbacks++
		}
		details[i] = detail
	}
	return details
}

func (m *defaultSyncManager) emit(ctx context.Context, pending []pendingPost, details []*sources.Post, result *Result) {
	for i, p := range pending {
		for _, c := range p.comments {
			row := buildRow(p.post.ID, c, details[i])
			if err := m.sink.AppendRow(ctx, row); err != nil {
				result.RowsFailed++
				otel.AddEvent(ctx, otel.EventRowAppendFailed,
					otel.AttrPostID.String(p.post.ID),
					otel.AttrCommentID.String(c.ID),
				)
				slog.ErrorContext(ctx, "Failed to append row",
					"post_id", p.post.ID,
					"comment_id", c.ID,
					"error", err,
				)
				continue
			}
			result.RowsEmitted++
		}
	}
}

func (m *defaultSyncManager) commit(ctx context.Context, result *Result) {
	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.commit")
	defer span.End()

	value := uint64(result.SyncStartTime.Unix())
	commit, err := m.store.Commit(ctx, value)
	result.Commit = commit
	if err != nil {
		otel.RecordError(span, err)
		result.CommitErr = err
		slog.ErrorContext(ctx, "Failed to commit cursor", "cursor", value, "error", err)
		return
	}
	result.Committed = true
}

func buildRow(postID string, c sources.Comment, detail *sources.Post) sink.Row {
	authorName, authorID := UnknownAuthor, UnknownAuthor
	if c.Author != nil {
		authorName, authorID = c.Author.Name, c.Author.ID
	}
	return sink.Row{
		Timestamp:       detect.NormalizeTimestamp(c.CreatedTime),
		PostID:          postID,
		CommentID:       c.ID,
		AuthorName:      authorName,
		AuthorID:        authorID,
		Message:         c.Message,
		Phone:           phone.Extract(c.Message),
		PostMessage:     detail.Message,
		PostURL:         detail.PermalinkURL,
		PostCreatedTime: detect.NormalizeTimestamp(detail.CreatedTime),
	}
}
