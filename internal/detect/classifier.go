package detect

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pagepulse/comment-sync/internal/config"
	"github.com/pagepulse/comment-sync/internal/sources"
)

// Classifier decides whether a comment should be emitted in the current pass
type Classifier interface {
	IsNew(c sources.Comment, cursor uint64) bool
}

// CursorClassifier compares each comment's creation time with the shared cursor
type CursorClassifier struct{}

// IsNew implements Classifier
func (CursorClassifier) IsNew(c sources.Comment, cursor uint64) bool {
	return IsNew(c.CreatedTime, cursor)
}

// SeenSet remembers comment ids for the lifetime of the process. It is safe for concurrent use.
type SeenSet struct {
	ids   sync.Map
	count atomic.Int64
}

// NewSeenSet creates an empty seen-set
func NewSeenSet() *SeenSet {
	return &SeenSet{}
}

// TestAndAdd records id and reports whether it had not been seen before
func (s *SeenSet) TestAndAdd(id string) bool {
	if _, loaded := s.ids.LoadOrStore(id, struct{}{}); loaded {
		return false
	}
	s.count.Add(1)
	return true
}

// Len returns the number of ids recorded so far
func (s *SeenSet) Len() int {
	return int(s.count.Load())
}

// SeenSetClassifier treats a comment as new the first time its id is observed.
// The cursor is ignored.
type SeenSetClassifier struct {
	Seen *SeenSet
}

// IsNew implements Classifier. Comments without an id cannot be deduplicated and are always new.
func (c SeenSetClassifier) IsNew(comment sources.Comment, _ uint64) bool {
	if comment.ID == "" {
		return true
	}
	return c.Seen.TestAndAdd(comment.ID)
}

// NewClassifier returns the classifier for strategy
func NewClassifier(strategy string) (Classifier, error) {
	switch strategy {
	case "", config.StrategyCursor:
		return CursorClassifier{}, nil
	case config.StrategySeenSet:
		return SeenSetClassifier{Seen: NewSeenSet()}, nil
	default:
		return nil, fmt.Errorf("unsupported detection strategy: %s", strategy)
	}
}
