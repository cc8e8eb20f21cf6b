package status

import "time"

// SyncPhase represents the current phase of a sync pass
type SyncPhase string

const (
	// SyncPhaseIdle means no pass has run yet
	SyncPhaseIdle SyncPhase = "Idle"

	// SyncPhaseFetching means posts and comments are being listed
	SyncPhaseFetching SyncPhase = "Fetching"

	// SyncPhaseFiltering means comments are being classified
	SyncPhaseFiltering SyncPhase = "Filtering"

	// SyncPhaseEnriching means post details are being looked up
	SyncPhaseEnriching SyncPhase = "Enriching"

	// SyncPhaseEmitting means rows are being appended to the sink
	SyncPhaseEmitting SyncPhase = "Emitting"

	// SyncPhaseCommitting means the cursor is being advanced
	SyncPhaseCommitting SyncPhase = "Committing"

	// SyncPhaseComplete means the last pass completed
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseFailed means the last pass failed
	SyncPhaseFailed SyncPhase = "Failed"
)

// InProgress reports whether p is one of the phases of a running pass
func (p SyncPhase) InProgress() bool {
	switch p {
	case SyncPhaseFetching, SyncPhaseFiltering, SyncPhaseEnriching, SyncPhaseEmitting, SyncPhaseCommitting:
		return true
	default:
		return false
	}
}

// SyncStatus represents the state of the sync loop as seen by this instance
type SyncStatus struct {
	// Phase is the phase of the running pass, or the outcome of the last one
	Phase SyncPhase `json:"phase"`

	// Message provides additional information about the sync status
	Message string `json:"message,omitempty"`

	// LastAttempt is the start time of the last pass
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// LastSuccess is the start time of the last pass that completed
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`

	// AttemptCount is the number of failed passes since the last success
	AttemptCount int `json:"attemptCount"`

	// PassCount is the number of passes started
	PassCount int64 `json:"passCount"`

	// SkippedTicks counts ticks skipped while a pass was still running
	SkippedTicks int64 `json:"skippedTicks"`

	// LastRowsEmitted is the number of rows appended by the last completed pass
	LastRowsEmitted int `json:"lastRowsEmitted"`

	// LastRowsFailed is the number of rows the sink rejected in the last completed pass
	LastRowsFailed int `json:"lastRowsFailed"`

	// TotalRowsEmitted is the number of rows appended since the status was created
	TotalRowsEmitted int64 `json:"totalRowsEmitted"`

	// LastCommittedCursor is the cursor value written by the last committing pass
	LastCommittedCursor uint64 `json:"lastCommittedCursor,omitempty"`

	// LastDurationMillis is the duration of the last pass
	LastDurationMillis int64 `json:"lastDurationMillis"`
}

// Clone returns a deep copy of s
func (s *SyncStatus) Clone() SyncStatus {
	out := *s
	if s.LastAttempt != nil {
		t := *s.LastAttempt
		out.LastAttempt = &t
	}
	if s.LastSuccess != nil {
		t := *s.LastSuccess
		out.LastSuccess = &t
	}
	return out
}
