// Package sync runs a single comment sync pass.
//
// A pass reads the shared cursor, records its own start time, and then moves
// through these phases:
//
//   - Fetching: list posts and their comments from the source
//   - Filtering: keep comments the classifier reports as new, in source order
//   - Enriching: look up each affected post, degrading to a placeholder on failure
//   - Emitting: append one row per new comment to the sink
//   - Committing: write the pass start time to the cursor store
//
// The cursor is committed only when at least one row was emitted. The value
// committed is the pass start time, not the newest comment time, so comments
// created while the pass was running are picked up by the next pass.
//
// Only a fetch failure fails the pass (Error with ReasonFetchFailed). Detail,
// row and commit failures are logged and reported in Result.
//
// Scheduling lives in the sync/coordinator subpackage.
package sync
