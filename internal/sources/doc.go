// Package sources provides the adapter that reads posts and their comments
// from an upstream page.
//
// The package defines the Source interface consumed by the sync manager:
//   - FetchChanges: lists posts, each with its comments already attached
//   - FetchPostDetail: looks up a single post for enrichment
//
// Current implementations:
//   - GraphSource: reads a Facebook page through the Graph API, following
//     "paging.next" links and decoding responses into typed records
//
// A failure to list posts fails the whole call. A failure to list the
// comments of one post is logged and yields that post with no comments.
package sources
