// Package integration runs the comment sync service end to end against fake
// Graph API and Google Sheets servers, checking emitted rows, cursor commits
// and the admin API.
package integration
