// Package detect decides which comments are new since the previous pass.
package detect

import (
	"fmt"
	"regexp"
	"time"
)

// compactOffset matches a trailing "+HHMM" or "-HHMM" zone offset
var compactOffset = regexp.MustCompile(`([+-]\d{2})(\d{2})$`)

// ParseTimestamp parses an RFC 3339 timestamp, also accepting the compact
// "+0000" offset form the Graph API returns.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339, compactOffset.ReplaceAllString(s, "$1:$2"))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// NormalizeTimestamp renders s as UTC RFC 3339. Empty input stays empty and
// input that cannot be parsed is returned unchanged.
func NormalizeTimestamp(s string) string {
	if s == "" {
		return ""
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return s
	}
	return t.UTC().Format(time.RFC3339)
}

// IsNew reports whether an item created at createdTime is newer than cursor
// (epoch seconds). Anything that cannot be compared counts as new.
func IsNew(createdTime string, cursor uint64) bool {
	if cursor == 0 || createdTime == "" {
		return true
	}
	t, err := ParseTimestamp(createdTime)
	if err != nil {
		return true
	}
	created := t.Unix()
	if created < 0 {
		return false
	}
	return uint64(created) > cursor
}
