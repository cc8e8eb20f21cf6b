// Package phone extracts phone numbers from free text.
package phone

import "regexp"

var pattern = regexp.MustCompile(`(\+?\d{1,3}[-\s]?)?\(?\d{3}\)?[-\s]?\d{3}[-\s]?\d{4}`)

// Extract returns the first phone-number-like substring of text, or "" when there is none
func Extract(text string) string {
	return pattern.FindString(text)
}
