package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// sensitiveParams are query parameters stripped from URLs before they appear in errors or logs.
var sensitiveParams = []string{"access_token", "appsecret_proof", "client_secret"}

// HTTPError represents an HTTP error with status code and message
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// Retryable reports whether the request may succeed if repeated
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// NewHTTPError creates a new HTTP error. Credentials in rawURL's query are redacted.
func NewHTTPError(statusCode int, rawURL, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        RedactURL(rawURL),
		Message:    message,
	}
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// RedactURL replaces the values of credential query parameters with "REDACTED".
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}
	q := u.Query()
	redacted := false
	for _, p := range sensitiveParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
			redacted = true
		}
	}
	if !redacted {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}
