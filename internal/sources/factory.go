package sources

import (
	"fmt"

	"github.com/pagepulse/comment-sync/internal/config"
	"github.com/pagepulse/comment-sync/internal/httpclient"
)

// NewSourceFromConfig creates the configured source, resolving the access token
// and building an HTTP client with the configured timeouts and retry budget.
func NewSourceFromConfig(cfg *config.Config) (Source, error) {
	fb := cfg.Source.Facebook
	if fb == nil {
		return nil, fmt.Errorf("unsupported source: source.facebook is not configured")
	}

	token, err := fb.GetAccessToken()
	if err != nil {
		return nil, err
	}

	client := httpclient.NewDefaultClient(
		httpclient.WithTimeout(fb.GetTimeout()),
		httpclient.WithConnectTimeout(fb.GetConnectTimeout()),
		httpclient.WithMaxRetries(fb.GetMaxRetries()),
	)

	return NewGraphSource(client, GraphOptions{
		BaseURL:     fb.GetBaseURL(),
		APIVersion:  fb.GetAPIVersion(),
		PageID:      fb.PageID,
		AccessToken: token,
		PageSize:    fb.GetPageSize(),
		MaxPages:    fb.GetMaxPages(),
	}), nil
}
