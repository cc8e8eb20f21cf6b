package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/gomega"

	"github.com/pagepulse/comment-sync/internal/app"
	"github.com/pagepulse/comment-sync/internal/config"
)

const (
	// TestPageID is the page polled by the test configuration
	TestPageID = "page-1"

	// TestAPIVersion is the Graph API version in the test configuration
	TestAPIVersion = "v19.0"

	// TestSpreadsheetID is the spreadsheet rows are appended to
	TestSpreadsheetID = "sheet-it"

	// TestAccessToken is written to the access token file
	TestAccessToken = "integration-token"
)

// WriteConfigYAML writes a configuration polling graphURL, appending to
// sheetsEndpoint and keeping the cursor in a file under dir. It returns the
// config path and the admin port.
func WriteConfigYAML(dir, graphURL, sheetsEndpoint string) (string, int) {
	tokenFile := filepath.Join(dir, "token")
	gomega.Expect(os.WriteFile(tokenFile, []byte(TestAccessToken+"\n"), 0600)).To(gomega.Succeed())

	port := FreePort()
	content := fmt.Sprintf(`instanceId: integration
source:
  facebook:
    pageId: %q
    accessTokenFile: %s
    apiVersion: %s
    baseUrl: %s
    maxRetries: 1
    timeout: 5s
sync:
  interval: 1h
  strategy: cursor
cursor:
  type: file
  file:
    path: %s
sink:
  type: sheets
  sheets:
    spreadsheetId: %s
    endpoint: %s
admin:
  address: 127.0.0.1:%d
`, TestPageID, tokenFile, TestAPIVersion, graphURL, filepath.Join(dir, "cursor.json"),
		TestSpreadsheetID, sheetsEndpoint, port)

	path := filepath.Join(dir, "config.yaml")
	gomega.Expect(os.WriteFile(path, []byte(content), 0600)).To(gomega.Succeed())
	return path, port
}

// FreePort returns a TCP port that was free a moment ago
func FreePort() int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port
}

// ServerTestHelper runs the service in-process for one test
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	httpClient *http.Client
	app        *app.CommentSyncApp
	startErr   chan error
}

// NewServerTestHelper creates a helper for the service configured at configPath
func NewServerTestHelper(ctx context.Context, configPath string, port int) *ServerTestHelper {
	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", port),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		startErr:   make(chan error, 1),
	}
}

// StartServer loads the configuration, builds the app and runs it in the background
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := app.NewCommentSyncApp(s.ctx, app.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	s.app = a

	go func() {
		s.startErr <- a.Start()
	}()
	return nil
}

// StopServer stops the app and waits for Start to return
func (s *ServerTestHelper) StopServer() error {
	if s.app == nil {
		return nil
	}
	if err := s.app.Stop(5 * time.Second); err != nil {
		return err
	}
	select {
	case err := <-s.startErr:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("app did not stop in time")
	}
}

// WaitForServerReady polls /readiness until it answers 200
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() int {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return 0
		}
		_ = resp.Body.Close()
		return resp.StatusCode
	}, timeout, 100*time.Millisecond).Should(gomega.Equal(http.StatusOK))
}

// GetJSON issues a GET against the admin API and decodes the response into out
func (s *ServerTestHelper) GetJSON(path string, out any) int {
	resp, err := s.httpClient.Get(s.baseURL + path)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return decode(resp, out)
}

// PostJSON issues an empty POST against the admin API and decodes the response into out
func (s *ServerTestHelper) PostJSON(path string, out any) int {
	resp, err := s.httpClient.Post(s.baseURL+path, "application/json", nil)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return decode(resp, out)
}

func decode(resp *http.Response, out any) int {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	if out != nil {
		gomega.Expect(json.Unmarshal(body, out)).To(gomega.Succeed(), string(body))
	}
	return resp.StatusCode
}
