package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// FakeSheets accepts values.append and spreadsheets.get calls for one spreadsheet
// and keeps the appended rows in memory.
type FakeSheets struct {
	server        *httptest.Server
	spreadsheetID string

	mu   sync.Mutex
	rows [][]string
}

// NewFakeSheets starts a fake Sheets API serving spreadsheetID
func NewFakeSheets(spreadsheetID string) *FakeSheets {
	s := &FakeSheets{spreadsheetID: spreadsheetID}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Endpoint returns the value to configure as sink.sheets.endpoint
func (s *FakeSheets) Endpoint() string {
	return s.server.URL + "/"
}

// Close stops the server
func (s *FakeSheets) Close() {
	s.server.Close()
}

// Rows returns a copy of the rows appended so far
func (s *FakeSheets) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.rows))
	copy(out, s.rows)
	return out
}

// CommentIDs returns the comment id column of the appended rows
func (s *FakeSheets) CommentIDs() []string {
	rows := s.Rows()
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if len(r) > 2 {
			ids = append(ids, r[2])
		}
	}
	return ids
}

func (s *FakeSheets) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	base := "/v4/spreadsheets/" + s.spreadsheetID

	switch {
	case r.Method == http.MethodGet && r.URL.Path == base:
		_, _ = fmt.Fprintf(w, `{"spreadsheetId":%q}`, s.spreadsheetID)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, base+"/values/") &&
		strings.HasSuffix(r.URL.Path, ":append"):
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		for _, v := range body.Values {
			row := make([]string, len(v))
			for i, cell := range v {
				row[i] = fmt.Sprint(cell)
			}
			s.rows = append(s.rows, row)
		}
		s.mu.Unlock()
		_, _ = fmt.Fprintf(w, `{"spreadsheetId":%q,"updates":{"updatedRows":%d}}`, s.spreadsheetID, len(body.Values))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
	}
}
