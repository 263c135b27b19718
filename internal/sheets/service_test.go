package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"labscan/internal/report"
)

type fakeSheets struct {
	mu          sync.Mutex
	existing    []string
	hasHeaders  bool
	batchCalls  int
	headerRows  [][]interface{}
	appended    [][]interface{}
	appendRange string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const base = "/v4/spreadsheets/sheet-123"
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	var body sheets.ValueRange
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
	}

	switch {
	case r.Method == http.MethodGet && path == base:
		var resp sheets.Spreadsheet
		for i, title := range f.existing {
			resp.Sheets = append(resp.Sheets, &sheets.Sheet{Properties: &sheets.SheetProperties{Title: title, SheetId: int64(i)}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPost && path == base+":batchUpdate":
		f.batchCalls++
		_, _ = io.WriteString(w, `{"replies":[{"addSheet":{"properties":{"sheetId":7,"title":"LabResults"}}}]}`)
	case r.Method == http.MethodGet && strings.HasPrefix(path, base+"/values/"):
		if f.hasHeaders {
			_, _ = io.WriteString(w, `{"values":[["Source"]]}`)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodPut && strings.HasPrefix(path, base+"/values/"):
		f.headerRows = body.Values
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		f.appendRange = strings.TrimSuffix(strings.TrimPrefix(path, base+"/values/"), ":append")
		f.appended = body.Values
		_, _ = io.WriteString(w, `{}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestService(t *testing.T, fake *fakeSheets) *Service {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	api, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	s := NewSheetsServiceWithClient(api, "sheet-123")
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return s
}

func TestAppendReportCreatesSheet(t *testing.T) {
	fake := &fakeSheets{}
	s := newTestService(t, fake)

	err := s.AppendReport(context.Background(), "LabResults", "report.jpg", []report.Row{
		{Measurement: "Glucose", Value: "95", Low: "70", High: "99"},
		{Measurement: "LDL", Value: "130", Low: "0", High: "100"},
	})
	require.NoError(t, err)

	// add sheet, then header formatting
	assert.Equal(t, 2, fake.batchCalls)
	require.Len(t, fake.headerRows, 1)
	assert.Equal(t, []interface{}{"Source", "Measurement", "Value", "Low", "High", "Exported"}, fake.headerRows[0])
	assert.Equal(t, "LabResults!A:F", fake.appendRange)
	assert.Equal(t, [][]interface{}{
		{"report.jpg", "Glucose", "95", "70", "99", "2026-03-01 09:30:00"},
		{"report.jpg", "LDL", "130", "0", "100", "2026-03-01 09:30:00"},
	}, fake.appended)
}

func TestAppendReportExistingSheet(t *testing.T) {
	fake := &fakeSheets{existing: []string{"LabResults"}, hasHeaders: true}
	s := newTestService(t, fake)

	err := s.AppendReport(context.Background(), "LabResults", "scan.png", []report.Row{{Measurement: "Iron"}})
	require.NoError(t, err)

	assert.Zero(t, fake.batchCalls)
	assert.Nil(t, fake.headerRows)
	require.Len(t, fake.appended, 1)
}

func TestAppendReportNoRows(t *testing.T) {
	fake := &fakeSheets{}
	s := newTestService(t, fake)

	require.NoError(t, s.AppendReport(context.Background(), "LabResults", "scan.png", nil))
	assert.Nil(t, fake.appended)
}

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-d_9", id)

	_, err = extractSpreadsheetID("https://example.com/not-a-sheet")
	assert.Error(t, err)
}
