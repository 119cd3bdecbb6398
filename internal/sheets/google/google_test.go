package google

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

	"motolucro/internal/core"
	applog "motolucro/internal/log"
	"motolucro/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type fakeSheets struct {
	mu      sync.Mutex
	header  [][]any
	appends []*http.Request
	rows    [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appends = append(f.appends, r)
		f.rows = append(f.rows, vr.Values...)
		json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Journal!A2:I2"},
		})
	case r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"values": f.header})
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		f.header = vr.Values
		json.NewEncoder(w).Encode(map[string]any{})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, Config{SpreadsheetID: "sheet-1", SheetName: "Journal"}, applog.New(applog.Config{Output: io.Discard}))
}

func TestAppend(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)

	entry := sheets.Entry{
		Timestamp: time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
		Action:    "created",
		Transaction: core.Transaction{
			ID: "t1", UserID: "u1", Type: core.Gain, Value: core.Money{Cents: 4550},
			Company: "iFood", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
	}
	if err := c.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if len(f.appends) != 1 {
		t.Fatalf("append calls = %d, want 1", len(f.appends))
	}
	req := f.appends[0]
	if !strings.Contains(req.URL.Path, "/spreadsheets/sheet-1/values/Journal!A:I") {
		t.Errorf("path = %s", req.URL.Path)
	}
	if got := req.URL.Query().Get("valueInputOption"); got != "USER_ENTERED" {
		t.Errorf("valueInputOption = %q", got)
	}

	want := []any{"2024-01-02 15:04:05", "created", "t1", "u1", "gain", 45.5, "", "iFood", "2024-01-02"}
	if len(f.rows) != 1 || len(f.rows[0]) != len(want) {
		t.Fatalf("rows = %v", f.rows)
	}
	for i := range want {
		if f.rows[0][i] != want[i] {
			t.Errorf("column %d = %v (%T), want %v", i, f.rows[0][i], f.rows[0][i], want[i])
		}
	}
}

func TestAppendRejectsEmptyEntry(t *testing.T) {
	c := newTestClient(t, &fakeSheets{})
	if err := c.Append(context.Background(), sheets.Entry{}); err == nil {
		t.Error("Append() should reject an entry without a transaction")
	}
}

func TestEnsureHeader(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)

	if err := c.EnsureHeader(context.Background()); err != nil {
		t.Fatalf("EnsureHeader() error = %v", err)
	}
	if len(f.header) != 1 || f.header[0][0] != "timestamp" {
		t.Fatalf("header = %v", f.header)
	}

	f.header = [][]any{{"custom"}}
	if err := c.EnsureHeader(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.header[0][0] != "custom" {
		t.Error("EnsureHeader overwrote an existing header")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, applog.New(applog.Config{Output: io.Discard}))
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("New() error = %v", err)
	}
	if _, err := New(context.Background(), Config{}, applog.New(applog.Config{Output: io.Discard})); err == nil {
		t.Error("New() without spreadsheet id should fail")
	}
}
