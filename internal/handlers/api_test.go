package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"urltree/internal/retry"
	"urltree/internal/source"
	"urltree/internal/tree"
	"urltree/pkg/types"
)

type fakeFiles struct {
	snapshot  *types.Snapshot
	err       error
	refreshes int
}

func (f *fakeFiles) Files(ctx context.Context) (*types.Snapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeFiles) Refresh(ctx context.Context) (*types.Snapshot, error) {
	f.refreshes++
	return f.snapshot, f.err
}

func testSnapshot(t *testing.T, urls ...string) *types.Snapshot {
	t.Helper()
	forest, err := tree.Build(urls)
	if err != nil {
		t.Fatalf("Failed to build tree: %v", err)
	}
	return &types.Snapshot{
		Key:     "files",
		Tree:    tree.Format(forest),
		Stats:   forest.Stats(),
		Links:   tree.BuildLinks(urls),
		BuiltAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAPIHandler_GetFiles(t *testing.T) {
	files := &fakeFiles{snapshot: testSnapshot(t,
		"http://34.8.32.234:48183/SvnRep/ADV-H5-New/README.txt",
		"http://34.8.32.234:48183/SvnRep/ADV-H5-New/VisualSVN.lck",
		"http://34.8.32.234:48183/SvnRep/",
		"http://34.8.32.234:48183/SvnRep/AT-APP/",
	)}
	handler := NewAPIHandler(files)

	req := httptest.NewRequest("GET", "/api/files", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}

	want := `{"34.8.32.234":[{"SvnRep":[{"ADV-H5-New":["README.txt","VisualSVN.lck"]},{"AT-APP":[]}]}]}`
	if got := strings.TrimSpace(w.Body.String()); got != want {
		t.Errorf("Unexpected body:\n got %s\nwant %s", got, want)
	}
}

func TestAPIHandler_GetFilesErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"fetch error", &source.FetchError{URL: "http://up", Err: errors.New("down")}, http.StatusBadGateway},
		{"parse error", &tree.ParseError{URL: "::", Err: errors.New("bad")}, http.StatusUnprocessableEntity},
		{"conflict error", fmt.Errorf("build: %w", &tree.ConflictError{}), http.StatusUnprocessableEntity},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"fetch timed out", &source.FetchError{URL: "http://up", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAPIHandler(&fakeFiles{err: tt.err})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/files", nil))

			if w.Code != tt.status {
				t.Errorf("Expected status code %d, got %d", tt.status, w.Code)
			}

			var response APIResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Success || response.Error == "" {
				t.Errorf("Expected error envelope, got %+v", response)
			}
		})
	}
}

func TestStatusForError_UpstreamDeadline(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer upstream.Close()

	src := source.NewHTTP(source.Config{
		URL:         upstream.URL,
		Timeout:     5 * time.Second,
		RetryConfig: retry.Config{MaxAttempts: 1, InitialWait: time.Millisecond},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := src.Fetch(ctx)
	var fetchErr *source.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected FetchError, got %v", err)
	}
	if status := StatusForError(err); status != http.StatusGatewayTimeout {
		t.Errorf("Expected status code %d, got %d", http.StatusGatewayTimeout, status)
	}
}

func TestAPIHandler_Refresh(t *testing.T) {
	files := &fakeFiles{snapshot: testSnapshot(t, "http://h/a/b.txt", "http://g/c.txt")}
	handler := NewAPIHandler(files)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/files/refresh", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if files.refreshes != 1 {
		t.Errorf("Expected 1 refresh, got %d", files.refreshes)
	}

	var response struct {
		Success bool            `json:"success"`
		Data    RefreshResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !response.Success {
		t.Error("Expected success to be true")
	}
	if response.Data.Stats != (tree.Stats{Hosts: 2, Directories: 1, Files: 2}) {
		t.Errorf("Unexpected stats %+v", response.Data.Stats)
	}
	if response.Data.BuiltAt != "2024-05-01T12:00:00Z" {
		t.Errorf("Unexpected built_at %s", response.Data.BuiltAt)
	}
}

func TestAPIHandler_InvalidEndpoints(t *testing.T) {
	handler := NewAPIHandler(&fakeFiles{snapshot: testSnapshot(t)})

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"POST", "/api/files", http.StatusMethodNotAllowed},
		{"DELETE", "/api/files", http.StatusMethodNotAllowed},
		{"GET", "/api/files/refresh", http.StatusMethodNotAllowed},
		{"GET", "/api/files/something", http.StatusNotFound},
		{"GET", "/api/other", http.StatusNotFound},
	}

	for _, test := range tests {
		req := httptest.NewRequest(test.method, test.path, nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != test.status {
			t.Errorf("Expected status code %d for %s %s, got %d", test.status, test.method, test.path, w.Code)
		}
	}
}
