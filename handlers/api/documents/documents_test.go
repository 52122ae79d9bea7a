package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"excalidash/core"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Mock document store for testing
type mockDocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*core.Document
	createErr error
	findErr   error
}

func newMockStore() *mockDocumentStore {
	return &mockDocumentStore{documents: make(map[string]*core.Document)}
}

func (m *mockDocumentStore) Create(ctx context.Context, doc *core.Document) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("mock-id-%d", len(m.documents))
	m.documents[id] = doc
	return id, nil
}

func (m *mockDocumentStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return doc, nil
}

func getRequest(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v2/"+id, http.NoBody)
	rctx := chi.NewRouteContext()
	if id != "" {
		rctx.URLParams.Add("id", id)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleCreate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"scene", `{"elements":[],"appState":{}}`},
		{"empty", ""},
		{"utf8", `{"text":"Hello 世界 🌍"}`},
		{"binary", string([]byte{0, 1, 2, 3})},
		{"large", strings.Repeat("x", 5*1024*1024)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			rec := httptest.NewRecorder()
			HandleCreate(store)(rec, httptest.NewRequest(http.MethodPost, "/api/v2/post/", strings.NewReader(tt.body)))

			if rec.Code != http.StatusOK {
				t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
				t.Errorf("Content-Type = %q", ct)
			}
			var resp DocumentCreateResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.ID == "" {
				t.Fatalf("response = %+v, %v", resp, err)
			}
			if got := store.documents[resp.ID].Data.String(); got != tt.body {
				t.Errorf("stored %d bytes, want %d", len(got), len(tt.body))
			}
		})
	}
}

func TestHandleCreate_Errors(t *testing.T) {
	store := newMockStore()
	store.createErr = fmt.Errorf("database error")

	rec := httptest.NewRecorder()
	HandleCreate(store)(rec, httptest.NewRequest(http.MethodPost, "/api/v2/post/", strings.NewReader("test")))
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "Failed to save") {
		t.Errorf("store error: got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	HandleCreate(newMockStore())(rec, httptest.NewRequest(http.MethodPost, "/api/v2/post/", &failingReader{}))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("read error: got %d", rec.Code)
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) { return 0, fmt.Errorf("read error") }

func TestHandleGet(t *testing.T) {
	store := newMockStore()
	store.documents["special"] = &core.Document{Data: *bytes.NewBufferString("Hello 世界 🌍\n\t!@#")}
	store.documents["empty"] = &core.Document{}

	tests := []struct {
		name     string
		id       string
		wantCode int
		wantBody string
	}{
		{"found", "special", http.StatusOK, "Hello 世界 🌍\n\t!@#"},
		{"empty document", "empty", http.StatusOK, ""},
		{"missing", "nonexistent", http.StatusNotFound, "not found\n"},
		{"no id", "", http.StatusNotFound, "not found\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleGet(store)(rec, getRequest(tt.id))
			if rec.Code != tt.wantCode {
				t.Errorf("Status code mismatch: got %d, want %d", rec.Code, tt.wantCode)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestConcurrentCreateAndGet(t *testing.T) {
	store := newMockStore()
	create, get := HandleCreate(store), HandleGet(store)

	const workers = 5
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := fmt.Sprintf(`{"worker":%d}`, i)
			rec := httptest.NewRecorder()
			create(rec, httptest.NewRequest(http.MethodPost, "/api/v2/post/", strings.NewReader(body)))

			var resp DocumentCreateResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				errs <- fmt.Errorf("worker %d: %v", i, err)
				return
			}
			rec = httptest.NewRecorder()
			get(rec, getRequest(resp.ID))
			if rec.Body.String() != body {
				errs <- fmt.Errorf("worker %d: got %q", i, rec.Body.String())
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
