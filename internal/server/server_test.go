package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lazypower/degrade/internal/counter"
	"github.com/lazypower/degrade/internal/store"
)

// testServer returns a server on an in-memory store whose clock is *now.
func testServer(t *testing.T, now *int64, opts ...Option) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctrl := counter.New(db, counter.NewType(), counter.WithClock(func() int64 { return *now }))
	return New(db, ctrl, "test-version", opts...)
}

func TestHealthEndpoint(t *testing.T) {
	now := int64(0)
	srv := testServer(t, &now)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["store"] != true {
		t.Errorf("store = %v, want true", body["store"])
	}
}

func TestRateLimit(t *testing.T) {
	now := int64(0)
	srv := testServer(t, &now, WithRateLimit(1, 2))

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest("GET", "/api/health", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		codes[i] = w.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}

	// Another client has its own bucket.
	req := httptest.NewRequest("GET", "/api/health", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("second client status = %d, want 200", w.Code)
	}
}
