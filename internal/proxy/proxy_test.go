package proxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOptionsShortCircuitsWithCORS(t *testing.T) {
	h := New(Config{BackendURL: "http://backend.invalid"}, discardLogger(), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/proxy/auth/login", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected CORS origin header, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "OPTIONS") {
		t.Fatalf("expected OPTIONS in allowed methods, got %q", got)
	}
}

func TestForwardCopiesMethodAuthAndSecret(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotAuth   string
		gotSecret string
		gotBody   []byte
	)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotSecret = r.Header.Get("X-API-Secret")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true}`))
	}))
	defer backend.Close()

	h := New(Config{BackendURL: backend.URL, APISecret: "shh", StripPrefix: "/api/proxy"}, discardLogger(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/proxy/dashboard/bots", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Authorization", "Bearer tok123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected relayed 201, got %d", rec.Code)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST forwarded, got %s", gotMethod)
	}
	if gotPath != "/dashboard/bots" {
		t.Fatalf("expected stripped path, got %s", gotPath)
	}
	if gotAuth != "Bearer tok123" {
		t.Fatalf("expected auth header copied, got %q", gotAuth)
	}
	if gotSecret != "shh" {
		t.Fatalf("expected api secret injected, got %q", gotSecret)
	}
	if string(gotBody) != `{"name":"x"}` {
		t.Fatalf("expected body forwarded, got %q", gotBody)
	}
}

func TestBackendErrorStatusRelayed(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"success":false,"errors":{"name":"The name field is required."}}`))
	}))
	defer backend.Close()

	h := New(Config{BackendURL: backend.URL}, discardLogger(), nil)

	req := httptest.NewRequest(http.MethodPost, "/dashboard/bots", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected relayed 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "name field is required") {
		t.Fatalf("expected backend body relayed, got %s", rec.Body.String())
	}
}

func TestUnreachableBackendReturnsProxyError(t *testing.T) {
	h := New(Config{BackendURL: "http://127.0.0.1:1"}, discardLogger(), nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var payload struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if payload.Success || payload.Error != "Proxy error" || payload.Message == "" {
		t.Fatalf("unexpected error envelope: %+v", payload)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected CORS on error response, got %q", got)
	}
}
