package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sharedlist-sync-server/internal/ratelimit"

	"github.com/gorilla/mux"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequireClientID(t *testing.T) {
	var seen string
	h := RequireClientID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetClientID(r)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/lists", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without header, got %d", rec.Code)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["detail"] != "Missing X-Client-Id header" {
		t.Fatalf("unexpected body: %v", body)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/lists", nil)
	req.Header.Set(ClientIDHeader, "client-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "client-1" {
		t.Fatalf("expected client id in context, got %q", seen)
	}
}

func TestClientAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := ClientAddress(req, false); got != "10.1.2.3" {
		t.Errorf("untrusted proxy: got %q", got)
	}
	if got := ClientAddress(req, true); got != "203.0.113.9" {
		t.Errorf("trusted proxy: got %q", got)
	}

	req.RemoteAddr = "[::1]:8080"
	if got := ClientAddress(req, false); got != "::1" {
		t.Errorf("ipv6: got %q", got)
	}
}

func newAdmissionRouter(limiter *ratelimit.Limiter, rules ...ratelimit.Rule) http.Handler {
	r := mux.NewRouter()
	r.Handle("/v1/lists/{id}/items", RequireClientID()(AdmissionMiddleware(limiter, false, discardLogger(), rules...)(okHandler)))
	return r
}

func TestAdmissionMiddleware_RejectsOverQuota(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	h := newAdmissionRouter(limiter, ratelimit.Rule{Name: "list_write", Scope: ratelimit.ScopeList, MaxRequests: 2, Window: time.Minute})

	send := func(list string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/lists/"+list+"/items", nil)
		req.Header.Set(ClientIDHeader, "c1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("l1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := send("l1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), quotaExceededDetail) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	if rec := send("l2"); rec.Code != http.StatusOK {
		t.Fatalf("another list has its own quota, got %d", rec.Code)
	}
}

type brokenStore struct{}

func (brokenStore) IncrementAndCheck(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func (brokenStore) Ping(context.Context) error { return errors.New("redis down") }

func TestAdmissionMiddleware_StoreFailureIs500(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := mux.NewRouter()
	r.Use(LoggerMiddleware(discardLogger()))
	r.Handle("/v1/lists/{id}/items", RequireClientID()(AdmissionMiddleware(ratelimit.NewLimiter(brokenStore{}), false, logger, ratelimit.WriteItemRules...)(okHandler)))

	req := httptest.NewRequest(http.MethodPost, "/v1/lists/l1/items", nil)
	req.Header.Set(ClientIDHeader, "c1")
	req.Header.Set(RequestIDHeader, "req-77")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"request_id":"req-77"`) {
		t.Fatalf("expected request id on the error log line, got %s", buf.String())
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware("*", "GET,POST", "Content-Type,X-Client-Id")(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/v1/lists", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("unexpected allow-origin %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("credentials must not be allowed")
	}

	h = CORSMiddleware("https://a.example, https://b.example", "GET", "Content-Type")(okHandler)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://b.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://b.example" {
		t.Errorf("expected matching origin, got %q", got)
	}

	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow-origin %q", got)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeadersMiddleware()(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "no-referrer",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var ctxID string
	h := LoggerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r)
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) != "abc-123" || ctxID != "abc-123" {
		t.Fatalf("request id must be echoed, got header %q ctx %q", rec.Header().Get(RequestIDHeader), ctxID)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["status"] != float64(http.StatusTeapot) || entry["path"] != "/healthz" || entry["request_id"] != "abc-123" {
		t.Fatalf("unexpected log entry: %v", entry)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rec.Header().Get(RequestIDHeader)) != 36 {
		t.Fatalf("expected a generated uuid, got %q", rec.Header().Get(RequestIDHeader))
	}
}
