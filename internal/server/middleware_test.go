package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

// =============================================================================
// RequestIDMiddleware Tests
// =============================================================================

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("request ID not set in context")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("X-Request-ID = %q, want %q", got, seen)
	}
}

func TestRequestIDMiddleware_KeepsClientUUID(t *testing.T) {
	const clientID = "0b6f2a52-2c4b-4f0a-9f55-0e0e3a8f1f10"
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, clientID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != clientID {
		t.Errorf("X-Request-ID = %q, want %q", got, clientID)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not a uuid\nInjected: yes")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); strings.Contains(got, "Injected") {
		t.Errorf("X-Request-ID echoed untrusted value %q", got)
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}
}

// =============================================================================
// LoggingMiddleware Tests
// =============================================================================

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := RequestIDMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogField(r.Context(), "provider", "groq")
		AddError(r.Context(), errors.New("boom"))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("down"))
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ai/grammar", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}

	var completed map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &completed); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}

	checks := map[string]any{
		"msg":      "request completed",
		"level":    "ERROR",
		"path":     "/ai/grammar",
		"status":   float64(503),
		"bytes":    float64(4),
		"provider": "groq",
		"error":    "boom",
	}
	for k, want := range checks {
		if completed[k] != want {
			t.Errorf("log field %s = %v, want %v", k, completed[k], want)
		}
	}
	if completed["request_id"] == "" {
		t.Error("request_id missing from log line")
	}
}

func TestAddLogField_NoMiddleware(t *testing.T) {
	// must not panic
	AddLogField(context.Background(), "k", "v")
	AddError(context.Background(), errors.New("x"))
	AddError(context.Background(), nil)
}

// =============================================================================
// TimeoutMiddleware Tests
// =============================================================================

func TestTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := TimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !ok {
		t.Fatal("expected request context to carry a deadline")
	}
	if time.Until(deadline) > 50*time.Millisecond {
		t.Errorf("deadline too far in the future: %v", deadline)
	}
}

func TestTimeoutMiddleware_Disabled(t *testing.T) {
	handler := TimeoutMiddleware(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); ok {
			t.Error("expected no deadline when timeout is disabled")
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

// =============================================================================
// AuthMiddleware Tests
// =============================================================================

type stubAuthenticator struct {
	users map[string]*domain.User
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*domain.User, error) {
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	return nil, errors.New("bad token")
}

func TestAuthMiddleware(t *testing.T) {
	authn := stubAuthenticator{users: map[string]*domain.User{
		"good": {ID: 7, Email: "ada@example.com"},
	}}

	var got *domain.User
	handler := AuthMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CurrentUser(r.Context())
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodGet, "/notes", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if rec.Header().Get("WWW-Authenticate") != "Bearer" {
					t.Error("missing WWW-Authenticate header")
				}
				if got != nil {
					t.Error("handler must not run for unauthenticated requests")
				}
				return
			}
			if got == nil || got.ID != 7 {
				t.Errorf("CurrentUser() = %+v, want user 7", got)
			}
		})
	}
}

func TestCurrentUser_Empty(t *testing.T) {
	if CurrentUser(context.Background()) != nil {
		t.Error("CurrentUser() should be nil without middleware")
	}
}

// =============================================================================
// UserRateLimiter Tests
// =============================================================================

func withUser(id int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), userContextKey{}, &domain.User{ID: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TestUserRateLimiter(t *testing.T) {
	limiter := NewUserRateLimiter(0.001, 2)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	alice := withUser(1, limiter.Middleware(ok))
	bob := withUser(2, limiter.Middleware(ok))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		alice.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ai/grammar", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
		checkHeader(t, rec, "x-ratelimit-limit-requests", "2")
	}

	rec := httptest.NewRecorder()
	alice.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ai/grammar", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	checkHeader(t, rec, "x-ratelimit-remaining-requests", "0")
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// budgets are per user
	rec = httptest.NewRecorder()
	bob.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ai/grammar", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", rec.Code)
	}
}

func TestUserRateLimiter_Disabled(t *testing.T) {
	limiter := NewUserRateLimiter(0, 0)
	handler := withUser(1, limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	}
}

// =============================================================================
// CORSMiddleware Tests
// =============================================================================

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/notes", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		checkHeader(t, rec, "Access-Control-Allow-Origin", "http://localhost:5173")
		checkHeader(t, rec, "Access-Control-Allow-Credentials", "true")
		if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
			t.Error("Authorization missing from allowed headers")
		}
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/notes", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("disallowed origin must not be echoed")
		}
		if rec.Code != http.StatusTeapot {
			t.Errorf("status = %d, want request passed through", rec.Code)
		}
	})
}

// checkHeader is a helper to verify header values
func checkHeader(t *testing.T, rec *httptest.ResponseRecorder, header, expected string) {
	t.Helper()
	actual := rec.Header().Get(header)
	if actual != expected {
		t.Errorf("Header %s = %q, want %q", header, actual, expected)
	}
}
