package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/storage/memory"
)

func newTestService(opts ...Option) (*Service, *memory.Store) {
	store := memory.New()
	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	return NewService(store, "test-secret", opts...), store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	stored, _ := store.GetUser(ctx, user.ID)
	if stored.PasswordHash == "hunter22" {
		t.Fatal("password stored in plain text")
	}

	tok, err := svc.Login(ctx, "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if tok.TokenType != "bearer" || tok.AccessToken == "" {
		t.Errorf("Login() = %+v", tok)
	}

	got, err := svc.Authenticate(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("Authenticate() user = %d, want %d", got.ID, user.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "taken@example.com", "password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		param    string
	}{
		{"bad email", "not-an-email", "password", "email"},
		{"short password", "new@example.com", "12345", "password"},
		{"duplicate", "taken@example.com", "password", "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.password)
			var apiErr *domain.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Register() error = %v, want *APIError", err)
			}
			if apiErr.HTTPStatusCode() != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", apiErr.HTTPStatusCode())
			}
			if apiErr.Param != tt.param {
				t.Errorf("param = %q, want %q", apiErr.Param, tt.param)
			}
		})
	}
}

func TestLoginFailures(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "ada@example.com", "correct-horse"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	for _, tc := range []struct{ email, password string }{
		{"ada@example.com", "wrong"},
		{"nobody@example.com", "correct-horse"},
	} {
		_, err := svc.Login(ctx, tc.email, tc.password)
		if domain.HTTPStatus(err) != http.StatusUnauthorized {
			t.Errorf("Login(%q) status = %d, want 401 (err %v)", tc.email, domain.HTTPStatus(err), err)
		}
	}
}

func TestAuthenticateRejects(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(WithClock(func() time.Time { return now }))
	ctx := context.Background()
	if _, err := svc.Register(ctx, "ada@example.com", "password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	valid, err := svc.IssueToken("ada@example.com")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	unknown, _ := svc.IssueToken("ghost@example.com")
	otherKey, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ada@example.com",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("other-secret"))
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "ada@example.com",
	}).SignedString([]byte("test-secret"))

	later := NewService(nil, "test-secret", WithClock(func() time.Time { return now.Add(31 * time.Minute) }))
	later.users = svc.users

	tests := []struct {
		name  string
		svc   *Service
		token string
	}{
		{"garbage", svc, "not.a.jwt"},
		{"wrong key", svc, otherKey},
		{"unknown subject", svc, unknown},
		{"no expiry", svc, noExpiry},
		{"expired", later, valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.svc.Authenticate(ctx, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Authenticate() error = %v, want ErrInvalidToken", err)
			}
		})
	}

	if _, err := svc.Authenticate(ctx, valid); err != nil {
		t.Errorf("Authenticate(valid) error = %v", err)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer  abc ", "abc", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer", "", true},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, err := ExtractBearerToken(r)
		if (err != nil) != tt.wantErr {
			t.Errorf("ExtractBearerToken(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
