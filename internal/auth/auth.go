// Package auth registers and authenticates users: bcrypt password hashes and
// HS256 bearer tokens whose subject is the user's email.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/storage"
)

const (
	DefaultTokenTTL   = 30 * time.Minute
	minPasswordLength = 6
	maxPasswordLength = 128
)

// ErrInvalidToken is wrapped by every Authenticate failure.
var ErrInvalidToken = errors.New("invalid token")

// Token is the login response body.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Service issues and verifies tokens against a user store.
type Service struct {
	users  storage.UserStore
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTokenTTL sets the token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithBcryptCost sets the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// WithClock overrides time.Now for token issuance and validation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service signing with secret.
func NewService(users storage.UserStore, secret string, opts ...Option) *Service {
	s := &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account. Validation failures and duplicate emails are
// invalid_request errors.
func (s *Service) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidRequest("a valid email address is required").WithParam("email")
	}
	if n := len(password); n < minPasswordLength || n > maxPasswordLength {
		return nil, domain.ErrInvalidRequest(
			fmt.Sprintf("password must be between %d and %d characters", minPasswordLength, maxPasswordLength),
		).WithParam("password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, email, string(hash))
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, domain.ErrInvalidRequest("User with this email already exists").WithParam("email")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and returns a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*Token, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrAuthentication("Incorrect email or password")
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrAuthentication("Incorrect email or password")
	}

	signed, err := s.IssueToken(user.Email)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, TokenType: "bearer"}, nil
}

// IssueToken signs a token for subject.
func (s *Service) IssueToken(subject string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies tokenString and loads its user.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*domain.User, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	user, err := s.users.GetUserByEmail(ctx, claims.Subject)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ExtractBearerToken extracts the token from the Authorization header
func ExtractBearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <token>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return strings.TrimSpace(parts[1]), nil
}
