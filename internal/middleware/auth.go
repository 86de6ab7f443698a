// Package middleware provides HTTP middleware for the economy API.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type contextKey string

const callerKey contextKey = "caller"

// Claims are the token claims. The subject is the caller's address.
type Claims struct {
	jwt.RegisteredClaims
}

// AuthMiddleware resolves the caller address from an HS256 bearer token.
type AuthMiddleware struct {
	secret    []byte
	issuer    string
	logger    *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates the authentication middleware. An empty issuer
// accepts tokens from any issuer.
func NewAuthMiddleware(secret []byte, issuer string, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{secret: secret, issuer: issuer, logger: log, skipPaths: skip}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if header == "" || len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.respondError(w, r, ErrMissingToken)
			return
		}

		caller, err := m.validateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			m.respondError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func (m *AuthMiddleware) validateToken(raw string) (address.Address, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	caller, err := address.Parse(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	return caller, nil
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.WithError(err).
		WithField("path", r.URL.Path).
		WithField("method", r.Method).
		Warn("authentication failed")
	writeJSONError(w, http.StatusUnauthorized, err)
}

// IssueToken signs an HS256 token for subject.
func IssueToken(secret []byte, issuer string, subject address.Address, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is required")
	}
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  subject.String(),
		Issuer:   issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// WithCaller stores the authenticated caller on ctx.
func WithCaller(ctx context.Context, caller address.Address) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// Caller returns the authenticated caller.
func Caller(ctx context.Context) (address.Address, bool) {
	caller, ok := ctx.Value(callerKey).(address.Address)
	return caller, ok && !caller.IsZero()
}

// RequireCaller rejects requests without an authenticated caller.
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := Caller(r.Context()); !ok {
			writeJSONError(w, http.StatusUnauthorized, ErrMissingToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}
