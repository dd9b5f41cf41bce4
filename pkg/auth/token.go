package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of signed tokens.
const DefaultTTL = 5 * time.Minute

// Issuer is the iss claim of every control-plane token.
const Issuer = "mockserver"

var (
	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("missing control plane token")
	// ErrInvalidToken is returned when a token does not verify.
	ErrInvalidToken = errors.New("invalid control plane token")
)

// Authenticator signs and verifies control-plane tokens with a shared
// secret. A nil or secret-less Authenticator signs nothing and accepts
// everything.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New creates an Authenticator for secret. An empty secret disables auth.
func New(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
}

// Enabled reports whether tokens are signed and checked.
func (a *Authenticator) Enabled() bool {
	return a != nil && len(a.secret) > 0
}

// Sign returns a token for subject, or "" when auth is disabled.
func (a *Authenticator) Sign(subject string) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign control plane token: %w", err)
	}
	return signed, nil
}

// Verify checks token and returns its subject.
func (a *Authenticator) Verify(token string) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	if token == "" {
		return "", ErrMissingToken
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// VerifyRequest checks the bearer token of r.
func (a *Authenticator) VerifyRequest(r *http.Request) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	return a.Verify(BearerToken(r))
}

// SetBearer signs a token for subject and sets it on req.
func (a *Authenticator) SetBearer(req *http.Request, subject string) error {
	token, err := a.Sign(subject)
	if err != nil || token == "" {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Middleware rejects requests that fail VerifyRequest with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.VerifyRequest(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
