// Package auth verifies identity tokens issued by the external identity
// provider and exposes the resulting session state to handlers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName holds the provider token between requests.
const CookieName = "tm_session"

var (
	ErrNoToken      = errors.New("no session token")
	ErrInvalidToken = errors.New("invalid session token")
	ErrNotReady     = errors.New("identity provider not configured")
)

// Claims carried by provider tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// User is the signed-in identity.
type User struct {
	ID    string
	Email string
	Name  string
}

// DisplayName falls back to "User" like the account pill does.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return "User"
}

// DisplayEmail falls back to a neutral phrase when the provider sent none.
func (u User) DisplayEmail() string {
	if u.Email != "" {
		return u.Email
	}
	return "your account"
}

// Verifier checks HS256 tokens against a shared secret.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewVerifier returns nil when secret is empty; a nil Verifier reports the
// provider as not ready.
func NewVerifier(secret, issuer, audience string) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, audience: audience, now: time.Now}
}

// Ready reports whether tokens can be verified.
func (v *Verifier) Ready() bool { return v != nil }

// Verify parses token and returns its user.
func (v *Verifier) Verify(token string) (User, error) {
	if !v.Ready() {
		return User{}, ErrNotReady
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return User{}, ErrInvalidToken
	}
	return User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// Issue mints a token the Verifier accepts. The real provider issues tokens
// in production; this serves local development and tests.
func (v *Verifier) Issue(u User, ttl time.Duration) (string, error) {
	if !v.Ready() {
		return "", ErrNotReady
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := v.now()
	claims := &Claims{
		Email: u.Email,
		Name:  u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenFromRequest reads a bearer token first, then the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// State is the session lifecycle as seen by pages.
type State string

const (
	SignedIn  State = "signed-in"
	SignedOut State = "signed-out"
	// Pending means the provider cannot answer yet, so pages must neither
	// show content nor redirect to login.
	Pending State = "pending"
)

// Session is the resolved identity of one request.
type Session struct {
	State State
	User  User
}

// Resolve derives the session for r.
func (v *Verifier) Resolve(r *http.Request) Session {
	if !v.Ready() {
		return Session{State: Pending}
	}
	token := TokenFromRequest(r)
	if token == "" {
		return Session{State: SignedOut}
	}
	u, err := v.Verify(token)
	if err != nil {
		return Session{State: SignedOut}
	}
	return Session{State: SignedIn, User: u}
}

type sessionKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by Middleware, signed-out if none.
func FromContext(ctx context.Context) Session {
	if s, ok := ctx.Value(sessionKey{}).(Session); ok {
		return s
	}
	return Session{State: SignedOut}
}

// Middleware resolves the session once per request.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), v.Resolve(r))))
	})
}

// SetCookie stores token in the session cookie.
func SetCookie(w http.ResponseWriter, token string, secure bool, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
