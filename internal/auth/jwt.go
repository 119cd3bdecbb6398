// Package auth verifies user bearer tokens and issues admin session tokens.
// Both are HS256 JWTs signed with the same secret; admin tokens carry the
// admin role and a short lifetime.
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

var (
	ErrMissingToken       = errors.New("missing auth token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAdmin           = errors.New("admin role required")
)

const RoleAdmin = "admin"

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret []byte
	now    func() time.Time
}

func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), now: time.Now}
}

// Sign issues a token for id that expires after ttl.
func (t *Tokens) Sign(id Identity, ttl time.Duration) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(ttl)
	claims := Claims{
		Email: id.Email,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse validates raw and returns the identity it carries. Tokens without a
// subject are rejected.
func (t *Tokens) Parse(raw string) (Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return Identity{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// TokenFromRequest reads the bearer token. Websocket upgrades may pass it
// as the access_token query parameter since browsers cannot set headers.
func TokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		if !strings.HasPrefix(h, "Bearer ") {
			return "", ErrMissingToken
		}
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), nil
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if tok := r.URL.Query().Get("access_token"); tok != "" {
			return tok, nil
		}
	}
	return "", ErrMissingToken
}

type ctxKey string

const identityKey ctxKey = "identity"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// ErrorWriter writes an auth failure with the given status.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, err error)

// RequireUser authenticates user tokens. Admin session tokens are rejected
// so they cannot be used against user data.
func (t *Tokens) RequireUser(onError ErrorWriter) func(http.Handler) http.Handler {
	return t.require(onError, func(id Identity) error {
		if id.IsAdmin() {
			return fmt.Errorf("%w: admin session on user endpoint", ErrInvalidToken)
		}
		return nil
	})
}

func (t *Tokens) RequireAdmin(onError ErrorWriter) func(http.Handler) http.Handler {
	return t.require(onError, func(id Identity) error {
		if !id.IsAdmin() {
			return ErrNotAdmin
		}
		return nil
	})
}

func (t *Tokens) require(onError ErrorWriter, check func(Identity) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := TokenFromRequest(r)
			if err != nil {
				onError(w, r, http.StatusUnauthorized, err)
				return
			}
			id, err := t.Parse(raw)
			if err != nil {
				onError(w, r, http.StatusUnauthorized, err)
				return
			}
			if err := check(id); err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, ErrNotAdmin) {
					status = http.StatusForbidden
				}
				onError(w, r, status, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
