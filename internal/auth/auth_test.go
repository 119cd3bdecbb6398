package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123"

func TestSignAndParse(t *testing.T) {
	tokens := NewTokens(testSecret)
	raw, exp, err := tokens.Sign(Identity{UserID: "u1", Email: "ana@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry %v is not in the future", exp)
	}

	id, err := tokens.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if id.UserID != "u1" || id.Email != "ana@example.com" || id.IsAdmin() {
		t.Errorf("Parse() = %+v", id)
	}
}

func TestParseRejects(t *testing.T) {
	tokens := NewTokens(testSecret)
	expired, _, _ := tokens.Sign(Identity{UserID: "u1"}, -time.Minute)
	otherKey, _, _ := NewTokens("another-secret-of-length").Sign(Identity{UserID: "u1"}, time.Hour)
	noSubject, _, _ := tokens.Sign(Identity{}, time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"expired":      expired,
		"wrong secret": otherKey,
		"no subject":   noSubject,
		"alg none":     none,
		"garbage":      "not-a-jwt",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := tokens.Parse(raw); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		upgrade bool
		target  string
		want    string
		wantErr bool
	}{
		{name: "bearer header", header: "Bearer abc", target: "/", want: "abc"},
		{name: "basic scheme", header: "Basic abc", target: "/", wantErr: true},
		{name: "missing", target: "/", wantErr: true},
		{name: "query on websocket", upgrade: true, target: "/ws?access_token=xyz", want: "xyz"},
		{name: "query ignored on plain request", target: "/api/summary?access_token=xyz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				r.Header.Set("Upgrade", "websocket")
			}
			got, err := TokenFromRequest(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequireUserAndAdmin(t *testing.T) {
	tokens := NewTokens(testSecret)
	userTok, _, _ := tokens.Sign(Identity{UserID: "u1"}, time.Hour)
	adminTok, _, _ := tokens.Sign(Identity{UserID: "root", Role: RoleAdmin}, time.Hour)

	var gotStatus int
	onError := func(w http.ResponseWriter, r *http.Request, status int, err error) {
		gotStatus = status
		w.WriteHeader(status)
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, found := IdentityFromContext(r.Context())
		if !found {
			t.Error("identity missing from context")
		}
		w.Write([]byte(id.UserID))
	})
	userH := tokens.RequireUser(onError)(ok)
	adminH := tokens.RequireAdmin(onError)(ok)

	tests := []struct {
		name    string
		handler http.Handler
		token   string
		want    int
	}{
		{"user token on user route", userH, userTok, http.StatusOK},
		{"admin token on user route", userH, adminTok, http.StatusUnauthorized},
		{"no token", userH, "", http.StatusUnauthorized},
		{"admin token on admin route", adminH, adminTok, http.StatusOK},
		{"user token on admin route", adminH, userTok, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotStatus = 0
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (onError saw %d)", rec.Code, tt.want, gotStatus)
			}
		})
	}
}

func TestAdminLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3nha"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	tokens := NewTokens(testSecret)
	login := NewAdminLogin("admin", string(hash), 24*time.Hour, tokens)

	session, err := login.Login("admin", "s3nha")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	id, err := tokens.Parse(session.Token)
	if err != nil || !id.IsAdmin() {
		t.Fatalf("session token = %+v, %v", id, err)
	}
	if d := time.Until(session.ExpiresAt); d < 23*time.Hour || d > 24*time.Hour {
		t.Errorf("session expires in %v, want about 24h", d)
	}

	for _, c := range [][2]string{{"admin", "wrong"}, {"root", "s3nha"}, {"", ""}} {
		if _, err := login.Login(c[0], c[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q, %q) error = %v, want ErrInvalidCredentials", c[0], c[1], err)
		}
	}

	if _, err := NewAdminLogin("", "", time.Hour, tokens).Login("", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unconfigured login error = %v", err)
	}
}
