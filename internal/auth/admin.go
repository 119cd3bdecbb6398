package auth

import (
	"crypto/subtle"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AdminLogin checks the configured admin credentials and issues session
// tokens.
type AdminLogin struct {
	username string
	hash     []byte
	ttl      time.Duration
	tokens   *Tokens
}

func NewAdminLogin(username, passwordHash string, ttl time.Duration, tokens *Tokens) *AdminLogin {
	return &AdminLogin{username: username, hash: []byte(passwordHash), ttl: ttl, tokens: tokens}
}

// Session is an issued admin token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *AdminLogin) Login(username, password string) (Session, error) {
	if a.username == "" || len(a.hash) == 0 {
		return Session{}, ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	// always run bcrypt so a wrong username costs the same as a wrong password
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, exp, err := a.tokens.Sign(Identity{UserID: a.username, Role: RoleAdmin}, a.ttl)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp}, nil
}
