package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CookieName is the cookie that carries the admin session token
const CookieName = "admin_session"

var (
	// ErrInvalidCredentials is returned when a login does not match the admin account
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for malformed, expired or revoked session tokens
	ErrInvalidToken = errors.New("invalid session token")
)

// Claims are the contents of an admin session token
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Options configures an Authenticator
type Options struct {
	Username     string
	Password     string
	PasswordHash string
	Secret       string
	TTL          time.Duration
	Blacklist    Blacklist
}

// Authenticator checks admin credentials and issues signed session tokens
type Authenticator struct {
	username     string
	password     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	blacklist    Blacklist
	now          func() time.Time
}

// NewAuthenticator creates a new Authenticator
func NewAuthenticator(opts Options) *Authenticator {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	bl := opts.Blacklist
	if bl == nil {
		bl = NewRedisBlacklist(nil)
	}
	a := &Authenticator{
		username:  opts.Username,
		password:  opts.Password,
		secret:    []byte(opts.Secret),
		ttl:       ttl,
		blacklist: bl,
		now:       time.Now,
	}
	if opts.PasswordHash != "" {
		a.passwordHash = []byte(opts.PasswordHash)
	}
	return a
}

// configured reports whether an admin account and signing key are set
func (a *Authenticator) configured() bool {
	return a.username != "" && (a.password != "" || len(a.passwordHash) > 0) && len(a.secret) > 0
}

// VerifyCredentials compares a login against the configured admin account.
// A bcrypt hash takes precedence over a plain password.
func (a *Authenticator) VerifyCredentials(username, password string) bool {
	if !a.configured() {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1

	var passOK bool
	if len(a.passwordHash) > 0 {
		passOK = bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	}

	return userOK && passOK
}

// Login verifies credentials and issues a session token
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	if !a.VerifyCredentials(username, password) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.IssueToken(username)
}

// IssueToken signs a session token for username
func (a *Authenticator) IssueToken(username string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates a session token and checks it has not been revoked
func (a *Authenticator) ParseToken(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := a.parse(tokenStr)
	if err != nil {
		return nil, err
	}

	revoked, err := a.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check session revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke blacklists a session token for the rest of its lifetime. Invalid or
// expired tokens need no revocation and are ignored.
func (a *Authenticator) Revoke(ctx context.Context, tokenStr string) error {
	claims, err := a.parse(tokenStr)
	if err != nil {
		return nil
	}

	remaining := claims.ExpiresAt.Sub(a.now())
	if remaining <= 0 {
		return nil
	}
	return a.blacklist.Revoke(ctx, claims.ID, remaining)
}

// parse accepts only unexpired HS256 tokens issued to the configured admin
func (a *Authenticator) parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" || !a.configured() {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || token == nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(claims.Username), []byte(a.username)) != 1 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
