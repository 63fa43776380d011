package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bloodfinder/internal/apperr"
)

// ErrInvalidCredentials is returned by Login for a wrong email or password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Session is the admin gate state carried by a token.
type Session struct {
	Authenticated bool      `json:"authenticated"`
	CreatedAt     time.Time `json:"created_at"`
}

// Claims represents the token payload.
type Claims struct {
	Authenticated bool `json:"auth"`
	jwt.RegisteredClaims
}

// Options configures Sessions.
type Options struct {
	AdminEmail    string
	AdminPassword string
	SigningKey    string
	Issuer        string
	TTL           time.Duration
}

// Sessions issues and checks admin session tokens. Build one in main and pass it to
// whoever needs it.
type Sessions struct {
	opts    Options
	revoker Revoker
	now     func() time.Time
}

// NewSessions creates a session store. A nil revoker keeps revocations in memory.
func NewSessions(opts Options, revoker Revoker) *Sessions {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &Sessions{opts: opts, revoker: revoker, now: time.Now}
}

// Login checks the configured admin credentials and returns a signed token. The email
// is trimmed; the password is compared as is.
func (s *Sessions) Login(email, password string) (Session, string, error) {
	if s.opts.AdminEmail == "" || s.opts.AdminPassword == "" {
		return Session{}, "", apperr.Config("admin credentials are not configured")
	}
	emailOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(email)), []byte(s.opts.AdminEmail)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.opts.AdminPassword)) == 1
	if !emailOK || !passOK {
		return Session{}, "", ErrInvalidCredentials
	}

	now := s.now()
	claims := Claims{
		Authenticated: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.opts.Issuer,
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.SigningKey))
	if err != nil {
		return Session{}, "", err
	}
	return Session{Authenticated: true, CreatedAt: now.UTC().Truncate(time.Second)}, token, nil
}

// Logout revokes token until it would have expired. Unparseable tokens are already
// unauthenticated, so they are ignored.
func (s *Sessions) Logout(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return nil
	}
	until := s.now().Add(s.opts.TTL)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return s.revoker.Revoke(ctx, claims.ID, until)
}

// Current returns the session behind token. Absence, a bad signature, expiry,
// revocation or a lookup failure all read as unauthenticated.
func (s *Sessions) Current(ctx context.Context, token string) Session {
	claims, err := s.parse(token)
	if err != nil || !claims.Authenticated {
		return Session{}
	}
	revoked, err := s.revoker.Revoked(ctx, claims.ID)
	if err != nil || revoked {
		return Session{}
	}
	sess := Session{Authenticated: true}
	if claims.IssuedAt != nil {
		sess.CreatedAt = claims.IssuedAt.Time.UTC()
	}
	return sess
}

// IsAuthenticated reports whether token carries a live admin session.
func (s *Sessions) IsAuthenticated(ctx context.Context, token string) bool {
	return s.Current(ctx, token).Authenticated
}

func (s *Sessions) parse(tokenStr string) (Claims, error) {
	if tokenStr == "" {
		return Claims{}, errors.New("missing token")
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.opts.SigningKey), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if s.opts.Issuer != "" && claims.Issuer != s.opts.Issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
