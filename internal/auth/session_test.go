package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodfinder/internal/apperr"
)

func newSessions(revoker Revoker) *Sessions {
	return NewSessions(Options{
		AdminEmail:    "admin@vgu.ac.in",
		AdminPassword: "s3cret",
		SigningKey:    "test-key",
		Issuer:        "blood-finder",
		TTL:           time.Hour,
	}, revoker)
}

func TestLogin(t *testing.T) {
	s := newSessions(nil)

	sess, token, err := s.Login("  admin@vgu.ac.in ", "s3cret")
	require.NoError(t, err)
	assert.True(t, sess.Authenticated)
	assert.False(t, sess.CreatedAt.IsZero())
	assert.True(t, s.IsAuthenticated(context.Background(), token))

	_, _, err = s.Login("admin@vgu.ac.in", "S3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = s.Login("other@vgu.ac.in", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginWithoutConfiguredAdmin(t *testing.T) {
	s := NewSessions(Options{SigningKey: "k"}, nil)
	_, _, err := s.Login("", "")
	assert.ErrorIs(t, err, apperr.ErrConfig)
}

func TestIsAuthenticatedDefaultsToFalse(t *testing.T) {
	s := newSessions(nil)
	ctx := context.Background()
	assert.False(t, s.IsAuthenticated(ctx, ""))
	assert.False(t, s.IsAuthenticated(ctx, "not-a-jwt"))

	other := NewSessions(Options{AdminEmail: "admin@vgu.ac.in", AdminPassword: "s3cret", SigningKey: "other-key", Issuer: "blood-finder"}, nil)
	_, foreign, err := other.Login("admin@vgu.ac.in", "s3cret")
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated(ctx, foreign))
}

func TestSessionExpires(t *testing.T) {
	s := newSessions(nil)
	start := time.Now()
	s.now = func() time.Time { return start }
	_, token, err := s.Login("admin@vgu.ac.in", "s3cret")
	require.NoError(t, err)

	s.now = func() time.Time { return start.Add(2 * time.Hour) }
	assert.False(t, s.IsAuthenticated(context.Background(), token))
}

func TestLogoutRevokesInMemory(t *testing.T) {
	s := newSessions(nil)
	ctx := context.Background()
	_, token, err := s.Login("admin@vgu.ac.in", "s3cret")
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx, token))
	assert.False(t, s.IsAuthenticated(ctx, token))
	assert.NoError(t, s.Logout(ctx, "garbage"))
}

func TestLogoutRevokesInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := newSessions(NewRedisRevoker(client))
	ctx := context.Background()
	_, token, err := s.Login("admin@vgu.ac.in", "s3cret")
	require.NoError(t, err)
	assert.True(t, s.IsAuthenticated(ctx, token))

	require.NoError(t, s.Logout(ctx, token))
	assert.False(t, s.IsAuthenticated(ctx, token))
	assert.Len(t, mr.Keys(), 1)
}

type failingRevoker struct{ MemoryRevoker }

func (*failingRevoker) Revoked(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestRevocationLookupFailureReadsAsLoggedOut(t *testing.T) {
	s := newSessions(&failingRevoker{})
	_, token, err := s.Login("admin@vgu.ac.in", "s3cret")
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated(context.Background(), token))
}

func TestRequireSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newSessions(nil)
	r := gin.New()
	r.GET("/private", RequireSession(s), func(c *gin.Context) {
		sess, ok := FromContext(c)
		assert.True(t, ok)
		assert.True(t, sess.Authenticated)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, token, err := s.Login("admin@vgu.ac.in", "s3cret")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
