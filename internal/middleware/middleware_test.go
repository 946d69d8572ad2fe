package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/internal/models"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeGate struct {
	principal *models.Principal
	authErr   error
	adminErr  error
}

func (f *fakeGate) RequireAdmin(context.Context, string) (*models.Principal, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.principal, f.adminErr
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorText(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error
}

func TestRequireAdminStatuses(t *testing.T) {
	user := &models.Principal{UserID: uuid.New()}
	cases := []struct {
		name string
		gate *fakeGate
		want int
	}{
		{"missing", &fakeGate{authErr: errs.ErrUnauthenticated}, http.StatusUnauthorized},
		{"invalid", &fakeGate{authErr: errs.ErrInvalidToken}, http.StatusUnauthorized},
		{"not admin", &fakeGate{principal: user, adminErr: errs.ErrForbidden}, http.StatusForbidden},
		{"lookup broken", &fakeGate{principal: user, adminErr: errs.ErrAuthFailure}, http.StatusInternalServerError},
		{"admin", &fakeGate{principal: user}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/x", RequireAdmin(tc.gate), func(c *gin.Context) {
				assert.Equal(t, user.UserID, UserID(c))
				c.Status(http.StatusOK)
			})
			w := serve(r, httptest.NewRequest(http.MethodPost, "/x", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAuthFailureMessageIsGeneric(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireAdmin(&fakeGate{authErr: errs.ErrAuthFailure}))
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Authentication failed", errorText(t, w))
}

type countingLimiter struct {
	counts map[string]int
	err    error
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if l.err != nil {
		return false, 0, l.err
	}
	l.counts[key]++
	if l.counts[key] > limit {
		return false, window / 2, nil
	}
	return true, 0, nil
}

func TestRateLimitPerUser(t *testing.T) {
	lim := &countingLimiter{counts: map[string]int{}}
	alice := &models.Principal{UserID: uuid.New()}
	bob := &models.Principal{UserID: uuid.New()}
	current := alice

	r := gin.New()
	r.POST("/upload",
		func(c *gin.Context) { setPrincipal(c, current); c.Next() },
		RateLimit(lim, "upload", 2, time.Hour, ByUser, nil),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/upload", nil)).Code)
	}
	w := serve(r, httptest.NewRequest(http.MethodPost, "/upload", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1800", w.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", errorText(t, w))

	current = bob
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/upload", nil)).Code)
}

func TestRateLimitFailsOpenOnStoreError(t *testing.T) {
	lim := &countingLimiter{err: redis.ErrClosed}
	r := gin.New()
	r.GET("/x", RateLimit(lim, "general", 1, time.Minute, ByClientIP, nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}

// fakeCounter overrides the three commands RedisLimiter uses.
type fakeCounter struct {
	redis.Cmdable
	n   int64
	ttl time.Duration
}

func (f *fakeCounter) Incr(ctx context.Context, _ string) *redis.IntCmd {
	f.n++
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(f.n)
	return cmd
}

func (f *fakeCounter) Expire(ctx context.Context, _ string, d time.Duration) *redis.BoolCmd {
	f.ttl = d
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func (f *fakeCounter) TTL(ctx context.Context, _ string) *redis.DurationCmd {
	cmd := redis.NewDurationCmd(ctx, time.Second)
	cmd.SetVal(f.ttl)
	return cmd
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	store := &fakeCounter{}
	l := NewRedisLimiter(store, "")

	for i := 0; i < 10; i++ {
		ok, _, err := l.Allow(context.Background(), "upload:user:1", 10, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, retry, err := l.Allow(context.Background(), "upload:user:1", 10, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Hour, retry)
}

func TestCORSSingleOriginWithCredentials(t *testing.T) {
	r := gin.New()
	r.Use(CORS("https://studymeta.in"))
	r.POST("/api/stream-url", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/stream-url", nil)
	req.Header.Set("Origin", "https://studymeta.in")
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://studymeta.in", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodPost, "/api/stream-url", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = serve(r, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(true))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=")
}
