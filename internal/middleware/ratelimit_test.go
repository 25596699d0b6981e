package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicelink-backend/internal/database"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	rl.now = func() time.Time { return fixedNow }
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func hit(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	return w
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *database.RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := database.NewRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRateLimiter_Redis(t *testing.T) {
	mr, client := newRedis(t)
	r := newLimitedRouter(NewRateLimiter(client, 2, time.Minute, nil))

	assert.Equal(t, http.StatusOK, hit(r).Code)
	w := hit(r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r).Code)

	key := "ratelimit:ip:10.0.0.1:" + "1772359200"
	count, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "3", count)
	assert.True(t, mr.TTL(key) > 0)
}

func TestRateLimiter_FailsOpenOnRedisError(t *testing.T) {
	mr, client := newRedis(t)
	r := newLimitedRouter(NewRateLimiter(client, 1, time.Minute, nil))

	mr.Close()

	assert.Equal(t, http.StatusOK, hit(r).Code)
	assert.Equal(t, http.StatusOK, hit(r).Code)
}

func TestRateLimiter_InMemoryWhenDegraded(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()
	require.Error(t, client.HealthCheck(context.Background()))
	require.True(t, client.IsDegraded())

	r := newLimitedRouter(NewRateLimiter(client, 1, time.Minute, nil))

	assert.Equal(t, http.StatusOK, hit(r).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(r).Code)
}

func TestRateLimiter_NoRedis(t *testing.T) {
	r := newLimitedRouter(NewRateLimiter(nil, 1, time.Minute, nil))

	assert.Equal(t, http.StatusOK, hit(r).Code)
	w := hit(r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"RATE_LIMIT_EXCEEDED"`)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestInMemoryRateLimiter_WindowResets(t *testing.T) {
	im := NewInMemoryRateLimiter()

	allowed, remaining, reset := im.Check("ip:a", 1, time.Minute, fixedNow)
	assert.True(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, int64(1772359260), reset)

	allowed, _, _ = im.Check("ip:a", 1, time.Minute, fixedNow)
	assert.False(t, allowed)

	allowed, _, _ = im.Check("ip:a", 1, time.Minute, fixedNow.Add(time.Minute))
	assert.True(t, allowed)
}
