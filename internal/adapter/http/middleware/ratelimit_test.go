package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/http/middleware"
	redisStore "wallet-ledger/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

const testUserHeader = "X-Test-User"

func setupRateLimitRouter(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gin.SetMode(gin.TestMode)
	r := gin.New()

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}
	authenticate := func(c *gin.Context) {
		if raw := c.GetHeader(testUserHeader); raw != "" {
			c.Set(middleware.CtxUserID, uuid.MustParse(raw))
		}
		c.Next()
	}

	r.GET("/test", authenticate, middleware.RateLimiter(redisStore.NewRateLimitStore(client), "test", rule, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return r, mr
}

func get(r *gin.Engine, user string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	router, _ := setupRateLimitRouter(t)

	for i := 0; i < 3; i++ {
		w := get(router, "")
		assert.Equal(t, 200, w.Code, "request %d should succeed", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	router, _ := setupRateLimitRouter(t)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, get(router, "").Code)
	}

	w := get(router, "")
	assert.Equal(t, 429, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_001")
}

func TestRateLimiter_CountsPerUser(t *testing.T) {
	router, _ := setupRateLimitRouter(t)
	userA, userB := uuid.NewString(), uuid.NewString()

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, get(router, userA).Code)
	}
	assert.Equal(t, 429, get(router, userA).Code)

	assert.Equal(t, 200, get(router, userB).Code)
}

func TestRateLimiter_RedisDownAllowsRequest(t *testing.T) {
	router, mr := setupRateLimitRouter(t)
	mr.Close()

	w := get(router, "")
	assert.Equal(t, 200, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestDefaultRateLimitRules(t *testing.T) {
	rules := middleware.DefaultRateLimitRules()
	assert.Len(t, rules, 6)
	assert.Equal(t, int64(10), rules[middleware.GroupWalletDeposit].Limit)
	assert.Equal(t, int64(600), rules[middleware.GroupLedgerWrite].Limit)
	assert.Equal(t, int64(30), rules[middleware.GroupAdmin].Limit)
	for group, rule := range rules {
		assert.Equal(t, time.Minute, rule.Window, group)
	}
}
