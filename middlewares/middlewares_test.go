package middlewares

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"ticketdesk/utils"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func serve(s *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	s.ServeHTTP(w, req)
	return w
}

//沒帶 Authorization → 401
func TestAuthMiddleware_MissingToken_401(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate)
	r.GET("/p", func(c *gin.Context) { c.String(200, "ok") })

	if w := serve(r, http.MethodGet, "/p", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_InvalidToken_401(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate)
	r.GET("/p", func(c *gin.Context) { c.String(200, "ok") })

	if w := serve(r, http.MethodGet, "/p", "this-is-not-a-jwt"); w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_BearerToken_SetsContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	token, err := utils.GenerateToken("o@x.com", 5, "organizer")
	if err != nil {
		t.Fatalf("gen token: %v", err)
	}

	r := gin.New()
	r.Use(Authenticate, RequireRole("organizer"))
	r.GET("/p", func(c *gin.Context) {
		c.String(200, "%d:%s", c.GetInt64(CtxUserID), c.GetString(CtxRole))
	})

	w := serve(r, http.MethodGet, "/p", "Bearer "+token)
	if w.Code != 200 || w.Body.String() != "5:organizer" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	token, _ := utils.GenerateToken("u@x.com", 6, "user")

	r := gin.New()
	r.Use(Authenticate, RequireRole("organizer"))
	r.GET("/p", func(c *gin.Context) { c.String(200, "ok") })

	if w := serve(r, http.MethodGet, "/p", token); w.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d", w.Code)
	}
}

//1st GET /events → MISS；2nd → HIT，且 handler 只跑一次
func TestResponseCache_MissThenHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := newRedis(t)

	calls := 0
	s := gin.New()
	s.Use(ResponseCache(rdb, 30*time.Second))
	s.GET("/events", func(c *gin.Context) {
		calls++
		c.JSON(200, gin.H{"ok": 1})
	})

	w1 := serve(s, "GET", "/events", "")
	if w1.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("want MISS, got %q", w1.Header().Get("X-Cache"))
	}
	w2 := serve(s, "GET", "/events", "")
	if w2.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("want HIT, got %q", w2.Header().Get("X-Cache"))
	}
	if w2.Body.String() != w1.Body.String() {
		t.Fatalf("cached body differs: %q vs %q", w2.Body.String(), w1.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
}

func TestResponseCache_SkipsAuthenticatedAndPrivateRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := newRedis(t)

	s := gin.New()
	s.Use(ResponseCache(rdb, 30*time.Second))
	s.GET("/events", func(c *gin.Context) { c.JSON(200, gin.H{"ok": 1}) })
	s.GET("/events/:id/tickets", func(c *gin.Context) { c.JSON(200, gin.H{"ok": 1}) })

	for i := 0; i < 2; i++ {
		if w := serve(s, "GET", "/events/e-1/tickets", ""); w.Header().Get("X-Cache") != "" {
			t.Fatalf("tickets listing must not be cached, got %q", w.Header().Get("X-Cache"))
		}
		if w := serve(s, "GET", "/events", "some-token"); w.Header().Get("X-Cache") != "" {
			t.Fatalf("authenticated GET must not be cached")
		}
	}
}

func TestResponseCache_DoesNotCacheErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := newRedis(t)

	s := gin.New()
	s.Use(ResponseCache(rdb, 30*time.Second))
	s.GET("/events/:id", func(c *gin.Context) { c.JSON(404, gin.H{"message": "nope"}) })

	serve(s, "GET", "/events/x", "")
	if w := serve(s, "GET", "/events/x", ""); w.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("errors must not be cached, got %q", w.Header().Get("X-Cache"))
	}
}

// Limit=2：前兩次 200，第三次 429
func TestQuota_Exceed429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := newRedis(t)

	s := gin.New()
	s.Use(func(c *gin.Context) { c.Set(CtxUserID, int64(7)); c.Next() })
	s.Use(Quota(rdb, QuotaRule{
		Limit:  2,
		Window: time.Hour,
		KeyFn: func(c *gin.Context) string {
			return fmt.Sprintf("quota:user:%d:day", c.GetInt64(CtxUserID))
		},
	}))
	s.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	for i := 0; i < 2; i++ {
		if w := serve(s, http.MethodGet, "/x", ""); w.Code != 200 {
			t.Fatalf("unexpected %d", w.Code)
		}
	}
	if w := serve(s, http.MethodGet, "/x", ""); w.Code != 429 {
		t.Fatalf("want 429, got %d; body=%s", w.Code, w.Body.String())
	}
}

func TestRateLimiter_BurstThen429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(LimiterConfig{Name: "test", RPS: 0.001, Burst: 2, IdleTTL: time.Minute})
	t.Cleanup(rl.Stop)

	s := gin.New()
	s.Use(rl.Middleware(func(c *gin.Context) string { return "ip:" + c.ClientIP() }))
	s.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	for i := 0; i < 2; i++ {
		if w := serve(s, http.MethodGet, "/x", ""); w.Code != 200 {
			t.Fatalf("request %d: unexpected %d", i, w.Code)
		}
	}
	w := serve(s, http.MethodGet, "/x", "")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("want 429 with Retry-After, got %d %q", w.Code, w.Header().Get("Retry-After"))
	}
}

func TestRateLimiter_SweepDropsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(LimiterConfig{RPS: 1, Burst: 1, IdleTTL: time.Minute})
	t.Cleanup(rl.Stop)

	rl.getLimiter("a")
	rl.sweep(time.Now().Add(2 * time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.buckets) != 0 {
		t.Fatalf("idle bucket survived sweep")
	}
}
