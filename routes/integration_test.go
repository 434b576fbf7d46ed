//go:build integration

// 真正連 Postgres + Mongo + Redis 的端到端整合測試
// 流程：/signup → /login → POST /organizations → POST /events → GET /events (MISS→HIT)
//
//	→ 買票（售完 409）→ 取消 → GET /tickets → DELETE /events/:id
package routes

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"ticketdesk/config"
	"ticketdesk/db"
	"ticketdesk/models"
	"ticketdesk/utils"
)

func waitUntil(t *testing.T, name string, f func() error, d time.Duration) {
	t.Helper()
	deadline := time.Now().Add(d)
	var last error
	for time.Now().Before(deadline) {
		if last = f(); last == nil {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("%s not ready: %v", name, last)
}

func newIntegrationServer(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	if err := cfg.ParseEnv(); err != nil {
		t.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sqldb, err := db.Open(ctx, cfg.DB)
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })

	mgo, events, err := db.OpenMongo(ctx, cfg.Mongo)
	if err != nil {
		t.Fatalf("mongo: %v", err)
	}
	t.Cleanup(func() { _ = mgo.Disconnect(context.Background()) })

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	waitUntil(t, "redis", func() error { return rdb.Ping(context.Background()).Err() }, 30*time.Second)
	t.Cleanup(func() { _ = rdb.Close() })

	s := gin.New()
	limiters := RegisterRoutes(s, Deps{
		Users:       models.NewSQLUserRepository(sqldb),
		Orgs:        models.NewSQLOrganizationRepository(sqldb),
		Events:      models.NewMongoEventRepository(events),
		Tickets:     models.NewSQLTicketRepository(sqldb),
		Redis:       rdb,
		Invalidator: utils.NewCacheInvalidator(rdb),
		CacheTTL:    30 * time.Second,
		DailyQuota:  1000,
	})
	t.Cleanup(func() {
		for _, l := range limiters {
			l.Stop()
		}
	})
	return s
}

func TestIntegration_FullFlow(t *testing.T) {
	s := newIntegrationServer(t)
	stamp := time.Now().Format("150405.000")

	// 1) signup + login
	email := "it_org_" + stamp + "@ex.com"
	if w := doReq(s, http.MethodPost, "/signup", `{"email":"`+email+`","password":"p","role":"organizer"}`, ""); w.Code != http.StatusCreated {
		t.Fatalf("signup code=%d body=%s", w.Code, w.Body.String())
	}
	w := doReq(s, http.MethodPost, "/login", `{"email":"`+email+`","password":"p"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login code=%d body=%s", w.Code, w.Body.String())
	}
	token := decode[struct {
		Token string `json:"token"`
	}](t, w).Token

	// 2) onboarding
	if w := doReq(s, http.MethodPost, "/organizations", `{"name":"IT Org `+stamp+`"}`, token); w.Code != http.StatusCreated {
		t.Fatalf("create org code=%d body=%s", w.Code, w.Body.String())
	}

	// 3) 清單快取 MISS → HIT
	doReq(s, http.MethodGet, "/events", "", "")
	if hit := doReq(s, http.MethodGet, "/events", "", "").Header().Get("X-Cache"); hit != "HIT" {
		t.Fatalf("expect HIT, got %q", hit)
	}

	// 4) 建立事件（Mongo 寫入 + 清單快取失效）
	body := `{"title":"IT Demo","startDate":"2026-01-01T00:00:00Z","pricing":[{"type":"ga","price":10,"ticketCount":1}]}`
	w = doReq(s, http.MethodPost, "/events", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create event code=%d body=%s", w.Code, w.Body.String())
	}
	ev := decode[struct {
		Event models.Event `json:"event"`
	}](t, w).Event
	if miss := doReq(s, http.MethodGet, "/events", "", "").Header().Get("X-Cache"); miss != "MISS" {
		t.Fatalf("expect MISS after create, got %q", miss)
	}

	// 5) 買票（Postgres tickets）、售完、取消
	w = doReq(s, http.MethodPost, "/events/"+ev.ID+"/tickets", `{"type":"ga"}`, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("buy code=%d body=%s", w.Code, w.Body.String())
	}
	tk := decode[struct {
		Ticket models.Ticket `json:"ticket"`
	}](t, w).Ticket
	if w := doReq(s, http.MethodPost, "/events/"+ev.ID+"/tickets", `{"type":"ga"}`, token); w.Code != http.StatusConflict {
		t.Fatalf("sold out want 409 got %d", w.Code)
	}
	if w := doReq(s, http.MethodPut, "/tickets/"+itoa(tk.ID)+"/status", `{"status":"cancelled"}`, token); w.Code != http.StatusOK {
		t.Fatalf("cancel code=%d body=%s", w.Code, w.Body.String())
	}

	// 6) 主辦方列出票券
	if w := doReq(s, http.MethodGet, "/tickets?organizationId="+itoa(ev.OrganizationID), "", token); w.Code != http.StatusOK {
		t.Fatalf("list tickets code=%d body=%s", w.Code, w.Body.String())
	}

	// 7) 刪除事件
	if w := doReq(s, http.MethodDelete, "/events/"+ev.ID, "", token); w.Code != http.StatusOK {
		t.Fatalf("delete event code=%d body=%s", w.Code, w.Body.String())
	}
}
