package routes

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"ticketdesk/clock"
	"ticketdesk/middlewares"
	"ticketdesk/models"
	"ticketdesk/utils"
)

// Deps is what main hands to RegisterRoutes.
type Deps struct {
	Users   models.UserRepository
	Orgs    models.OrganizationRepository
	Events  models.EventRepository
	Tickets models.TicketRepository

	// Redis backs the daily quota and the response cache. Nil disables both.
	Redis *redis.Client
	// CacheTTL is how long anonymous GETs stay cached. 0 disables the cache.
	CacheTTL time.Duration
	// Invalidator purges cached GETs after writes. Nil disables purging.
	Invalidator *utils.CacheInvalidator

	Clock      clock.Clock
	DailyQuota int
}

// 依賴注入容器
type deps struct {
	users   models.UserRepository
	orgs    models.OrganizationRepository
	events  models.EventRepository
	tickets models.TicketRepository
	inv     *utils.CacheInvalidator
	clock   clock.Clock
}

// RegisterRoutes mounts the API on server and returns the limiters it
// started so the caller can stop them on shutdown.
func RegisterRoutes(server *gin.Engine, in Deps) []*middlewares.RateLimiter {
	d := &deps{
		users:   in.Users,
		orgs:    in.Orgs,
		events:  in.Events,
		tickets: in.Tickets,
		inv:     in.Invalidator,
		clock:   in.Clock,
	}
	if d.clock == nil {
		d.clock = clock.NewSystem()
	}

	// ① 全域 IP 限速
	globalLimiter := middlewares.NewRateLimiter(middlewares.LimiterConfig{
		Name:    "ip",
		RPS:     20,
		Burst:   40,
		IdleTTL: 3 * time.Minute,
	})
	server.Use(globalLimiter.Middleware(func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}))
	// 快取放在 IP 限速之後，命中快取也要計入
	if in.Redis != nil && in.CacheTTL > 0 {
		server.Use(middlewares.ResponseCache(in.Redis, in.CacheTTL))
	}

	// ② /signup、/login 更嚴
	authLimiter := middlewares.NewRateLimiter(middlewares.LimiterConfig{
		Name:    "auth",
		RPS:     0.5,
		Burst:   5,
		IdleTTL: 10 * time.Minute,
	})
	server.GET("/health", health)
	server.POST("/signup",
		authLimiter.Middleware(func(c *gin.Context) string { return "signup:" + c.ClientIP() }),
		d.signup,
	)
	server.POST("/login",
		authLimiter.Middleware(func(c *gin.Context) string { return "login:" + c.ClientIP() }),
		d.login,
	)

	// ③ 受保護群組：先驗證，再以 userId 限速 + 每日配額
	userLimiter := middlewares.NewRateLimiter(middlewares.LimiterConfig{
		Name:    "user",
		RPS:     5,
		Burst:   10,
		IdleTTL: 10 * time.Minute,
	})
	auth := server.Group("/")
	auth.Use(middlewares.Authenticate)
	auth.Use(userLimiter.Middleware(func(c *gin.Context) string {
		return "u:" + strconv.FormatInt(c.GetInt64(middlewares.CtxUserID), 10)
	}))
	if in.Redis != nil && in.DailyQuota > 0 {
		auth.Use(middlewares.Quota(in.Redis, middlewares.QuotaRule{
			Limit:  in.DailyQuota,
			Window: 24 * time.Hour,
			KeyFn: func(c *gin.Context) string {
				uid := c.GetInt64(middlewares.CtxUserID)
				if uid == 0 {
					return ""
				}
				return fmt.Sprintf("quota:user:%d:day", uid)
			},
		}))
	}
	organizer := auth.Group("/")
	organizer.Use(middlewares.RequireRole(models.RoleOrganizer, models.RoleAdmin))

	// 公開 endpoints
	server.GET("/events", d.getEvents)
	server.GET("/events/:id", d.getEvent)
	server.GET("/organizations/:id", d.getOrganization)
	server.GET("/organizations/:id/events", d.getOrganizationEvents)

	// Users
	auth.GET("/users/:id", d.getUser)
	auth.PUT("/users/:id", d.updateUser)
	auth.GET("/users/:id/tickets", d.getUserTickets)

	// Organizations
	organizer.POST("/organizations", d.createOrganization)
	organizer.PUT("/organizations/:id", d.updateOrganization)
	auth.POST("/organizations/:id/follow", d.followOrganization)
	auth.DELETE("/organizations/:id/follow", d.unfollowOrganization)

	// Events
	organizer.POST("/events", d.createEvent)
	organizer.PUT("/events/:id", d.updateEvent)
	organizer.DELETE("/events/:id", d.deleteEvent)
	organizer.GET("/events/:id/tickets", d.getEventTickets)
	auth.POST("/events/:id/tickets", d.buyTicket)

	// Tickets
	organizer.GET("/tickets", d.listTickets)
	auth.GET("/tickets/:id", d.getTicket)
	auth.PUT("/tickets/:id/status", d.updateTicketStatus)

	return []*middlewares.RateLimiter{globalLimiter, authLimiter, userLimiter}
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

/* -------------------- helpers -------------------- */

// fail answers with a {"message": ...} body and records err
// for the request logger.
func fail(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}

func paramInt64(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Could not parse "+name+".", nil)
		return 0, false
	}
	return id, true
}

func callerID(c *gin.Context) int64 { return c.GetInt64(middlewares.CtxUserID) }

func isAdmin(c *gin.Context) bool { return c.GetString(middlewares.CtxRole) == models.RoleAdmin }

// memberOf reports whether the caller is an organiser of orgID. Admins are
// members of every organisation.
func (d *deps) memberOf(c *gin.Context, orgID int64) (bool, error) {
	if isAdmin(c) {
		return true, nil
	}
	u, err := d.users.GetByID(c.Request.Context(), callerID(c))
	if err != nil {
		return false, err
	}
	return u.Role == models.RoleOrganizer && u.OrganizationID != nil && *u.OrganizationID == orgID, nil
}

// requireMember answers 401/500 itself and returns false when the caller
// may not act for orgID.
func (d *deps) requireMember(c *gin.Context, orgID int64, what string) bool {
	ok, err := d.memberOf(c, orgID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not load the current user.", err)
		return false
	}
	if !ok {
		fail(c, http.StatusUnauthorized, "Not authorized to "+what+".", nil)
		return false
	}
	return true
}
