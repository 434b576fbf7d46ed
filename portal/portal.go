// Package portal is the organiser dashboard's backend: it keeps the session
// in cookies and Redis, guards pages, and renders dashboard view models
// fetched from the ticketing API.
package portal

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ticketdesk/apiclient"
	"ticketdesk/clock"
	"ticketdesk/config"
	"ticketdesk/guard"
	"ticketdesk/middlewares"
	"ticketdesk/models"
	"ticketdesk/session"
)

const (
	deviceCookie = "deviceId"
	ctxSession   = "session"
)

// Server is the portal HTTP server.
type Server struct {
	cfg    config.PortalConfig
	api    *apiclient.Client
	rdb    *redis.Client
	guard  *guard.Guard
	logger *log.Logger
	clock  clock.Clock
	engine *gin.Engine
	srv    *http.Server
}

// New wires the portal routes. clk may be nil.
func New(cfg *config.Config, api *apiclient.Client, rdb *redis.Client, logger *log.Logger, clk clock.Clock) (*Server, error) {
	if cfg == nil {
		return nil, config.ErrNilConfig
	}
	g, err := guard.New(cfg.Portal)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	s := &Server{
		cfg:    cfg.Portal,
		api:    api,
		rdb:    rdb,
		guard:  g,
		logger: logger,
		clock:  clk,
	}

	e := gin.New()
	e.Use(middlewares.RequestLogger(logger, "portal"), gin.Recovery())
	e.Use(g.Middleware())
	e.Use(s.withSession)

	e.POST("/login", s.login)
	e.POST("/logout", s.logout)
	e.GET("/session", s.getSession)
	e.GET("/onboarding", s.getOnboarding)
	e.POST("/onboarding", s.createOrganization)

	e.GET("/dashboard/sales", s.sales)
	e.GET("/dashboard/chart", s.chart)
	e.GET("/dashboard/events", s.eventBreakdown)
	e.GET("/profile", s.profile)
	e.PUT("/settings/user", s.updateUser)
	e.PUT("/settings/organization", s.updateOrganization)

	s.engine = e
	s.srv = &http.Server{
		Addr:              cfg.Portal.ListenAddr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the portal's http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) ListenAndServe() error { return s.srv.ListenAndServe() }

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

// withSession builds the request's session Store from its cookies and the
// device's Redis storage, issuing a device id on first visit.
func (s *Server) withSession(c *gin.Context) {
	device, err := c.Cookie(deviceCookie)
	if err != nil || device == "" {
		device = uuid.NewString()
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     deviceCookie,
			Value:    device,
			Path:     "/",
			MaxAge:   int(s.cfg.StorageTTL.Seconds()),
			Secure:   s.cfg.CookieSecure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	store := session.New(
		session.NewCookieBackend(c.Writer, c.Request, session.CookieOptions{
			MaxAge: s.cfg.CookieTTL,
			Secure: s.cfg.CookieSecure,
		}),
		session.NewRedisBackend(s.rdb, device, s.cfg.StorageTTL),
		s.fetchUser,
		s.logger,
	)
	if err := store.Load(c.Request.Context()); err != nil {
		s.logger.Warn("session load", "device", device, "err", err)
	}
	c.Set(ctxSession, store)
	c.Next()
}

func (s *Server) fetchUser(ctx context.Context, token string, userID int64) (models.User, error) {
	return s.api.WithToken(token).GetUser(ctx, userID)
}

func storeOf(c *gin.Context) *session.Store {
	return c.MustGet(ctxSession).(*session.Store)
}
