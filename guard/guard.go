// Package guard decides, before a portal page is served, whether the
// visitor may see it or must be sent to the login or onboarding page.
package guard

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/glob"

	"ticketdesk/config"
	"ticketdesk/metrics"
	"ticketdesk/models"
	"ticketdesk/session"
)

// Outcome is the result of a guard decision.
type Outcome int

const (
	Allow Outcome = iota
	RedirectLogin
	RedirectOnboarding
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "login"
	case RedirectOnboarding:
		return "onboarding"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Markers are the three cookie values the guard looks at.
type Markers struct {
	Role           string
	OrganizationID string
	Token          string
}

// Guard holds the protected route table and the redirect targets.
type Guard struct {
	patterns       []glob.Glob
	loginPath      string
	onboardingPath string
}

// New compiles the protected route patterns. '/' is the separator, so '*'
// stays within one path segment and '**' spans several.
func New(cfg config.PortalConfig) (*Guard, error) {
	g := &Guard{loginPath: cfg.LoginPath, onboardingPath: cfg.OnboardingPath}
	for _, p := range cfg.ProtectedRoutes {
		pat, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("protected route %q: %w", p, err)
		}
		g.patterns = append(g.patterns, pat)
	}
	return g, nil
}

// Protected reports whether path is in the route table.
func (g *Guard) Protected(path string) bool {
	for _, p := range g.patterns {
		if p.Match(path) {
			return true
		}
	}
	return false
}

// Decide is the decision table. It returns the outcome and, for
// redirects, the target path.
func (g *Guard) Decide(path string, m Markers) (Outcome, string) {
	switch {
	case !g.Protected(path):
		return Allow, ""
	case m.Token == "":
		return RedirectLogin, g.loginPath
	case m.Role != models.RoleOrganizer:
		return RedirectLogin, g.loginPath
	case (m.OrganizationID == "" || m.OrganizationID == "0") && path != g.onboardingPath:
		return RedirectOnboarding, g.onboardingPath
	}
	return Allow, ""
}

// Middleware applies Decide to every request using the request cookies.
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m := Markers{
			Role:           cookie(c, session.KeyRole),
			OrganizationID: cookie(c, session.KeyOrganizationID),
			Token:          cookie(c, session.KeyToken),
		}
		outcome, target := g.Decide(c.Request.URL.Path, m)
		metrics.GuardDecisions.WithLabelValues(outcome.String()).Inc()
		if outcome == Allow {
			c.Next()
			return
		}
		c.Redirect(http.StatusFound, target)
		c.Abort()
	}
}

func cookie(c *gin.Context, name string) string {
	v, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return v
}
