package portal

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ticketdesk/apiclient"
	"ticketdesk/dashboard"
	"ticketdesk/models"
	"ticketdesk/session"
)

var (
	errBadRequest     = &apiclient.StatusError{Status: http.StatusBadRequest, Message: "Could not parse request data."}
	errNoOrganization = &apiclient.StatusError{Status: http.StatusConflict, Message: "Create an organization first."}
)

// respond renders v or err in the dashboard envelope.
func respond[T any](c *gin.Context, okStatus int, v T, err error) {
	if err != nil {
		status := apiclient.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.JSON(status, dashboard.Envelope(v, err))
		return
	}
	c.JSON(okStatus, dashboard.Envelope(v, nil))
}

// persist logs session write failures; the response still goes out.
func (s *Server) persist(err error) {
	if err != nil {
		s.logger.Error("session write", "err", err)
	}
}

type sessionView struct {
	Authenticated  bool                 `json:"authenticated"`
	UserID         int64                `json:"userId,omitempty"`
	OrganizationID int64                `json:"organizationId,omitempty"`
	Role           string               `json:"role,omitempty"`
	User           *models.User         `json:"user,omitempty"`
	Organization   *models.Organization `json:"organization,omitempty"`
}

func viewOf(st *session.Store) sessionView {
	return sessionView{
		Authenticated:  st.Authenticated(),
		UserID:         st.UserID(),
		OrganizationID: st.OrganizationID(),
		Role:           st.Role(),
		User:           st.User(),
		Organization:   st.Organization(),
	}
}

// POST /login
func (s *Server) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusOK, sessionView{}, errBadRequest)
		return
	}

	ctx := c.Request.Context()
	res, err := s.api.Login(ctx, req.Email, req.Password)
	if err != nil {
		respond(c, http.StatusOK, sessionView{}, err)
		return
	}

	st := storeOf(c)
	s.persist(st.Login(ctx, res.Token, res.User))
	if res.User.OrganizationID != nil {
		org, err := s.api.WithToken(res.Token).GetOrganization(ctx, *res.User.OrganizationID)
		if err != nil {
			s.logger.Warn("login: organization lookup", "org", *res.User.OrganizationID, "err", err)
		} else {
			s.persist(st.SetOrganization(ctx, &org))
		}
	}
	respond(c, http.StatusOK, viewOf(st), nil)
}

// POST /logout
func (s *Server) logout(c *gin.Context) {
	st := storeOf(c)
	s.persist(st.Logout(c.Request.Context()))
	respond(c, http.StatusOK, viewOf(st), nil)
}

// GET /session
func (s *Server) getSession(c *gin.Context) {
	respond(c, http.StatusOK, viewOf(storeOf(c)), nil)
}

type onboardingView struct {
	Required bool `json:"required"`
}

// GET /onboarding
func (s *Server) getOnboarding(c *gin.Context) {
	respond(c, http.StatusOK, onboardingView{Required: storeOf(c).OrganizationID() == 0}, nil)
}

// POST /onboarding
func (s *Server) createOrganization(c *gin.Context) {
	var in apiclient.OrganizationInput
	if err := c.ShouldBindJSON(&in); err != nil || in.Name == "" {
		respond(c, http.StatusCreated, models.Organization{}, errBadRequest)
		return
	}

	ctx := c.Request.Context()
	st := storeOf(c)
	org, err := s.api.WithToken(st.Token()).CreateOrganization(ctx, in)
	if err != nil {
		respond(c, http.StatusCreated, models.Organization{}, err)
		return
	}

	s.persist(errors.Join(
		st.SetOrganizationID(ctx, org.ID),
		st.SetOrganization(ctx, &org),
	))
	if u := st.User(); u != nil {
		u.OrganizationID = &org.ID
		s.persist(st.SetUser(ctx, u))
	}
	respond(c, http.StatusCreated, org, nil)
}

func (s *Server) window(c *gin.Context) (dashboard.Window, bool) {
	w, err := dashboard.ParseWindow(c.Query("window"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dashboard.Result[struct{}]{Error: err.Error()})
		return "", false
	}
	return w, true
}

// GET /dashboard/sales?window=
func (s *Server) sales(c *gin.Context) {
	w, ok := s.window(c)
	if !ok {
		return
	}
	st := storeOf(c)
	v, err := dashboard.Sales(c.Request.Context(), s.api.WithToken(st.Token()), st.OrganizationID(), w, s.clock.Now())
	respond(c, http.StatusOK, v, err)
}

// GET /dashboard/chart?window=
func (s *Server) chart(c *gin.Context) {
	w, ok := s.window(c)
	if !ok {
		return
	}
	st := storeOf(c)
	v, err := dashboard.Chart(c.Request.Context(), s.api.WithToken(st.Token()), st.OrganizationID(), w, s.clock.Now())
	respond(c, http.StatusOK, v, err)
}

// GET /dashboard/events
func (s *Server) eventBreakdown(c *gin.Context) {
	st := storeOf(c)
	v, err := dashboard.Sales(c.Request.Context(), s.api.WithToken(st.Token()), st.OrganizationID(), dashboard.All, s.clock.Now())
	respond(c, http.StatusOK, v.Events, err)
}

// GET /profile
func (s *Server) profile(c *gin.Context) {
	st := storeOf(c)
	v, err := dashboard.Profile(c.Request.Context(), s.api.WithToken(st.Token()), st.UserID(), st.OrganizationID())
	if err == nil {
		ctx := c.Request.Context()
		s.persist(errors.Join(
			st.SetUser(ctx, &v.User),
			st.SetOrganization(ctx, v.Organization),
		))
	}
	respond(c, http.StatusOK, v, err)
}

// PUT /settings/user
func (s *Server) updateUser(c *gin.Context) {
	var in apiclient.UserUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		respond(c, http.StatusOK, models.User{}, errBadRequest)
		return
	}
	ctx := c.Request.Context()
	st := storeOf(c)
	u, err := dashboard.UpdateUserSettings(ctx, s.api.WithToken(st.Token()), st.UserID(), in)
	if err == nil {
		s.persist(st.SetUser(ctx, &u))
	}
	respond(c, http.StatusOK, u, err)
}

// PUT /settings/organization
func (s *Server) updateOrganization(c *gin.Context) {
	var in apiclient.OrganizationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond(c, http.StatusOK, models.Organization{}, errBadRequest)
		return
	}
	st := storeOf(c)
	if st.OrganizationID() == 0 {
		respond(c, http.StatusOK, models.Organization{}, errNoOrganization)
		return
	}
	ctx := c.Request.Context()
	o, err := dashboard.UpdateOrganizationSettings(ctx, s.api.WithToken(st.Token()), st.OrganizationID(), in)
	if err == nil {
		s.persist(st.SetOrganization(ctx, &o))
	}
	respond(c, http.StatusOK, o, err)
}
