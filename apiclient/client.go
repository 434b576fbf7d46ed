// Package apiclient talks to the ticketing REST API over HTTP.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-querystring/query"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"ticketdesk/models"
)

const maxBody = 4 << 20

// Client is safe for concurrent use. WithToken derives per-caller copies
// that share the transport and the event cache.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	events  *expirable.LRU[string, models.Event]
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger logs every call at debug level.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithEventCache sizes the event lookup cache. A size of 0 disables it.
func WithEventCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		if size <= 0 {
			c.events = nil
			return
		}
		c.events = expirable.NewLRU[string, models.Event](size, nil, ttl)
	}
}

// New returns a Client for the API at baseURL. timeout bounds each call.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		events:  expirable.NewLRU[string, models.Event](256, nil, time.Minute),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithToken returns a copy of c that authenticates as token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token returns the token c authenticates with.
func (c *Client) Token() string { return c.token }

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer res.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %v", ErrNetwork, method, path, err)
	}
	if c.logger != nil {
		c.logger.Debug("api call", "method", method, "path", path, "status", res.StatusCode, "time", time.Since(start))
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &e)
		return &StatusError{Status: res.StatusCode, Message: e.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformed, method, path, err)
	}
	return nil
}

func id(n int64) string { return strconv.FormatInt(n, 10) }

/* -------------------- auth & users -------------------- */

// LoginResult is the body of a successful POST /login.
type LoginResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var res LoginResult
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", nil, in, &res); err != nil {
		return LoginResult{}, err
	}
	if res.Token == "" || res.User.ID == 0 {
		return LoginResult{}, fmt.Errorf("%w: login without token or user", ErrMalformed)
	}
	return res, nil
}

func (c *Client) GetUser(ctx context.Context, userID int64) (models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/users/"+id(userID), nil, nil, &u); err != nil {
		return models.User{}, err
	}
	if u.ID == 0 {
		return models.User{}, fmt.Errorf("%w: user without id", ErrMalformed)
	}
	return u, nil
}

// UserUpdate is the body of PUT /users/:id.
type UserUpdate struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (c *Client) UpdateUser(ctx context.Context, userID int64, in UserUpdate) (models.User, error) {
	var res struct {
		User *models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPut, "/users/"+id(userID), nil, in, &res); err != nil {
		return models.User{}, err
	}
	if res.User == nil {
		return models.User{}, fmt.Errorf("%w: update without user", ErrMalformed)
	}
	return *res.User, nil
}

/* -------------------- organizations -------------------- */

// OrganizationInput is the body of POST and PUT /organizations.
type OrganizationInput struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Contact     models.Contact `json:"contact"`
}

func (c *Client) GetOrganization(ctx context.Context, orgID int64) (models.Organization, error) {
	var o models.Organization
	if err := c.do(ctx, http.MethodGet, "/organizations/"+id(orgID), nil, nil, &o); err != nil {
		return models.Organization{}, err
	}
	if o.ID == 0 {
		return models.Organization{}, fmt.Errorf("%w: organization without id", ErrMalformed)
	}
	return o, nil
}

func (c *Client) CreateOrganization(ctx context.Context, in OrganizationInput) (models.Organization, error) {
	return c.writeOrganization(ctx, http.MethodPost, "/organizations", in)
}

func (c *Client) UpdateOrganization(ctx context.Context, orgID int64, in OrganizationInput) (models.Organization, error) {
	return c.writeOrganization(ctx, http.MethodPut, "/organizations/"+id(orgID), in)
}

func (c *Client) writeOrganization(ctx context.Context, method, path string, in OrganizationInput) (models.Organization, error) {
	var res struct {
		Organization *models.Organization `json:"organization"`
	}
	if err := c.do(ctx, method, path, nil, in, &res); err != nil {
		return models.Organization{}, err
	}
	if res.Organization == nil || res.Organization.ID == 0 {
		return models.Organization{}, fmt.Errorf("%w: response without organization", ErrMalformed)
	}
	return *res.Organization, nil
}

/* -------------------- events & tickets -------------------- */

func (c *Client) ListOrganizationEvents(ctx context.Context, orgID int64) ([]models.Event, error) {
	var events []models.Event
	if err := c.do(ctx, http.MethodGet, "/organizations/"+id(orgID)+"/events", nil, nil, &events); err != nil {
		return nil, err
	}
	if c.events != nil {
		for _, e := range events {
			c.events.Add(e.ID, e)
		}
	}
	return events, nil
}

// GetEvent is served from the event cache when possible.
func (c *Client) GetEvent(ctx context.Context, eventID string) (models.Event, error) {
	if c.events != nil {
		if e, ok := c.events.Get(eventID); ok {
			return e, nil
		}
	}
	var e models.Event
	if err := c.do(ctx, http.MethodGet, "/events/"+url.PathEscape(eventID), nil, nil, &e); err != nil {
		return models.Event{}, err
	}
	if e.ID == "" {
		return models.Event{}, fmt.Errorf("%w: event without id", ErrMalformed)
	}
	if c.events != nil {
		c.events.Add(e.ID, e)
	}
	return e, nil
}

// TicketListOptions are the query parameters of GET /tickets.
type TicketListOptions struct {
	OrganizationID int64     `url:"organizationId"`
	Since          time.Time `url:"since,omitempty"`
}

func (c *Client) ListTickets(ctx context.Context, opts TicketListOptions) ([]models.Ticket, error) {
	q, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("encode ticket query: %w", err)
	}
	var tickets []models.Ticket
	if err := c.do(ctx, http.MethodGet, "/tickets", q, nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}
