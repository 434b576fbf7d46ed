// Package session keeps the signed-in user's identity and organisation,
// mirrored into two backends: the cookie jar and device-local storage.
//
// Cookies win on read. Every write goes to both backends; an empty value
// clears the key from both. Disagreement between the two is not
// reconciled.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"

	"ticketdesk/metrics"
	"ticketdesk/models"
)

const (
	KeyUserID         = "userId"
	KeyOrganizationID = "organizationId"
	KeyToken          = "token"
	KeyRole           = "userRole"
	// KeyUser and KeyOrganization hold JSON and live in local storage only.
	KeyUser         = "user"
	KeyOrganization = "organization"
)

var markerKeys = []string{KeyUserID, KeyOrganizationID, KeyToken, KeyRole}

// UserFetcher loads a user with the given token; it is how Load hydrates
// a session that has a token but no cached profile.
type UserFetcher func(ctx context.Context, token string, userID int64) (models.User, error)

// Store is one view of a session. It is not safe for concurrent use.
type Store struct {
	cookies Backend
	local   Backend
	fetch   UserFetcher
	logger  *log.Logger

	userID   int64
	orgID    int64
	token    string
	role     string
	user     *models.User
	org      *models.Organization
	hydrated bool
}

// New returns an empty Store. fetch and logger may be nil.
func New(cookies, local Backend, fetch UserFetcher, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{cookies: cookies, local: local, fetch: fetch, logger: logger}
}

func (s *Store) UserID() int64                       { return s.userID }
func (s *Store) OrganizationID() int64               { return s.orgID }
func (s *Store) Token() string                       { return s.token }
func (s *Store) Role() string                        { return s.role }
func (s *Store) User() *models.User                  { return s.user }
func (s *Store) Organization() *models.Organization { return s.org }

// Authenticated reports whether a token is present.
func (s *Store) Authenticated() bool { return s.token != "" }

// read returns the cookie value for key, falling back to local storage.
func (s *Store) read(ctx context.Context, key string) (string, error) {
	v, ok, err := s.cookies.Get(ctx, key)
	if err != nil {
		s.logger.Warn("session cookie unreadable", "key", key, "err", err)
	}
	if ok {
		return v, nil
	}
	v, _, err = s.local.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

// Load fills the Store from its backends. When a token is present but no
// profile for the signed-in user is cached, the profile is fetched once
// and persisted. Markers that could be read are kept even when Load
// returns an error.
func (s *Store) Load(ctx context.Context) error {
	var errs []error
	vals := make(map[string]string, len(markerKeys))
	for _, k := range markerKeys {
		v, err := s.read(ctx, k)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		vals[k] = v
	}
	s.userID = parseID(vals[KeyUserID])
	s.orgID = parseID(vals[KeyOrganizationID])
	s.token = vals[KeyToken]
	s.role = vals[KeyRole]

	s.user = nil
	if raw, ok, err := s.local.Get(ctx, KeyUser); err != nil {
		errs = append(errs, fmt.Errorf("read %s: %w", KeyUser, err))
	} else if ok {
		var u models.User
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			s.user = &u
		} else {
			s.logger.Warn("dropping unreadable cached user", "err", err)
		}
	}
	s.org = nil
	if raw, ok, err := s.local.Get(ctx, KeyOrganization); err != nil {
		errs = append(errs, fmt.Errorf("read %s: %w", KeyOrganization, err))
	} else if ok {
		var o models.Organization
		if err := json.Unmarshal([]byte(raw), &o); err == nil {
			s.org = &o
		} else {
			s.logger.Warn("dropping unreadable cached organization", "err", err)
		}
	}
	if s.org != nil && s.org.ID != s.orgID {
		s.org = nil
	}

	errs = append(errs, s.hydrate(ctx))
	return errors.Join(errs...)
}

func (s *Store) hydrate(ctx context.Context) error {
	if s.hydrated || s.fetch == nil || s.token == "" || s.userID == 0 {
		return nil
	}
	if s.user != nil && s.user.ID == s.userID {
		return nil
	}
	s.hydrated = true

	u, err := s.fetch(ctx, s.token, s.userID)
	if err != nil {
		metrics.SessionHydrations.WithLabelValues("error").Inc()
		return fmt.Errorf("hydrate user %d: %w", s.userID, err)
	}
	metrics.SessionHydrations.WithLabelValues("ok").Inc()
	return s.SetUser(ctx, &u)
}

// write mirrors value into both backends, or clears key from both when
// value is empty.
func (s *Store) write(ctx context.Context, key, value string) error {
	if value == "" {
		return errors.Join(s.cookies.Delete(ctx, key), s.local.Delete(ctx, key))
	}
	return errors.Join(s.cookies.Set(ctx, key, value), s.local.Set(ctx, key, value))
}

func (s *Store) writeLocal(ctx context.Context, key string, v any) error {
	if v == nil {
		return s.local.Delete(ctx, key)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.local.Set(ctx, key, string(b))
}

// SetUserID stores id; 0 clears it.
func (s *Store) SetUserID(ctx context.Context, id int64) error {
	s.userID = id
	return s.write(ctx, KeyUserID, formatID(id))
}

// SetOrganizationID stores id; 0 clears it.
func (s *Store) SetOrganizationID(ctx context.Context, id int64) error {
	s.orgID = id
	return s.write(ctx, KeyOrganizationID, formatID(id))
}

func (s *Store) SetToken(ctx context.Context, token string) error {
	s.token = token
	return s.write(ctx, KeyToken, token)
}

func (s *Store) SetRole(ctx context.Context, role string) error {
	s.role = role
	return s.write(ctx, KeyRole, role)
}

// SetUser caches the profile in local storage; nil clears it.
func (s *Store) SetUser(ctx context.Context, u *models.User) error {
	if u == nil {
		s.user = nil
		return s.writeLocal(ctx, KeyUser, nil)
	}
	cp := *u
	s.user = &cp
	return s.writeLocal(ctx, KeyUser, &cp)
}

// SetOrganization caches the organisation in local storage; nil clears it.
func (s *Store) SetOrganization(ctx context.Context, o *models.Organization) error {
	if o == nil {
		s.org = nil
		return s.writeLocal(ctx, KeyOrganization, nil)
	}
	cp := *o
	s.org = &cp
	return s.writeLocal(ctx, KeyOrganization, &cp)
}

// Login records a fresh sign-in. A cached organisation is kept only when
// it is the one u belongs to.
func (s *Store) Login(ctx context.Context, token string, u models.User) error {
	var orgID int64
	if u.OrganizationID != nil {
		orgID = *u.OrganizationID
	}
	errs := []error{
		s.SetToken(ctx, token),
		s.SetUserID(ctx, u.ID),
		s.SetRole(ctx, u.Role),
		s.SetOrganizationID(ctx, orgID),
		s.SetUser(ctx, &u),
	}
	if s.org != nil && (orgID == 0 || s.org.ID != orgID) {
		errs = append(errs, s.SetOrganization(ctx, nil))
	}
	return errors.Join(errs...)
}

// Logout clears every field and both backends.
func (s *Store) Logout(ctx context.Context) error {
	var errs []error
	for _, k := range markerKeys {
		errs = append(errs, s.write(ctx, k, ""))
	}
	errs = append(errs,
		s.local.Delete(ctx, KeyUser),
		s.local.Delete(ctx, KeyOrganization),
	)
	s.userID, s.orgID, s.token, s.role = 0, 0, "", ""
	s.user, s.org = nil, nil
	return errors.Join(errs...)
}

func parseID(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
