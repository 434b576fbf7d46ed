package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketdesk/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginSendsCredentialsAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "a@b.com", in["email"])
		writeJSON(w, 200, map[string]any{"token": "tok", "user": models.User{ID: 7, Role: "organizer"}})
	})

	res, err := c.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	require.Equal(t, "tok", res.Token)
	require.Equal(t, int64(7), res.User.ID)
}

func TestTokenIsSentAsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, 200, models.User{ID: 3})
	})
	u, err := c.WithToken("tok").GetUser(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, int64(3), u.ID)
}

func TestStatusErrorCarriesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Sold out."})
	})
	_, err := c.GetOrganization(context.Background(), 1)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusConflict, se.Status)
	require.Equal(t, "Sold out.", Message(err))
	require.Equal(t, http.StatusConflict, HTTPStatus(err))
	require.False(t, errors.Is(err, ErrUnauthorized))
}

func TestUnauthorizedMatchesSentinel(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
		})
		_, err := c.GetUser(context.Background(), 1)
		require.ErrorIs(t, err, ErrUnauthorized, "status %d", code)
		require.Contains(t, Message(err), "log in")
	}
}

func TestMalformedBodies(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"not json": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>oops</html>"))
		},
		"missing id": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, map[string]string{"name": "nobody"})
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newTestClient(t, h).GetUser(context.Background(), 1)
			require.ErrorIs(t, err, ErrMalformed)
			require.Equal(t, http.StatusBadGateway, HTTPStatus(err))
		})
	}
}

func TestLoginWithoutTokenIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]any{"user": models.User{ID: 1}})
	})
	_, err := c.Login(context.Background(), "a@b.com", "pw")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).GetUser(context.Background(), 1)
	require.ErrorIs(t, err, ErrNetwork)
	require.Contains(t, Message(err), "Could not reach")
}

func TestListTicketsEncodesQuery(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tickets", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("organizationId"))
		assert.Equal(t, "2026-03-01T00:00:00Z", r.URL.Query().Get("since"))
		writeJSON(w, 200, []models.Ticket{{ID: 1}, {ID: 2}})
	})

	ts, err := c.ListTickets(context.Background(), TicketListOptions{OrganizationID: 42, Since: since})
	require.NoError(t, err)
	require.Len(t, ts, 2)
}

func TestListTicketsOmitsZeroSince(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, has := r.URL.Query()["since"]
		assert.False(t, has)
		writeJSON(w, 200, []models.Ticket{})
	})
	_, err := c.ListTickets(context.Background(), TicketListOptions{OrganizationID: 1})
	require.NoError(t, err)
}

func TestGetEventIsCached(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, 200, models.Event{ID: "e-1", Title: "GoConf"})
	})

	for range 3 {
		e, err := c.GetEvent(context.Background(), "e-1")
		require.NoError(t, err)
		require.Equal(t, "GoConf", e.Title)
	}
	require.Equal(t, int32(1), calls.Load())

	// token copies share the cache
	_, err := c.WithToken("x").GetEvent(context.Background(), "e-1")
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestGetEventCacheDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, 200, models.Event{ID: "e-1"})
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, WithEventCache(0, 0))
	for range 2 {
		_, err := c.GetEvent(context.Background(), "e-1")
		require.NoError(t, err)
	}
	require.Equal(t, int32(2), calls.Load())
}

func TestUpdateOrganizationUnwrapsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/organizations/5", r.URL.Path)
		writeJSON(w, 200, map[string]any{"message": "ok", "organization": models.Organization{ID: 5, Name: "Acme"}})
	})
	o, err := c.UpdateOrganization(context.Background(), 5, OrganizationInput{Name: "Acme"})
	require.NoError(t, err)
	require.Equal(t, "Acme", o.Name)
}
