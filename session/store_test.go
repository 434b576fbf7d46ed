package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"ticketdesk/models"
)

func ptr[T any](v T) *T { return &v }

func TestRoundTripBothBackends(t *testing.T) {
	ctx := context.Background()
	cookies, local := NewMemoryBackend(), NewMemoryBackend()
	s := New(cookies, local, nil, nil)

	require.NoError(t, s.SetUserID(ctx, 7))
	require.NoError(t, s.SetOrganizationID(ctx, 3))
	require.NoError(t, s.SetToken(ctx, "tok"))
	require.NoError(t, s.SetRole(ctx, models.RoleOrganizer))
	require.NoError(t, s.SetUser(ctx, &models.User{ID: 7, Name: "Ann"}))
	require.NoError(t, s.SetOrganization(ctx, &models.Organization{ID: 3, Name: "Acme"}))

	for _, b := range []*MemoryBackend{cookies, local} {
		v, ok, _ := b.Get(ctx, KeyUserID)
		require.True(t, ok)
		require.Equal(t, "7", v)
	}
	_, ok, _ := cookies.Get(ctx, KeyUser)
	require.False(t, ok, "profile must not be written to cookies")

	again := New(cookies, local, nil, nil)
	require.NoError(t, again.Load(ctx))
	require.Equal(t, int64(7), again.UserID())
	require.Equal(t, int64(3), again.OrganizationID())
	require.Equal(t, "tok", again.Token())
	require.Equal(t, models.RoleOrganizer, again.Role())
	require.Equal(t, "Ann", again.User().Name)
	require.Equal(t, "Acme", again.Organization().Name)
}

func TestClearingRemovesFromBoth(t *testing.T) {
	ctx := context.Background()
	cookies, local := NewMemoryBackend(), NewMemoryBackend()
	s := New(cookies, local, nil, nil)

	require.NoError(t, s.SetOrganizationID(ctx, 3))
	require.NoError(t, s.SetOrganizationID(ctx, 0))
	require.NoError(t, s.SetToken(ctx, "tok"))
	require.NoError(t, s.SetToken(ctx, ""))

	require.Zero(t, cookies.Len())
	require.Zero(t, local.Len())
	require.Zero(t, s.OrganizationID())
	require.False(t, s.Authenticated())
}

func TestLogoutClearsEverything(t *testing.T) {
	ctx := context.Background()
	cookies, local := NewMemoryBackend(), NewMemoryBackend()
	s := New(cookies, local, nil, nil)
	require.NoError(t, s.Login(ctx, "tok", models.User{ID: 1, Role: models.RoleOrganizer, OrganizationID: ptr[int64](9)}))
	require.NoError(t, s.SetOrganization(ctx, &models.Organization{ID: 9}))
	require.Equal(t, int64(9), s.OrganizationID())

	require.NoError(t, s.Logout(ctx))
	require.Zero(t, cookies.Len())
	require.Zero(t, local.Len())
	require.Nil(t, s.User())
	require.Nil(t, s.Organization())
	require.Empty(t, s.Token())
}

func TestCookiesWinOverLocal(t *testing.T) {
	ctx := context.Background()
	cookies, local := NewMemoryBackend(), NewMemoryBackend()
	_ = cookies.Set(ctx, KeyOrganizationID, "5")
	_ = local.Set(ctx, KeyOrganizationID, "6")
	_ = local.Set(ctx, KeyRole, models.RoleOrganizer)

	s := New(cookies, local, nil, nil)
	require.NoError(t, s.Load(ctx))
	require.Equal(t, int64(5), s.OrganizationID())
	require.Equal(t, models.RoleOrganizer, s.Role(), "missing cookie falls back to local storage")

	// no reconciliation happens on read
	v, _, _ := local.Get(ctx, KeyOrganizationID)
	require.Equal(t, "6", v)
}

func TestHydratesOnce(t *testing.T) {
	ctx := context.Background()
	cookies, local := NewMemoryBackend(), NewMemoryBackend()
	_ = cookies.Set(ctx, KeyToken, "tok")
	_ = cookies.Set(ctx, KeyUserID, "4")

	calls := 0
	fetch := func(_ context.Context, token string, id int64) (models.User, error) {
		calls++
		require.Equal(t, "tok", token)
		return models.User{ID: id, Name: "Fetched"}, nil
	}

	s := New(cookies, local, fetch, nil)
	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.Load(ctx))
	require.Equal(t, 1, calls)
	require.Equal(t, "Fetched", s.User().Name)

	// persisted, so a later request does not fetch again
	require.NoError(t, New(cookies, local, fetch, nil).Load(ctx))
	require.Equal(t, 1, calls)
}

func TestHydrationFailureIsReported(t *testing.T) {
	ctx := context.Background()
	cookies := NewMemoryBackend()
	_ = cookies.Set(ctx, KeyToken, "tok")
	_ = cookies.Set(ctx, KeyUserID, "4")
	boom := errors.New("boom")

	s := New(cookies, NewMemoryBackend(), func(context.Context, string, int64) (models.User, error) {
		return models.User{}, boom
	}, nil)
	require.ErrorIs(t, s.Load(ctx), boom)
	require.Equal(t, "tok", s.Token(), "markers stay loaded")
	require.Nil(t, s.User())
}

func TestNoHydrationWithoutToken(t *testing.T) {
	ctx := context.Background()
	cookies := NewMemoryBackend()
	_ = cookies.Set(ctx, KeyUserID, "4")
	s := New(cookies, NewMemoryBackend(), func(context.Context, string, int64) (models.User, error) {
		t.Fatal("unexpected fetch")
		return models.User{}, nil
	}, nil)
	require.NoError(t, s.Load(ctx))
}

func TestCookieBackendOverHTTP(t *testing.T) {
	ctx := context.Background()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: KeyRole, Value: "organizer"})
	req.AddCookie(&http.Cookie{Name: KeyToken, Value: "old"})
	w := httptest.NewRecorder()
	b := NewCookieBackend(w, req, CookieOptions{MaxAge: 7 * 24 * time.Hour})

	v, ok, err := b.Get(ctx, KeyRole)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "organizer", v)

	require.NoError(t, b.Set(ctx, KeyUserID, "12"))
	require.NoError(t, b.Delete(ctx, KeyToken))

	v, ok, _ = b.Get(ctx, KeyUserID)
	require.True(t, ok)
	require.Equal(t, "12", v)
	_, ok, _ = b.Get(ctx, KeyToken)
	require.False(t, ok, "deleted during the exchange")

	got := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		got[c.Name] = c
	}
	require.Equal(t, 7*24*3600, got[KeyUserID].MaxAge)
	require.True(t, got[KeyUserID].HttpOnly)
	require.Equal(t, -1, got[KeyToken].MaxAge)
}

func TestRedisBackendNamespacesByDevice(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	a := NewRedisBackend(rdb, "dev-a", time.Hour)
	b := NewRedisBackend(rdb, "dev-b", time.Hour)
	require.NoError(t, a.Set(ctx, KeyToken, "tok"))

	_, ok, err := b.Get(ctx, KeyToken)
	require.NoError(t, err)
	require.False(t, ok)

	v, ok, err := a.Get(ctx, KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok", v)
	require.Equal(t, time.Hour, mr.TTL("session:dev-a:token"))

	require.NoError(t, a.Delete(ctx, KeyToken))
	require.False(t, mr.Exists("session:dev-a:token"))
}

func TestLoginOverLeftoverDeviceSession(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryBackend()

	a := New(NewMemoryBackend(), local, nil, nil)
	require.NoError(t, a.Login(ctx, "tok-a", models.User{ID: 1, Role: models.RoleOrganizer, OrganizationID: ptr(int64(9))}))
	require.NoError(t, a.SetOrganization(ctx, &models.Organization{ID: 9, Name: "A-Corp"}))

	// a new cookie jar on the same device
	cookies := NewMemoryBackend()
	b := New(cookies, local, nil, nil)
	require.NoError(t, b.Load(ctx))
	require.NoError(t, b.Login(ctx, "tok-b", models.User{ID: 2, Role: models.RoleOrganizer}))
	require.Zero(t, b.OrganizationID())
	require.Nil(t, b.Organization())
	_, ok, _ := local.Get(ctx, KeyOrganization)
	require.False(t, ok)

	again := New(cookies, local, nil, nil)
	require.NoError(t, again.Load(ctx))
	require.Equal(t, int64(2), again.UserID())
	require.Nil(t, again.Organization())
}

func TestLoginKeepsMatchingOrganization(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), NewMemoryBackend(), nil, nil)
	require.NoError(t, s.SetOrganization(ctx, &models.Organization{ID: 9, Name: "A-Corp"}))
	require.NoError(t, s.Login(ctx, "tok", models.User{ID: 1, OrganizationID: ptr(int64(9))}))
	require.Equal(t, "A-Corp", s.Organization().Name)
}

func TestLoadIgnoresOrganizationOfAnotherID(t *testing.T) {
	ctx := context.Background()
	cookies, local := NewMemoryBackend(), NewMemoryBackend()
	_ = cookies.Set(ctx, KeyOrganizationID, "3")
	_ = local.Set(ctx, KeyOrganization, `{"id":9,"name":"A-Corp"}`)

	s := New(cookies, local, nil, nil)
	require.NoError(t, s.Load(ctx))
	require.Equal(t, int64(3), s.OrganizationID())
	require.Nil(t, s.Organization())
}

func TestHydratesWhenCachedUserIsSomeoneElse(t *testing.T) {
	ctx := context.Background()
	cookies, local := NewMemoryBackend(), NewMemoryBackend()
	_ = cookies.Set(ctx, KeyToken, "tok")
	_ = cookies.Set(ctx, KeyUserID, "2")
	_ = local.Set(ctx, KeyUser, `{"id":1,"name":"Previous"}`)

	calls := 0
	s := New(cookies, local, func(_ context.Context, _ string, id int64) (models.User, error) {
		calls++
		return models.User{ID: id, Name: "Current"}, nil
	}, nil)
	require.NoError(t, s.Load(ctx))
	require.Equal(t, 1, calls)
	require.Equal(t, int64(2), s.User().ID)
	require.Equal(t, "Current", s.User().Name)
}

// brokenBackend fails every read.
type brokenBackend struct{ *MemoryBackend }

func (brokenBackend) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("storage down")
}

func TestLoadKeepsCookieMarkersWhenLocalFails(t *testing.T) {
	ctx := context.Background()
	cookies := NewMemoryBackend()
	_ = cookies.Set(ctx, KeyToken, "tok")
	_ = cookies.Set(ctx, KeyRole, models.RoleOrganizer)
	_ = cookies.Set(ctx, KeyOrganizationID, "3")

	s := New(cookies, brokenBackend{NewMemoryBackend()}, nil, nil)
	require.Error(t, s.Load(ctx), "userId falls through to the broken storage")
	require.Equal(t, "tok", s.Token())
	require.Equal(t, models.RoleOrganizer, s.Role())
	require.Equal(t, int64(3), s.OrganizationID())
	require.Zero(t, s.UserID())
}
