package clientstate

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaymazone/marketplace/internal/auth"
	"github.com/zaymazone/marketplace/internal/client"
	"github.com/zaymazone/marketplace/internal/domain"
	"github.com/zaymazone/marketplace/internal/memstore"
	"github.com/zaymazone/marketplace/internal/server"
)

func newAPI(t *testing.T, ttl time.Duration) *client.Client {
	t.Helper()
	db := memstore.New()
	tokens, err := auth.NewTokens("clientstate-test-secret", ttl)
	require.NoError(t, err)

	handler, err := server.NewRouter(server.Deps{
		Products: db.Products(),
		Users:    db.Users(),
		Orders:   db.Orders(),
		Tokens:   tokens,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return client.New(srv.URL, client.WithHTTPClient(srv.Client()))
}

func strPtr(s string) *string { return &s }

func TestSession_SignupLogoutLogin(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPersister()
	session, err := NewSession(newAPI(t, time.Hour), store)
	require.NoError(t, err)

	assert.False(t, session.State().Authenticated())

	user, err := session.Signup(ctx, client.RegisterRequest{Name: "Ines", Email: "ines@example.com", Password: "pottery1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleBuyer, user.Role)
	assert.True(t, session.State().Authenticated())

	blob, err := store.Load(KeyAuth)
	require.NoError(t, err)
	assert.Contains(t, string(blob), session.State().Token)

	require.NoError(t, session.Logout())
	assert.False(t, session.State().Authenticated())
	assert.Nil(t, session.User())

	_, err = session.Login(ctx, "ines@example.com", "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, client.StatusOf(err))
	assert.False(t, session.State().Authenticated())

	_, err = session.Login(ctx, "ines@example.com", "pottery1")
	require.NoError(t, err)
	assert.Equal(t, "Ines", session.User().Name)
}

func TestSession_UpdateProfileMergesResponse(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPersister()
	api := newAPI(t, time.Hour)

	session, err := NewSession(api, store)
	require.NoError(t, err)

	_, err = session.UpdateProfile(ctx, client.UserUpdate{Location: strPtr("Porto")})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = session.Signup(ctx, client.RegisterRequest{Name: "Rui", Email: "rui@example.com", Password: "weaver1", Role: domain.RoleSeller})
	require.NoError(t, err)

	updated, err := session.UpdateProfile(ctx, client.UserUpdate{Location: strPtr("Porto")})
	require.NoError(t, err)
	assert.Equal(t, "Porto", updated.Location)
	assert.Equal(t, "Rui", updated.Name)

	restored, err := NewSession(api, store)
	require.NoError(t, err)
	require.True(t, restored.State().Authenticated())
	assert.Equal(t, "Porto", restored.User().Location)

	me, err := restored.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated.ID, me.ID)
}

func TestSession_RefreshWithExpiredTokenSignsOut(t *testing.T) {
	ctx := context.Background()
	session, err := NewSession(newAPI(t, time.Millisecond), NewMemoryPersister())
	require.NoError(t, err)

	_, err = session.Signup(ctx, client.RegisterRequest{Name: "Lea", Email: "lea@example.com", Password: "glass12"})
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, err = session.Refresh(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, session.State().Authenticated())
}

func TestSession_ClientCarriesToken(t *testing.T) {
	ctx := context.Background()
	session, err := NewSession(newAPI(t, time.Hour), NewMemoryPersister())
	require.NoError(t, err)

	_, err = session.Client().Profile(ctx)
	assert.Equal(t, http.StatusUnauthorized, client.StatusOf(err))

	_, err = session.Signup(ctx, client.RegisterRequest{Name: "Kai", Email: "kai@example.com", Password: "carver1"})
	require.NoError(t, err)

	me, err := session.Client().Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kai@example.com", me.Email)
}
