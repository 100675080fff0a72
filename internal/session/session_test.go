package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/mfalite/internal/apitest"
	"github.com/me/mfalite/internal/logging"
	"github.com/me/mfalite/pkg/api"
	"github.com/me/mfalite/pkg/model"
)

func newTestBackend(t *testing.T) (*apitest.Server, *api.Client) {
	t.Helper()
	backend := apitest.New()
	backend.SeedUser(model.User{ID: "admin@x.co", Email: "admin@x.co", Roles: []string{"Admin"}}, "adminpw123")
	backend.SeedUser(model.User{ID: "carol@x.co", Email: "carol@x.co", Roles: []string{"MFALite"}}, "carolpw123")
	backend.SeedUser(model.User{ID: "dave@x.co", Email: "dave@x.co", Roles: []string{"CloneSelect"}}, "davepw1234")

	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)
	return backend, api.NewClient(ts.URL+"/v1", logging.Discard())
}

func adminIdentity(backend *apitest.Server) *model.User {
	u := model.User{ID: "admin@x.co", Email: "admin@x.co", Roles: []string{"Admin"}}
	u.Token = backend.MintToken(u)
	return &u
}

func memberIdentity(backend *apitest.Server) *model.User {
	u := model.User{ID: "carol@x.co", Email: "carol@x.co", Roles: []string{"MFALite"}}
	u.Token = backend.MintToken(u)
	return &u
}

func openStore(t *testing.T, client *api.Client) *Store {
	t.Helper()
	store, err := Open(client, logging.Discard(), filepath.Join(t.TempDir(), "credentials.json"))
	require.NoError(t, err)
	return store
}

func TestAdminLoginPopulatesRoster(t *testing.T) {
	backend, client := newTestBackend(t)
	store := openStore(t, client)

	require.NoError(t, store.SetIdentity(adminIdentity(backend)))
	assert.True(t, store.IsAdmin())

	require.Eventually(t, func() bool {
		return len(store.Users()) == 3
	}, 2*time.Second, 10*time.Millisecond, "admin login triggers a roster fetch")

	u, ok := store.UserByID("carol@x.co")
	require.True(t, ok)
	assert.Equal(t, "carol@x.co", u.Email)
}

func TestNonAdminRosterStaysEmpty(t *testing.T) {
	backend, client := newTestBackend(t)
	store := openStore(t, client)

	require.NoError(t, store.SetIdentity(memberIdentity(backend)))
	assert.False(t, store.IsAdmin())

	assert.Never(t, func() bool {
		return len(store.Users()) > 0
	}, 200*time.Millisecond, 20*time.Millisecond)

	_, ok := store.UserByID("dave@x.co")
	assert.False(t, ok, "roster lookup misses without a fetch")
}

func TestPersistRoundTrip(t *testing.T) {
	backend, client := newTestBackend(t)
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := Open(client, logging.Discard(), path)
	require.NoError(t, err)
	identity := adminIdentity(backend)
	require.NoError(t, store.SetIdentity(identity))

	// Simulate a restart: a fresh store over the same file reproduces the
	// record, nested token included, and re-arms the client token.
	client.ClearToken()
	reopened, err := Open(client, logging.Discard(), path)
	require.NoError(t, err)

	restored := reopened.Identity()
	require.NotNil(t, restored)
	assert.Equal(t, *identity, *restored)
	assert.Equal(t, identity.Token, client.Token())
}

func TestLogoutClearsEverything(t *testing.T) {
	backend, client := newTestBackend(t)
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := Open(client, logging.Discard(), path)
	require.NoError(t, err)

	require.NoError(t, store.SetIdentity(adminIdentity(backend)))
	require.Eventually(t, func() bool { return len(store.Users()) > 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, store.SetIdentity(nil))
	assert.Nil(t, store.Identity())
	assert.False(t, store.IsAdmin())
	assert.Empty(t, store.Users())
	assert.Empty(t, client.Token())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "credentials file is removed on logout")
}

func TestPersistFailureLeavesStateUnchanged(t *testing.T) {
	backend, client := newTestBackend(t)
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := Open(client, logging.Discard(), path)
	require.NoError(t, err)

	var notified int
	store.Subscribe(func(*model.User) { notified++ })

	// A directory squatting on the credentials path makes the save fail.
	require.NoError(t, os.Mkdir(path, 0o700))
	err = store.SetIdentity(adminIdentity(backend))
	require.Error(t, err)

	// Memory and disk stay in agreement: no identity, no token, no
	// roster fetch, no subscriber notification.
	assert.Nil(t, store.Identity())
	assert.False(t, store.IsAdmin())
	assert.Empty(t, client.Token())
	assert.Zero(t, notified)
	assert.Never(t, func() bool {
		return len(store.Users()) > 0
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestStaleRosterFetchDiscarded(t *testing.T) {
	// A /users response arriving after the identity changed must not
	// repopulate the roster.
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/users", func(w http.ResponseWriter, r *http.Request) {
		<-release
		json.NewEncoder(w).Encode([]model.User{{ID: "late@x.co"}})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	client := api.NewClient(ts.URL+"/v1", logging.Discard())
	store := openStore(t, client)

	require.NoError(t, store.SetIdentity(&model.User{ID: "a", Roles: []string{"Admin"}, Token: "t"}))
	require.NoError(t, store.SetIdentity(nil))
	close(release)

	assert.Never(t, func() bool {
		return len(store.Users()) > 0
	}, 300*time.Millisecond, 20*time.Millisecond)
}

func TestMutateRoster(t *testing.T) {
	backend, client := newTestBackend(t)
	store := openStore(t, client)
	require.NoError(t, store.SetIdentity(adminIdentity(backend)))
	require.Eventually(t, func() bool { return len(store.Users()) == 3 }, 2*time.Second, 10*time.Millisecond)

	store.MutateRoster(func(roster []model.User) []model.User {
		return append(roster, model.User{ID: "new@x.co"})
	})
	assert.Len(t, store.Users(), 4)

	store.MutateRoster(func(roster []model.User) []model.User {
		out := roster[:0]
		for _, u := range roster {
			if u.ID != "new@x.co" {
				out = append(out, u)
			}
		}
		return out
	})
	_, ok := store.UserByID("new@x.co")
	assert.False(t, ok)
}

func TestSubscribeNotifiesOnTransitions(t *testing.T) {
	backend, client := newTestBackend(t)
	store := openStore(t, client)

	var seen []*model.User
	cancel := store.Subscribe(func(u *model.User) { seen = append(seen, u) })

	identity := memberIdentity(backend)
	require.NoError(t, store.SetIdentity(identity))
	require.NoError(t, store.SetIdentity(nil))
	require.Len(t, seen, 2)
	assert.Equal(t, identity.ID, seen[0].ID)
	assert.Nil(t, seen[1])

	cancel()
	require.NoError(t, store.SetIdentity(identity))
	assert.Len(t, seen, 2, "cancelled subscriber is not called again")
}

func TestUnauthorizedResponseForcesSignOut(t *testing.T) {
	backend, client := newTestBackend(t)
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := Open(client, logging.Discard(), path)
	require.NoError(t, err)

	// Wire the transport's session-expiry hook to the store, the way the
	// CLI root command does.
	client.SetSessionExpiredFunc(func() {
		if err := store.SetIdentity(nil); err != nil {
			t.Errorf("discard session: %v", err)
		}
	})

	identity := memberIdentity(backend)
	identity.Token = "forged-token"
	require.NoError(t, store.SetIdentity(identity))

	_, err = client.Get(context.Background(), "/reports?user_id=carol@x.co")
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	assert.Nil(t, store.Identity(), "unauthorized response signs the session out")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadVersionBestEffort(t *testing.T) {
	_, client := newTestBackend(t)
	store := openStore(t, client)

	assert.Nil(t, store.Version())
	store.LoadVersion(context.Background())
	v := store.Version()
	require.NotNil(t, v)
	assert.Equal(t, "1.4.2", v.Version)
}

func TestLoadVersionFailureLeavesVersionAbsent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)

	client := api.NewClient(ts.URL+"/v1", logging.Discard())
	store := openStore(t, client)

	store.LoadVersion(context.Background())
	assert.Nil(t, store.Version())
}
