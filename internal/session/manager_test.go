package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucial707/pickem/internal/apiclient"
	"github.com/crucial707/pickem/internal/models"
)

// fakeAuthBackend accepts alice/secret (first login when firstLogin is set)
// and recognizes exactly one valid token.
type fakeAuthBackend struct {
	firstLogin   bool
	logoutCalls  atomic.Int32
	passwordSets atomic.Int32

	mu         sync.Mutex
	validToken string
}

func (b *fakeAuthBackend) token() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.validToken
}

func (b *fakeAuthBackend) rotate(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validToken = token
}

func (b *fakeAuthBackend) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		valid := b.token()
		authorized := r.Header.Get("Authorization") == "Bearer "+valid
		switch r.URL.Path {
		case "/api/login":
			var in map[string]string
			json.NewDecoder(r.Body).Decode(&in)
			if in["username"] != "alice" || in["password"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "Invalid username or password"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"token":       valid,
				"user":        models.User{ID: 1, Username: "alice"},
				"first_login": b.firstLogin,
			})
		case "/api/verify-token":
			if !authorized {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"user": models.User{ID: 1, Username: "alice", IsAdmin: true}})
		case "/api/change-password":
			if !authorized {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			b.passwordSets.Add(1)
			json.NewEncoder(w).Encode(map[string]bool{"success": true})
		case "/api/logout":
			b.logoutCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]bool{"success": true})
		case "/api/games":
			if !authorized {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"games": []models.Game{}})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}
}

func newManager(t *testing.T, backend *fakeAuthBackend, store Store) *Manager {
	t.Helper()
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	base, err := apiclient.New(apiclient.Config{BaseURL: srv.URL + "/api", HTTPClient: srv.Client()})
	require.NoError(t, err)
	return NewManager(base, Options{Store: store, NotifyLogout: true})
}

func TestLogin_DirectlyAuthenticated(t *testing.T) {
	store := &MemoryStore{}
	m := newManager(t, &fakeAuthBackend{validToken: "tok"}, store)

	res := m.Login(context.Background(), "alice", "secret")

	assert.True(t, res.Success)
	assert.False(t, res.FirstLogin)
	assert.Equal(t, Authenticated, m.State())
	user, ok := m.User()
	require.True(t, ok)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, m.Client().Authenticated())

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", stored.Token)
	assert.False(t, stored.PasswordChangeRequired)
}

func TestLogin_FirstLoginRequiresPasswordChange(t *testing.T) {
	backend := &fakeAuthBackend{validToken: "tok", firstLogin: true}
	m := newManager(t, backend, &MemoryStore{})

	res := m.Login(context.Background(), "alice", "secret")
	require.True(t, res.Success)
	assert.True(t, res.FirstLogin)
	assert.Equal(t, PasswordChangeRequired, m.State())

	res = m.ChangePassword(context.Background(), "secret", "n3w")
	assert.True(t, res.Success)
	assert.Equal(t, Authenticated, m.State())
	assert.Equal(t, int32(1), backend.passwordSets.Load())
}

func TestLogin_FailureCarriesBackendMessage(t *testing.T) {
	m := newManager(t, &fakeAuthBackend{validToken: "tok"}, &MemoryStore{})

	res := m.Login(context.Background(), "alice", "wrong")

	assert.False(t, res.Success)
	assert.Equal(t, "Invalid username or password", res.Message)
	assert.Equal(t, Unauthenticated, m.State())
}

func TestLogin_TransportFailureDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	base, err := apiclient.New(apiclient.Config{BaseURL: url + "/api"})
	require.NoError(t, err)
	m := NewManager(base, Options{})

	res := m.Login(context.Background(), "alice", "secret")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "cannot reach server")
}

func TestLogin_RequiresBothFields(t *testing.T) {
	m := newManager(t, &fakeAuthBackend{validToken: "tok"}, &MemoryStore{})
	res := m.Login(context.Background(), "alice", "")
	assert.False(t, res.Success)
	assert.Equal(t, "Username and password are required", res.Message)
}

func TestLogout_Idempotent(t *testing.T) {
	backend := &fakeAuthBackend{validToken: "tok"}
	store := &MemoryStore{}
	m := newManager(t, backend, store)
	require.True(t, m.Login(context.Background(), "alice", "secret").Success)

	m.Logout(context.Background())
	m.Logout(context.Background())

	assert.Equal(t, Unauthenticated, m.State())
	assert.False(t, m.Client().Authenticated())
	_, ok := m.User()
	assert.False(t, ok)
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Equal(t, int32(1), backend.logoutCalls.Load(), "only the first logout has a credential to report")
}

func TestStart_VerifiesStoredCredential(t *testing.T) {
	store := &MemoryStore{}
	require.NoError(t, store.Save(&Stored{Token: "tok"}))
	m := newManager(t, &fakeAuthBackend{validToken: "tok"}, store)

	require.NoError(t, m.Start(context.Background()))

	assert.Equal(t, Authenticated, m.State())
	assert.True(t, m.IsAdmin())
}

func TestStart_RejectedCredentialIsDiscarded(t *testing.T) {
	store := &MemoryStore{}
	require.NoError(t, store.Save(&Stored{Token: "revoked"}))
	m := newManager(t, &fakeAuthBackend{validToken: "tok"}, store)

	require.NoError(t, m.Start(context.Background()))

	assert.Equal(t, Unauthenticated, m.State())
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestStart_NoCredentialIsNoop(t *testing.T) {
	m := newManager(t, &fakeAuthBackend{validToken: "tok"}, &MemoryStore{})
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, Unauthenticated, m.State())
}

func TestStart_TransportFailureKeepsStoredCredential(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store := &MemoryStore{}
	require.NoError(t, store.Save(&Stored{Token: "tok"}))
	base, err := apiclient.New(apiclient.Config{BaseURL: url + "/api"})
	require.NoError(t, err)
	m := NewManager(base, Options{Store: store})

	err = m.Start(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Unauthenticated, m.State())
	stored, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, "tok", stored.Token)
}

func TestStart_ExpiredJWTDiscardedLocally(t *testing.T) {
	now := time.Date(2025, 9, 7, 12, 0, 0, 0, time.UTC)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     now.Add(-time.Hour).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	store := &MemoryStore{}
	require.NoError(t, store.Save(&Stored{Token: expired}))
	base, err := apiclient.New(apiclient.Config{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)
	m := NewManager(base, Options{Store: store, Now: func() time.Time { return now }})

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, Unauthenticated, m.State())
	assert.Zero(t, calls.Load(), "expired token should not reach the backend")
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestUnauthorizedResponsePurgesSession(t *testing.T) {
	backend := &fakeAuthBackend{validToken: "tok"}
	store := &MemoryStore{}
	m := newManager(t, backend, store)
	require.True(t, m.Login(context.Background(), "alice", "secret").Success)

	client := m.Client()
	backend.rotate("rotated")
	_, err := client.Games(context.Background(), 1)

	assert.True(t, apiclient.IsUnauthorized(err))
	assert.Equal(t, Unauthenticated, m.State())
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestStaleUnauthorizedDoesNotPurgeNewerSession(t *testing.T) {
	backend := &fakeAuthBackend{validToken: "old"}
	m := newManager(t, backend, &MemoryStore{})
	require.True(t, m.Login(context.Background(), "alice", "secret").Success)
	oldClient := m.Client()

	backend.rotate("new")
	require.True(t, m.Login(context.Background(), "alice", "secret").Success)

	_, err := oldClient.Games(context.Background(), 1)
	assert.True(t, apiclient.IsUnauthorized(err))
	assert.Equal(t, Authenticated, m.State(), "a 401 for a replaced credential must not log out")
}

func TestChangePassword_RequiresSession(t *testing.T) {
	m := newManager(t, &fakeAuthBackend{validToken: "tok"}, &MemoryStore{})
	res := m.ChangePassword(context.Background(), "a", "b")
	assert.False(t, res.Success)
	assert.Equal(t, "Not authenticated", res.Message)
}

func TestConfirmPassword(t *testing.T) {
	assert.NoError(t, ConfirmPassword("abc", "abc"))
	assert.ErrorIs(t, ConfirmPassword("abc", "abd"), ErrPasswordMismatch)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoCredential)

	in := &Stored{Token: "tok", User: &models.User{ID: 3, Username: "carol"}, PasswordChangeRequired: true}
	require.NoError(t, store.Save(in))

	out, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", out.Token)
	assert.Equal(t, "carol", out.User.Username)
	assert.True(t, out.PasswordChangeRequired)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "verifying", Verifying.String())
	assert.Equal(t, "State(9)", State(9).String())
}
