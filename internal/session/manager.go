// Package session owns the authenticated identity of the running client: it
// logs in and out, persists the credential, and hands out API clients bound
// to whichever credential is current.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crucial707/pickem/internal/apiclient"
	"github.com/crucial707/pickem/internal/models"
)

// State is the authentication state of a Manager.
type State int

const (
	Unauthenticated State = iota
	Verifying
	Authenticated
	PasswordChangeRequired
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Verifying:
		return "verifying"
	case Authenticated:
		return "authenticated"
	case PasswordChangeRequired:
		return "password_change_required"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrPasswordMismatch is returned by ConfirmPassword.
var ErrPasswordMismatch = errors.New("passwords do not match")

// ConfirmPassword checks the new/confirm pair a caller collected before it
// calls ChangePassword.
func ConfirmPassword(newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	return nil
}

// Result is the outcome of Login and ChangePassword. On failure Message is
// suitable for showing to the user.
type Result struct {
	Success    bool
	FirstLogin bool
	Message    string
}

type Options struct {
	// Store persists the credential. If nil, a MemoryStore is used.
	Store Store
	// Logger is used for state transitions. If nil, slog.Default() is used.
	Logger *slog.Logger
	// NotifyLogout sends POST /logout after the local clear.
	NotifyLogout bool
	// Now is the clock used for credential expiry. If nil, time.Now is used.
	Now func() time.Time
}

// Manager is the single writer of the credential and user. All methods are
// safe for concurrent use.
type Manager struct {
	base         *apiclient.Client
	store        Store
	logger       *slog.Logger
	notifyLogout bool
	now          func() time.Time

	mu                     sync.RWMutex
	state                  State
	token                  string
	user                   *models.User
	passwordChangeRequired bool
	client                 *apiclient.Client
}

// NewManager returns an Unauthenticated manager. base must be an
// unauthenticated client; the manager derives credentialed clients from it.
func NewManager(base *apiclient.Client, opts Options) *Manager {
	store := opts.Store
	if store == nil {
		store = &MemoryStore{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	base = base.WithToken("").WithUnauthorizedHook(nil)
	return &Manager{
		base:         base,
		store:        store,
		logger:       logger,
		notifyLogout: opts.NotifyLogout,
		now:          now,
		state:        Unauthenticated,
		client:       base,
	}
}

// Start resumes a persisted session. With no stored credential it is a no-op.
// A credential the backend rejects is discarded. When the backend cannot be
// reached the manager stays Unauthenticated, the stored credential is kept
// for the next run, and the transport error is returned.
func (m *Manager) Start(ctx context.Context) error {
	stored, err := m.store.Load()
	if errors.Is(err, ErrNoCredential) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: load credential: %w", err)
	}

	if tokenExpired(stored.Token, m.now()) {
		m.logger.Info("stored credential expired, discarding")
		m.clearStore()
		return nil
	}

	m.mu.Lock()
	m.setCredentialLocked(stored.Token, stored.User, Verifying)
	m.passwordChangeRequired = stored.PasswordChangeRequired
	client := m.client
	m.mu.Unlock()

	user, err := client.VerifyToken(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != stored.Token {
		// The 401 hook or a concurrent Logout/Login already moved on.
		return nil
	}
	if err != nil {
		var transportErr *apiclient.TransportError
		if errors.As(err, &transportErr) {
			m.clearLocked()
			return fmt.Errorf("session: verify credential: %w", err)
		}
		m.logger.Info("stored credential rejected", "error", err)
		m.clearLocked()
		m.clearStore()
		return nil
	}

	next := Authenticated
	if m.passwordChangeRequired {
		next = PasswordChangeRequired
	}
	m.user = user
	m.transitionLocked(next)
	m.saveLocked()
	return nil
}

// Login authenticates and persists the credential. It never returns an error;
// every failure is reported in Result.Message.
func (m *Manager) Login(ctx context.Context, username, password string) Result {
	if username == "" || password == "" {
		return Result{Message: "Username and password are required"}
	}

	resp, err := m.base.Login(ctx, username, password)
	if err != nil {
		m.logger.Info("login failed", "username", username, "error", err)
		return Result{Message: apiclient.Message(err, "Login failed")}
	}

	next := Authenticated
	if resp.FirstLogin {
		next = PasswordChangeRequired
	}
	user := resp.User

	m.mu.Lock()
	m.setCredentialLocked(resp.Token, &user, Authenticated)
	m.passwordChangeRequired = resp.FirstLogin
	if next != Authenticated {
		m.transitionLocked(next)
	}
	m.saveLocked()
	m.mu.Unlock()

	return Result{Success: true, FirstLogin: resp.FirstLogin}
}

// Logout clears the local session. It is idempotent. When configured, the
// backend is told afterwards; that call's outcome does not matter.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	token := m.token
	client := m.client
	m.clearLocked()
	m.mu.Unlock()

	m.clearStore()

	if token != "" && m.notifyLogout {
		if err := client.Logout(ctx); err != nil {
			m.logger.Debug("logout notification failed", "error", err)
		}
	}
}

// ChangePassword changes the current user's password. Checking that the new
// password was typed twice identically is the caller's job (ConfirmPassword).
func (m *Manager) ChangePassword(ctx context.Context, currentPassword, newPassword string) Result {
	m.mu.RLock()
	state := m.state
	token := m.token
	client := m.client
	m.mu.RUnlock()

	if state != Authenticated && state != PasswordChangeRequired {
		return Result{Message: "Not authenticated"}
	}
	if newPassword == "" {
		return Result{Message: "New password is required"}
	}

	if err := client.ChangePassword(ctx, currentPassword, newPassword); err != nil {
		return Result{Message: apiclient.Message(err, "Password change failed")}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == token && m.state == PasswordChangeRequired {
		m.passwordChangeRequired = false
		m.transitionLocked(Authenticated)
		m.saveLocked()
	}
	return Result{Success: true}
}

// Client returns an API client bound to the current credential. The returned
// client is not updated by later logins; fetch a new one after a change.
func (m *Manager) Client() *apiclient.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns a copy of the current user, if any.
func (m *Manager) User() (models.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return models.User{}, false
	}
	return *m.user, true
}

// IsAdmin reports whether the current user is an administrator.
func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.user.IsAdmin
}

// expire is the 401 hook of every issued client. It only purges when token is
// still the current credential, so a late response for an old credential
// cannot log out a newer session.
func (m *Manager) expire(token string) {
	m.mu.Lock()
	if m.token != token {
		m.mu.Unlock()
		return
	}
	m.clearLocked()
	m.mu.Unlock()

	m.logger.Info("credential rejected, session cleared")
	m.clearStore()
}

func (m *Manager) setCredentialLocked(token string, user *models.User, next State) {
	m.token = token
	m.user = user
	m.client = m.base.WithToken(token).WithUnauthorizedHook(m.expire)
	m.transitionLocked(next)
}

func (m *Manager) clearLocked() {
	m.token = ""
	m.user = nil
	m.passwordChangeRequired = false
	m.client = m.base
	m.transitionLocked(Unauthenticated)
}

func (m *Manager) transitionLocked(next State) {
	if m.state == next {
		return
	}
	m.logger.Debug("session state", "from", m.state.String(), "to", next.String())
	m.state = next
}

func (m *Manager) saveLocked() {
	err := m.store.Save(&Stored{
		Token:                  m.token,
		User:                   m.user,
		PasswordChangeRequired: m.passwordChangeRequired,
		SavedAt:                m.now().UTC(),
	})
	if err != nil {
		m.logger.Warn("could not persist credential", "error", err)
	}
}

func (m *Manager) clearStore() {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("could not remove stored credential", "error", err)
	}
}

// tokenExpired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens are never considered expired locally.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
