package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crucial707/pickem/cmd/cli/root"
	"github.com/crucial707/pickem/internal/models"
	"github.com/crucial707/pickem/internal/session"
)

type authBackend struct {
	firstLogin  bool
	newPassword string
	logouts     int
}

func (b *authBackend) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in["username"] != "alice" || in["password"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "Invalid username or password"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"token":       "tok",
				"user":        models.User{ID: 1, Username: "alice", IsAdmin: true},
				"first_login": b.firstLogin,
			})
		case "/api/verify-token":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"user": models.User{ID: 1, Username: "alice", IsAdmin: true}})
		case "/api/change-password":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in["current_password"] != "secret" {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "Current password is incorrect"})
				return
			}
			b.newPassword = in["new_password"]
			_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
		case "/api/logout":
			b.logouts++
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}
}

func setup(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	dir := t.TempDir()
	sessionFile := filepath.Join(dir, "session.json")
	t.Setenv("PICKEM_API_URL", srv.URL+"/api")
	t.Setenv("PICKEM_SESSION_FILE", sessionFile)
	t.Setenv("PICKEM_CONFIG", filepath.Join(dir, "missing.yaml"))
	return sessionFile
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := root.New()
	InitAuth(cmd)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLogin_StoresSession(t *testing.T) {
	srv := httptest.NewServer((&authBackend{}).handler(t))
	defer srv.Close()
	sessionFile := setup(t, srv)

	out, err := run(t, "secret\n", "login", "--username", "alice")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Logged in as alice") {
		t.Errorf("unexpected output: %s", out)
	}

	stored, err := session.NewFileStore(sessionFile).Load()
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if stored.Token != "tok" {
		t.Errorf("stored token: got %q", stored.Token)
	}
}

func TestLogin_PasswordFile(t *testing.T) {
	srv := httptest.NewServer((&authBackend{}).handler(t))
	defer srv.Close()
	setup(t, srv)

	pwFile := filepath.Join(t.TempDir(), "pw")
	if err := os.WriteFile(pwFile, []byte("secret\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "", "login", "-u", "alice", "--password-file", pwFile); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func TestLogin_WrongPasswordShowsBackendMessage(t *testing.T) {
	srv := httptest.NewServer((&authBackend{}).handler(t))
	defer srv.Close()
	sessionFile := setup(t, srv)

	_, err := run(t, "nope\n", "login", "--username", "alice")
	if err == nil || err.Error() != "Invalid username or password" {
		t.Fatalf("expected backend message, got %v", err)
	}
	if _, err := os.Stat(sessionFile); !os.IsNotExist(err) {
		t.Error("failed login must not write a session file")
	}
}

func TestLogin_FirstLoginChangesPassword(t *testing.T) {
	backend := &authBackend{firstLogin: true}
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()
	sessionFile := setup(t, srv)

	out, err := run(t, "alice\nsecret\nfresh-pw\nfresh-pw\n", "login")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "First login") || !strings.Contains(out, "Password changed") {
		t.Errorf("unexpected output: %s", out)
	}
	if backend.newPassword != "fresh-pw" {
		t.Errorf("new password: got %q", backend.newPassword)
	}

	stored, err := session.NewFileStore(sessionFile).Load()
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if stored.PasswordChangeRequired {
		t.Error("password change flag should be cleared")
	}
}

func TestLogin_FirstLoginMismatchKeepsChangePending(t *testing.T) {
	backend := &authBackend{firstLogin: true}
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()
	setup(t, srv)

	_, err := run(t, "secret\nfresh-pw\nother\n", "login", "-u", "alice")
	if !errors.Is(err, session.ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if backend.newPassword != "" {
		t.Error("mismatched confirmation must not reach the backend")
	}

	out, err := run(t, "", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, "password_change_required") {
		t.Errorf("expected pending password change, got: %s", out)
	}
}

func TestWhoami_JSON(t *testing.T) {
	srv := httptest.NewServer((&authBackend{}).handler(t))
	defer srv.Close()
	setup(t, srv)

	if _, err := run(t, "secret\n", "login", "-u", "alice"); err != nil {
		t.Fatalf("login: %v", err)
	}
	out, err := run(t, "", "whoami", "--json")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, `"username": "alice"`) || !strings.Contains(out, `"state": "authenticated"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestWhoami_NotLoggedIn(t *testing.T) {
	srv := httptest.NewServer((&authBackend{}).handler(t))
	defer srv.Close()
	setup(t, srv)

	if _, err := run(t, "", "whoami"); !errors.Is(err, root.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
}

func TestLogout_RemovesSessionAndIsRepeatable(t *testing.T) {
	backend := &authBackend{}
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()
	sessionFile := setup(t, srv)

	if _, err := run(t, "secret\n", "login", "-u", "alice"); err != nil {
		t.Fatalf("login: %v", err)
	}
	for i := 0; i < 2; i++ {
		out, err := run(t, "", "logout")
		if err != nil {
			t.Fatalf("logout #%d: %v", i+1, err)
		}
		if !strings.Contains(out, "Logged out") {
			t.Errorf("unexpected output: %s", out)
		}
	}
	if _, err := os.Stat(sessionFile); !os.IsNotExist(err) {
		t.Error("session file should be removed")
	}
	if backend.logouts != 1 {
		t.Errorf("logout notifications: got %d, want 1", backend.logouts)
	}
}

func TestPasswd_WrongCurrentPassword(t *testing.T) {
	srv := httptest.NewServer((&authBackend{}).handler(t))
	defer srv.Close()
	setup(t, srv)

	if _, err := run(t, "secret\n", "login", "-u", "alice"); err != nil {
		t.Fatalf("login: %v", err)
	}
	_, err := run(t, "wrong\nnew-pw\nnew-pw\n", "passwd")
	if err == nil || err.Error() != "Current password is incorrect" {
		t.Fatalf("expected backend message, got %v", err)
	}
}
