package admin

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crucial707/pickem/cmd/cli/root"
	"github.com/crucial707/pickem/internal/models"
	"github.com/crucial707/pickem/internal/session"
)

func setup(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/verify-token" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"user": models.User{ID: 1, Username: "alice", IsAdmin: true}})
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	sessionFile := filepath.Join(dir, "session.json")
	t.Setenv("PICKEM_API_URL", srv.URL+"/api")
	t.Setenv("PICKEM_SESSION_FILE", sessionFile)
	t.Setenv("PICKEM_CONFIG", filepath.Join(dir, "missing.yaml"))
	if err := session.NewFileStore(sessionFile).Save(&session.Stored{Token: "tok"}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := root.New()
	InitAdmin(cmd)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBackup_WritesSnapshot(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/admin/backup" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("SQLite format 3\x00"))
	})

	target := filepath.Join(t.TempDir(), "snap.db")
	out, err := run(t, "admin", "backup", "--out", target)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(data) != "SQLite format 3\x00" {
		t.Errorf("backup content: got %q", data)
	}
	if !strings.Contains(out, "16 bytes") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestBackup_FailureLeavesNoFile(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Backup failed"})
	})

	dir := t.TempDir()
	target := filepath.Join(dir, "snap.db")
	_, err := run(t, "admin", "backup", "--out", target)
	if err == nil || err.Error() != "Backup failed" {
		t.Fatalf("expected backend message, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no files, found %d", len(entries))
	}
}

func TestRestore_UploadsMultipart(t *testing.T) {
	var got string
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/admin/restore" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		f, hdr, err := r.FormFile("backup")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		got = hdr.Filename + ":" + string(b)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Database restored successfully"})
	})

	src := filepath.Join(t.TempDir(), "snap.db")
	if err := os.WriteFile(src, []byte("payload"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "admin", "restore", "--file", src); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got != "snap.db:payload" {
		t.Errorf("uploaded: got %q", got)
	}
}

func TestUpdateGames_Once(t *testing.T) {
	calls := 0
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/admin/update-games" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		calls++
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Games updated successfully"})
	})

	out, err := run(t, "admin", "update-games")
	if err != nil {
		t.Fatalf("update-games: %v", err)
	}
	if calls != 1 || !strings.Contains(out, "Game data updated") {
		t.Errorf("calls=%d output=%s", calls, out)
	}
}

func TestUpdateGames_ListenRequiresCron(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request expected, got %s", r.URL.Path)
	})
	if _, err := run(t, "admin", "update-games", "--listen", ":0"); err == nil {
		t.Fatal("expected error for --listen without --cron")
	}
}

func TestUpdateGames_InvalidCron(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request expected, got %s", r.URL.Path)
	})
	_, err := run(t, "admin", "update-games", "--cron", "not a schedule")
	if err == nil || !strings.Contains(err.Error(), "invalid cron expression") {
		t.Fatalf("expected cron error, got %v", err)
	}
}

func TestDefaultBackupName(t *testing.T) {
	got := defaultBackupName(time.Date(2025, 10, 5, 14, 30, 0, 0, time.UTC))
	if got != "nfl_pickems_backup_20251005T143000Z.db" {
		t.Errorf("got %q", got)
	}
}
