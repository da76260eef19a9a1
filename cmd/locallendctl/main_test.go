package main

import (
	"bytes"
	"errors"
	"io/fs"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/erazemk/locallend/internal/api"
	"github.com/erazemk/locallend/internal/db"
)

type ctl struct {
	t       *testing.T
	server  string
	session string
}

func newCtl(t *testing.T) *ctl {
	t.Helper()
	database := db.NewSeededTestDB(t)
	srv := httptest.NewServer(api.NewRouter(database, "test-secret", api.Config{}))
	t.Cleanup(srv.Close)
	return &ctl{t: t, server: srv.URL, session: filepath.Join(t.TempDir(), "session.json")}
}

func (c *ctl) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	full := append([]string{"-s", c.server, "-session", c.session}, args...)
	code := run(full, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (c *ctl) mustRun(args ...string) string {
	c.t.Helper()
	code, out, errOut := c.run(args...)
	if code != 0 {
		c.t.Fatalf("%v: exit %d, stderr: %s", args, code, errOut)
	}
	return out
}

func TestCommandFlow(t *testing.T) {
	c := newCtl(t)

	out := c.mustRun("register", "-u", "owner", "-n", "Owner", "-e", "owner@example.com", "-p", "password123")
	if !strings.Contains(out, "logged in as owner") {
		t.Errorf("unexpected register output: %q", out)
	}
	if _, err := os.Stat(c.session); err != nil {
		t.Fatalf("session file not written: %v", err)
	}

	out = c.mustRun("categories", "-search", "tool")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "Tools") {
		t.Fatalf("expected one Tools row, got %q", out)
	}
	toolsID := strings.Fields(lines[1])[0]

	out = c.mustRun("item-add", "-name", "Drill", "-category", toolsID, "-deposit", "15")
	if !strings.Contains(out, `"name": "Drill"`) {
		t.Errorf("unexpected item-add output: %q", out)
	}

	out = c.mustRun("items", "-q", "drill")
	if !strings.Contains(out, "Drill") || !strings.Contains(out, "1 item(s)") {
		t.Errorf("unexpected items output: %q", out)
	}

	start := time.Now().AddDate(0, 0, 2).Format("2006-01-02")
	end := time.Now().AddDate(0, 0, 4).Format("2006-01-02")
	code, _, errOut := c.run("book", "-start", start, "-end", end, "-accept-terms", "1")
	if code != 1 || !strings.Contains(errOut, "cannot book your own item") {
		t.Errorf("expected own-item refusal, got exit %d: %s", code, errOut)
	}

	c.mustRun("logout")
	if _, err := os.Stat(c.session); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("session file should be removed after logout, stat: %v", err)
	}

	code, _, errOut = c.run("me")
	if code != 1 || !strings.Contains(errOut, "error:") {
		t.Errorf("expected me to fail when logged out, got exit %d: %s", code, errOut)
	}

	c.mustRun("login", "-p", "password123", "owner@example.com")
	out = c.mustRun("me")
	if !strings.Contains(out, `"username": "owner"`) {
		t.Errorf("unexpected me output: %q", out)
	}
}

func TestUsageErrors(t *testing.T) {
	c := newCtl(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"bogus"}},
		{"missing id", []string{"item"}},
		{"bad id", []string{"booking", "abc"}},
		{"bad date", []string{"book", "-start", "tomorrow", "-end", "2030-01-02", "1"}},
		{"ratings target", []string{"ratings"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, _ := c.run(tt.args...); code != 2 {
				t.Errorf("expected exit 2, got %d", code)
			}
		})
	}
}

func TestExpiredSessionIsCleared(t *testing.T) {
	c := newCtl(t)
	if err := os.WriteFile(c.session, []byte(`{"token":"stale","user":{"id":1,"username":"ghost"}}`), 0600); err != nil {
		t.Fatal(err)
	}

	code, _, errOut := c.run("me")
	if code != 1 || !strings.Contains(errOut, "Session expired") {
		t.Errorf("expected expired session, got exit %d: %s", code, errOut)
	}
	if _, err := os.Stat(c.session); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("stale session file should be removed, stat: %v", err)
	}
}
