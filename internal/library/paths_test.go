package library

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".wev", "libraries", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestSocketPath(t *testing.T) {
	got := SocketPath("test")
	if !strings.HasSuffix(got, filepath.Join("libraries", "test", "daemon.sock")) {
		t.Errorf("SocketPath(test) = %q, want suffix libraries/test/daemon.sock", got)
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("test")
	if !strings.HasSuffix(got, filepath.Join("libraries", "test", "LOCK")) {
		t.Errorf("LockPath(test) = %q, want suffix libraries/test/LOCK", got)
	}
}

func TestDBPath(t *testing.T) {
	got := DBPath("test")
	if !strings.HasSuffix(got, filepath.Join("libraries", "test", "wev.db")) {
		t.Errorf("DBPath(test) = %q, want suffix libraries/test/wev.db", got)
	}
}

func TestResolvePrecedence(t *testing.T) {
	t.Setenv("WEV_LIBRARY", "")
	if got := Resolve("flagged"); got != "flagged" {
		t.Errorf("Resolve(flagged) = %q, want flagged", got)
	}

	t.Setenv("WEV_LIBRARY", "from-env")
	if got := Resolve(""); got != "from-env" {
		t.Errorf("Resolve with env = %q, want from-env", got)
	}
	if got := Resolve("flagged"); got != "flagged" {
		t.Errorf("flag should beat env, got %q", got)
	}
}
