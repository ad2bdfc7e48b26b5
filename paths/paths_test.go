package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSocketDirUsesRuntimeDir(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", tmp)
	dir, err := SocketDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != tmp {
		t.Errorf("got %q, want %q", dir, tmp)
	}
}

func TestSocketDirFallback(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("HOME", t.TempDir())
	dir, err := SocketDir()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(dir, filepath.Join(".local", "share", "voxd")) {
		t.Errorf("unexpected fallback dir %q", dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("dir mode = %o, want 0700", perm)
	}
}

func TestSocketPaths(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	cmd, err := CommandSocket()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(cmd, "voxd.sock") {
		t.Errorf("command socket %q", cmd)
	}
	bc, err := BroadcastSocket()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(bc, "voxd_events.sock") {
		t.Errorf("broadcast socket %q", bc)
	}
}

func TestSecure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.sock")
	if err := os.WriteFile(path, nil, 0666); err != nil {
		t.Fatal(err)
	}
	if err := Secure(path); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("mode = %o, want 0600", perm)
	}
}
