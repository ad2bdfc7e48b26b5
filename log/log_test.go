package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("VOXD_LOG_PATH", "/tmp/voxd-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/voxd-env-log" {
		t.Errorf("got %q, want /tmp/voxd-env-log", got)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Info("hello from test")
	TranscriptionText("the quick brown fox")
	Close()

	diag, err := os.ReadFile(filepath.Join(tmp, "daemon_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(diag), "hello from test") {
		t.Errorf("diagnostic log missing entry: %q", diag)
	}

	tr, err := os.ReadFile(filepath.Join(tmp, "transcribe_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(tr), "the quick brown fox") {
		t.Errorf("transcript log missing entry: %q", tr)
	}
}

func TestLoggingBeforeInitIsNoop(t *testing.T) {
	setupLogDir(t)
	// Must not panic with no open files.
	Info("dropped")
	Warnf("dropped %d", 1)
	SessionStart(1)
}
