// Package paths resolves the daemon's runtime socket locations.
//
// Sockets live in XDG_RUNTIME_DIR when available (user-specific, mode
// 0700, cleaned on logout) with a fallback to ~/.local/share/voxd.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appDir = "voxd"

// SocketDir returns the directory socket files are created in,
// creating it with owner-only permissions if needed.
func SocketDir() (string, error) {
	if rt := os.Getenv("XDG_RUNTIME_DIR"); rt != "" {
		if _, err := os.Stat(rt); err == nil {
			return rt, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".local", "share", appDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating socket directory: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(dir, 0700); err != nil {
			return "", fmt.Errorf("securing socket directory: %w", err)
		}
	}
	return dir, nil
}

// CommandSocket returns the path of the request/response command socket.
func CommandSocket() (string, error) {
	dir, err := SocketDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "voxd.sock"), nil
}

// BroadcastSocket returns the path of the event broadcast socket.
func BroadcastSocket() (string, error) {
	dir, err := SocketDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "voxd_events.sock"), nil
}

// Secure restricts a bound socket file to owner read/write (0600).
func Secure(socketPath string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if _, err := os.Stat(socketPath); err != nil {
		return err
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		return fmt.Errorf("securing socket: %w", err)
	}
	return nil
}
