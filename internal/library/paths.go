package library

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wev.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wev")
}

// Dir returns the library-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "libraries", name)
}

// SocketPath returns the UDS socket path for a library.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the lock file path for a library.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// DBPath returns the library-owned wev.db path.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "wev.db")
}

// LogDir returns the log directory for a library.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "wevd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the library directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
