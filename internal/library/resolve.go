package library

import (
	"os"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/config"
)

const DefaultLibraryName = "main"

// Resolve determines the active library name using precedence:
// 1. flagOverride (--library flag)
// 2. WEV_LIBRARY environment variable
// 3. config.toml default_library
// 4. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if env := os.Getenv("WEV_LIBRARY"); env != "" {
		return env
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultLibrary != "" {
		return cfg.DefaultLibrary
	}
	return DefaultLibraryName
}
