package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultHTTPPort is the port the HTTP server binds when neither the config
// file nor the environment overrides it.
const DefaultHTTPPort = 8000

// DefaultConfigPath returns the default path for the mlserve config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mlserve", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "mlserve")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "mlserve")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "mlserve")
		}
		return filepath.Join(home, ".config", "mlserve")
	}
}

// DefaultModelsPath returns the default path for the mlserve models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mlserve", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "mlserve", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "mlserve", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "mlserve", "models")
		}
		return filepath.Join(home, ".cache", "mlserve", "models")
	}
}
