package config

import (
	"os"
	"path/filepath"

	"github.com/vitalsense/mlserve/internal/envvar"
)

// Config holds the main configuration for the service.
type Config struct {
	Version  string              `json:"version"           yaml:"version"`
	Storage  StorageConfig       `json:"storage,omitempty" yaml:"storage,omitempty"`
	Server   ServerConfig        `json:"server,omitempty"  yaml:"server,omitempty"`
	Features map[string][]string `json:"features"          yaml:"features"`
}

// StorageConfig holds the durable model storage locations.
type StorageConfig struct {
	BaseDir   string `json:"base_dir,omitempty"   yaml:"base_dir,omitempty"`
	BackupDir string `json:"backup_dir,omitempty" yaml:"backup_dir,omitempty"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	HTTPPort int `json:"http_port,omitempty" yaml:"http_port,omitempty"`
}

// BasePath resolves the model storage root. The environment variable wins
// over the config file, which wins over the platform default.
func (c *Config) BasePath() string {
	if p := os.Getenv(envvar.MLServeModelsPath); p != "" {
		return p
	}
	if c.Storage.BaseDir != "" {
		return c.Storage.BaseDir
	}
	return DefaultModelsPath()
}

// BackupPath resolves the backup root, defaulting to a backups directory
// under the model storage root.
func (c *Config) BackupPath() string {
	if c.Storage.BackupDir != "" {
		return c.Storage.BackupDir
	}
	return filepath.Join(c.BasePath(), "backups")
}
