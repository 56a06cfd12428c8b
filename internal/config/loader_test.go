package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsense/mlserve/internal/envvar"
	"github.com/vitalsense/mlserve/internal/model"
)

const testSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "features"],
  "properties": {
    "version": { "type": "string" },
    "storage": {
      "type": "object",
      "properties": {
        "base_dir": { "type": "string" },
        "backup_dir": { "type": "string" }
      }
    },
    "server": {
      "type": "object",
      "properties": {
        "http_port": { "type": "integer", "minimum": 1, "maximum": 65535 }
      }
    },
    "features": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": { "type": "string" },
        "minItems": 1
      }
    }
  }
}`

func writeTestFiles(t *testing.T, configYAML string) (configPath, schemaPath string) {
	t.Helper()

	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.yaml")
	schemaPath = filepath.Join(dir, "mlserve.v1.schema.json")
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o644))
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0o644))
	return configPath, schemaPath
}

func TestLoadAndValidate_ValidConfig(t *testing.T) {
	configPath, schemaPath := writeTestFiles(t, `
version: "1"
storage:
  base_dir: /var/lib/mlserve/models
server:
  http_port: 9000
features:
  risk_score:
    - age
    - bmi
`)

	cfg, err := LoadAndValidate(configPath, schemaPath)
	require.NoError(t, err)
	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "/var/lib/mlserve/models", cfg.Storage.BaseDir)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"age", "bmi"}, cfg.Features["risk_score"])
}

func TestLoadAndValidate_MissingRequiredField(t *testing.T) {
	configPath, schemaPath := writeTestFiles(t, `
version: "1"
`)

	_, err := LoadAndValidate(configPath, schemaPath)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestLoadAndValidate_InvalidYAML(t *testing.T) {
	configPath, schemaPath := writeTestFiles(t, "version: [unclosed")

	_, err := LoadAndValidate(configPath, schemaPath)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestLoadAndValidate_MissingConfigFile(t *testing.T) {
	_, schemaPath := writeTestFiles(t, `version: "1"`)

	_, err := LoadAndValidate(filepath.Join(t.TempDir(), "absent.yaml"), schemaPath)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestConfig_BasePathPrecedence(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, DefaultModelsPath(), cfg.BasePath())

	cfg.Storage.BaseDir = "/data/models"
	assert.Equal(t, "/data/models", cfg.BasePath())

	t.Setenv(envvar.MLServeModelsPath, "/env/models")
	assert.Equal(t, "/env/models", cfg.BasePath())
}

func TestConfig_BackupPathDefault(t *testing.T) {
	cfg := &Config{}
	cfg.Storage.BaseDir = "/data/models"
	assert.Equal(t, filepath.Join("/data/models", "backups"), cfg.BackupPath())

	cfg.Storage.BackupDir = "/safe/backups"
	assert.Equal(t, "/safe/backups", cfg.BackupPath())
}
