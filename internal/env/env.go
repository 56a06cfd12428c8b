package env

import (
	"os"
	"strings"

	"github.com/vitalsense/mlserve/internal/envvar"
)

// Environment is the runtime environment the service runs in.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// FromEnv reads the runtime environment from the process environment.
// Anything other than production resolves to development.
func FromEnv() Environment {
	switch strings.ToLower(os.Getenv(envvar.MLServeEnv)) {
	case string(Production), "prod":
		return Production
	default:
		return Development
	}
}
