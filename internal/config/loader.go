package config

import (
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"

	"github.com/vitalsense/mlserve/internal/model"
)

// LoadAndValidate loads the YAML config and validates it against the JSON
// schema before unmarshaling into the typed Config.
func LoadAndValidate(path, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %v", model.ErrConfiguration, err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid YAML: %v", model.ErrConfiguration, err)
	}

	schema, err := jsonschema.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("%w: compile schema: %v", model.ErrConfiguration, err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: config validation failed: %v", model.ErrConfiguration, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %v", model.ErrConfiguration, err)
	}

	return &config, nil
}
