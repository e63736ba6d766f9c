package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	yaml "go.yaml.in/yaml/v2"
)

// LoadConfig loads a session configuration from a YAML or JSON file.
// If path is empty, it attempts LIVEBRIDGE_CONFIG; if still empty,
// defaults are returned. The loaded config is not validated; callers
// validate after applying overrides.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("LIVEBRIDGE_CONFIG")
	}
	cfg := DefaultConfig()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	ext := filepath.Ext(path)
	if ext == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
		return &cfg, nil
	}
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
		return &cfg, nil
	}

	if err := yaml.Unmarshal(data, &cfg); err == nil {
		return &cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err == nil {
		return &cfg, nil
	}

	return nil, fmt.Errorf("unsupported config format: %s", ext)
}
