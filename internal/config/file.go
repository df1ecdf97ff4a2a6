package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// LoadFile reads a YAML (or JSON) config file over Defaults, then applies
// environment overrides so deployments can keep secrets out of the file.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	applyEnv(&cfg)
	if err := finalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
