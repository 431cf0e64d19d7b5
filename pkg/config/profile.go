package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DeploymentProfile selects durability and networking defaults for a named
// environment (e.g. "local", "staging", "production"), loaded from a YAML
// file so operators can check profiles into their own deploy repos rather
// than encode them as flags.
type DeploymentProfile struct {
	Name               string  `yaml:"name"`
	Backend            string  `yaml:"backend"` // "memory", "file", or "postgres"
	LogPath            string  `yaml:"log_path,omitempty"`
	PostgresDSN        string  `yaml:"postgres_dsn,omitempty"`
	RedisAddr          string  `yaml:"redis_addr,omitempty"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
}

// LoadProfile reads and parses a single deployment profile YAML file.
func LoadProfile(path string) (DeploymentProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DeploymentProfile{}, fmt.Errorf("config: read profile %s: %w", path, err)
	}
	var profile DeploymentProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return DeploymentProfile{}, fmt.Errorf("config: parse profile %s: %w", path, err)
	}
	return profile, nil
}

// LoadProfiles loads every *.yaml file in dir, keyed by profile name.
func LoadProfiles(dir string) (map[string]DeploymentProfile, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("config: glob profiles in %s: %w", dir, err)
	}

	profiles := make(map[string]DeploymentProfile, len(matches))
	for _, path := range matches {
		profile, err := LoadProfile(path)
		if err != nil {
			return nil, err
		}
		if profile.Name == "" {
			profile.Name = trimYAMLExt(filepath.Base(path))
		}
		profiles[profile.Name] = profile
	}
	return profiles, nil
}

func trimYAMLExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
