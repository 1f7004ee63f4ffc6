package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the structure of the config.yaml file: the relay
// set with per-relay roles, plus extra reserved slugs. Flat settings stay
// in env vars; the relay topology is easier to manage in YAML.
type YAMLConfig struct {
	Relays        []RelayConfig `yaml:"relays"`
	ReservedSlugs []string      `yaml:"reserved_slugs"`
}

// RelayConfig declares one relay. Roles default to true when omitted, so
// a bare url entry both reads and writes.
type RelayConfig struct {
	URL   string `yaml:"url"`
	Read  *bool  `yaml:"read,omitempty"`
	Write *bool  `yaml:"write,omitempty"`
}

// Roles resolves the optional role flags.
func (r RelayConfig) Roles() (read, write bool) {
	read = r.Read == nil || *r.Read
	write = r.Write == nil || *r.Write
	return read, write
}

// LoadYAMLConfig loads the YAML configuration file.
// Path is determined by CONFIG_FILE env var, defaulting to "config.yaml".
// Returns nil without error if the config file doesn't exist.
func LoadYAMLConfig() (*YAMLConfig, error) {
	path := getEnv("CONFIG_FILE", "config.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file is optional
			return nil, nil
		}
		return nil, err
	}

	var cfg YAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range cfg.Relays {
		if cfg.Relays[i].URL == "" {
			return nil, fmt.Errorf("%s: relays[%d] has no url", path, i)
		}
	}
	return &cfg, nil
}
