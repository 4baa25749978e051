// Package config loads the pthook YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the pthook configuration file (~/.pthook.yaml by default).
type Config struct {
	API  APIConfig  `yaml:"api"`
	Hook HookConfig `yaml:"hook"`
}

// APIConfig points the tooling at a patchtrackd instance.
type APIConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"-"`
}

// UnmarshalYAML accepts the timeout in time.ParseDuration form ("30s",
// "2m"), which plain yaml decoding of time.Duration does not.
func (c *APIConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		URL     string `yaml:"url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.URL != "" {
		c.URL = raw.URL
	}
	if raw.Token != "" {
		c.Token = raw.Token
	}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("invalid api.timeout: %w", err)
		}
		c.Timeout = d
	}

	return nil
}

// HookConfig configures post-receive processing: which refs feed which
// target patch state, and where the repository lives.
type HookConfig struct {
	RefStates map[string]string `yaml:"ref_states"`
	GitDir    string            `yaml:"git_dir"`
}

// Default returns the stock configuration: a local API and the classic
// master-means-accepted rule.
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:     "http://localhost:3333",
			Timeout: 30 * time.Second,
		},
		Hook: HookConfig{
			RefStates: map[string]string{
				"refs/heads/master": "Accepted",
			},
		},
	}
}

// Load reads the file at path over the defaults. A missing file is not an
// error; the defaults stand. PTHOOK_TOKEN overrides the configured token so
// credentials can stay out of the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to env handling
	case err != nil:
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	default:
		// yaml merges into a pre-populated map; a configured ref table
		// should replace the default one, not extend it.
		cfg.Hook.RefStates = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if token := os.Getenv("PTHOOK_TOKEN"); token != "" {
		cfg.API.Token = token
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.Hook.RefStates == nil {
		cfg.Hook.RefStates = Default().Hook.RefStates
	}

	return cfg, nil
}
