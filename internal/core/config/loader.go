package config

import (
	"fmt"
	"os"

	"github.com/vietddude/loopguard/internal/resilience/recovery"
	"github.com/vietddude/loopguard/internal/resilience/retry"
	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file on top of the defaults.
// An empty path returns the defaults.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path == "" {
		return &cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := overlayBuiltins([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Credentials.Pool == "" {
		cfg.Credentials.Pool = "default"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// yaml.v2 decodes each map value from scratch, so a file touching one field
// of a built-in policy or strategy would zero the rest. Re-decode those
// entries over their built-in values.
func overlayBuiltins(data []byte, cfg *AppConfig) error {
	var raw struct {
		Retry struct {
			Policies map[string]yaml.MapSlice `yaml:"policies"`
		} `yaml:"retry"`
		Recovery struct {
			Strategies map[string]yaml.MapSlice `yaml:"strategies"`
		} `yaml:"recovery"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	if err := overlayEntries(raw.Retry.Policies, retry.DefaultPolicies(), cfg.Retry.Policies); err != nil {
		return err
	}
	return overlayEntries(raw.Recovery.Strategies, recovery.DefaultConfig().Strategies, cfg.Recovery.Strategies)
}

func overlayEntries[K ~string, V any](entries map[string]yaml.MapSlice, builtins, dst map[K]V) error {
	for name, entry := range entries {
		merged, ok := builtins[K(name)]
		if !ok {
			continue
		}
		out, err := yaml.Marshal(entry)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(out, &merged); err != nil {
			return err
		}
		dst[K(name)] = merged
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *AppConfig) Validate() error {
	for name, p := range c.Retry.Policies {
		p.Name = name
		if err := p.Validate(); err != nil {
			return err
		}
	}
	if c.Retry.DefaultPolicy != "" {
		if _, ok := c.Retry.Policies[c.Retry.DefaultPolicy]; !ok {
			return fmt.Errorf("unknown default retry policy %q", c.Retry.DefaultPolicy)
		}
	}
	if c.Recovery.MaxRecoveryAttempts < 0 {
		return fmt.Errorf("recovery.max_recovery_attempts must be >= 0")
	}
	if c.Cooldown.BackoffFactor != 0 && c.Cooldown.BackoffFactor < 1 {
		return fmt.Errorf("cooldown.backoff_factor must be >= 1")
	}
	if c.Cooldown.MaxDuration > 0 && c.Cooldown.MaxDuration < c.Cooldown.MinDuration {
		return fmt.Errorf("cooldown.max_duration must be >= min_duration")
	}
	return nil
}
