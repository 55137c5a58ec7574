package config

import (
	"github.com/vietddude/loopguard/internal/credential"
	redisclient "github.com/vietddude/loopguard/internal/infra/redis"
	"github.com/vietddude/loopguard/internal/resilience/cooldown"
	"github.com/vietddude/loopguard/internal/resilience/health"
	"github.com/vietddude/loopguard/internal/resilience/recovery"
	"github.com/vietddude/loopguard/internal/resilience/retry"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	Redis       redisclient.Config `yaml:"redis"`
	Credentials credential.Config  `yaml:"credentials"`
	Retry       retry.Config       `yaml:"retry"`
	Recovery    recovery.Config    `yaml:"recovery"`
	Cooldown    cooldown.Config    `yaml:"cooldown"`
	Health      health.Config      `yaml:"health"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the configuration used when no file overrides it.
func Default() AppConfig {
	return AppConfig{
		Server:      ServerConfig{Port: 8080},
		Logging:     LoggingConfig{Level: "info"},
		Credentials: credential.Config{Pool: "default"},
		Retry:       retry.DefaultConfig(),
		Recovery:    recovery.DefaultConfig(),
		Cooldown:    cooldown.DefaultConfig(),
		Health:      health.DefaultConfig(),
	}
}
