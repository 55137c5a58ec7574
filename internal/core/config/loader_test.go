package config

import (
	"os"
	"testing"
	"time"

	"github.com/vietddude/loopguard/internal/core/domain"
	"github.com/vietddude/loopguard/internal/resilience/retry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad_EnvSubstitution(t *testing.T) {
	os.Setenv("TEST_REDIS_URL", "redis://localhost:6380/1")
	defer os.Unsetenv("TEST_REDIS_URL")

	cfg, err := Load(writeConfig(t, `
redis:
  url: ${TEST_REDIS_URL}
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Redis.URL != "redis://localhost:6380/1" {
		t.Errorf("Expected URL redis://localhost:6380/1, got %s", cfg.Redis.URL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Retry.DefaultPolicy != retry.PolicyExponential {
		t.Errorf("expected exponential default, got %s", cfg.Retry.DefaultPolicy)
	}
	if cfg.Recovery.MaxRecoveryAttempts != 2 {
		t.Errorf("expected 2 recovery attempts, got %d", cfg.Recovery.MaxRecoveryAttempts)
	}
	if cfg.Cooldown.MaxDuration != 300*time.Second {
		t.Errorf("expected 300s max cooldown, got %v", cfg.Cooldown.MaxDuration)
	}
	if cfg.Health.HistoryCapacity != 50 || !cfg.Health.Enabled {
		t.Errorf("unexpected health defaults %+v", cfg.Health)
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
retry:
  default_policy: patient
  policies:
    patient:
      max_attempts: 4
      base_delay: 3s
      backoff_multiplier: 2
      max_delay: 1m
      enabled: true
  error_policies:
    network: patient
recovery:
  max_recovery_attempts: 1
  context_cleaning:
    reasoning_log: true
cooldown:
  min_duration: 5s
health:
  enabled: false
  exclude_cancelled: true
credentials:
  pool: openai
  ids: [k1, k2]
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	p, ok := cfg.Retry.Policies["patient"]
	if !ok || p.MaxAttempts != 4 || p.BaseDelay != 3*time.Second || p.MaxDelay != time.Minute {
		t.Errorf("unexpected patient policy %+v", p)
	}
	if _, ok := cfg.Retry.Policies[retry.PolicyAggressive]; !ok {
		t.Error("built-in policies should survive the overlay")
	}
	if cfg.Retry.ErrorPolicies[domain.ClassNetwork] != "patient" {
		t.Errorf("expected network->patient, got %s", cfg.Retry.ErrorPolicies[domain.ClassNetwork])
	}
	if cfg.Retry.ErrorPolicies[domain.ClassValidation] != retry.PolicyNone {
		t.Error("default error policies should survive the overlay")
	}
	if cfg.Recovery.MaxRecoveryAttempts != 1 || !cfg.Recovery.ContextCleaning.ReasoningLog {
		t.Errorf("unexpected recovery %+v", cfg.Recovery)
	}
	if !cfg.Recovery.ContextCleaning.ExecutionLog {
		t.Error("omitted cleaning toggles should keep their defaults")
	}
	if cfg.Cooldown.MinDuration != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.Cooldown.MinDuration)
	}
	if cfg.Health.Enabled || !cfg.Health.ExcludeCancelled {
		t.Errorf("unexpected health %+v", cfg.Health)
	}
	if cfg.Credentials.Pool != "openai" || len(cfg.Credentials.IDs) != 2 {
		t.Errorf("unexpected credentials %+v", cfg.Credentials)
	}
}

func TestLoad_PartialBuiltinOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
retry:
  policies:
    exponential:
      max_attempts: 4
recovery:
  strategies:
    network:
      max_attempts: 1
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	p := cfg.Retry.Policies[retry.PolicyExponential]
	if p.MaxAttempts != 4 {
		t.Errorf("expected 4 attempts, got %d", p.MaxAttempts)
	}
	if p.BaseDelay != time.Second || p.BackoffMultiplier != 2 || p.MaxDelay != 10*time.Second {
		t.Errorf("omitted policy fields should keep built-in values, got %+v", p)
	}
	if !p.Enabled || !p.JitterEnabled {
		t.Errorf("expected built-in flags kept, got %+v", p)
	}

	s := cfg.Recovery.Strategies[domain.ClassNetwork]
	if s.MaxAttempts != 1 || !s.ExponentialBackoff {
		t.Errorf("unexpected network strategy %+v", s)
	}
}

func TestLoad_InvalidPolicy(t *testing.T) {
	_, err := Load(writeConfig(t, `
retry:
  policies:
    broken:
      max_attempts: 0
      backoff_multiplier: 1
`))
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestLoad_UnknownDefaultPolicy(t *testing.T) {
	_, err := Load(writeConfig(t, "retry:\n  default_policy: nope\n"))
	if err == nil {
		t.Error("expected error for unknown default policy")
	}
}
