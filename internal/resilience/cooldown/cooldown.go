// Package cooldown computes how long a rate-limited credential must rest.
package cooldown

import (
	"math"
	"time"

	"github.com/vietddude/loopguard/internal/core/domain"
)

// Config holds cooldown configuration.
type Config struct {
	// Base durations per category. Missing categories use the failure base.
	Bases         map[domain.CooldownCategory]time.Duration `yaml:"bases"`
	MinDuration   time.Duration                             `yaml:"min_duration"`
	MaxDuration   time.Duration                             `yaml:"max_duration"`
	BackoffFactor float64                                   `yaml:"backoff_factor"`
}

// DefaultConfig returns the default cooldown schedule.
// Rate limit 30s, repeated failure 60s, validation 30s; x1.5 per failure, within [10s, 300s].
func DefaultConfig() Config {
	return Config{
		Bases: map[domain.CooldownCategory]time.Duration{
			domain.CooldownRateLimit:  30 * time.Second,
			domain.CooldownFailure:    60 * time.Second,
			domain.CooldownValidation: 30 * time.Second,
		},
		MinDuration:   10 * time.Second,
		MaxDuration:   300 * time.Second,
		BackoffFactor: 1.5,
	}
}

// Calculator maps failure counts to cooldown durations. It holds no state.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator, filling zero fields from DefaultConfig.
func NewCalculator(cfg Config) *Calculator {
	def := DefaultConfig()
	if cfg.Bases == nil {
		cfg.Bases = def.Bases
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = def.MinDuration
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = def.MaxDuration
	}
	if cfg.MaxDuration < cfg.MinDuration {
		cfg.MaxDuration = cfg.MinDuration
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	return &Calculator{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Calculator) Config() Config {
	bases := make(map[domain.CooldownCategory]time.Duration, len(c.cfg.Bases))
	for k, v := range c.cfg.Bases {
		bases[k] = v
	}
	cfg := c.cfg
	cfg.Bases = bases
	return cfg
}

// Base returns the base duration for a category.
func (c *Calculator) Base(category domain.CooldownCategory) time.Duration {
	if d, ok := c.cfg.Bases[category]; ok {
		return d
	}
	if d, ok := c.cfg.Bases[domain.CooldownFailure]; ok {
		return d
	}
	return c.cfg.MinDuration
}

// Duration calculates base * factor^(failureCount-1), clamped to [min, max].
// Counts below 1 are treated as 1.
func (c *Calculator) Duration(failureCount int, category domain.CooldownCategory) time.Duration {
	if failureCount < 1 {
		failureCount = 1
	}

	d := float64(c.Base(category)) * math.Pow(c.cfg.BackoffFactor, float64(failureCount-1))
	if d > float64(c.cfg.MaxDuration) || math.IsInf(d, 1) {
		return c.cfg.MaxDuration
	}
	if d < float64(c.cfg.MinDuration) {
		return c.cfg.MinDuration
	}
	return time.Duration(d)
}

// Until returns the absolute time a cooldown starting at now ends.
func (c *Calculator) Until(
	failureCount int,
	category domain.CooldownCategory,
	now time.Time,
) time.Time {
	return now.Add(c.Duration(failureCount, category))
}

// RemainingSeconds returns max(0, ceil((until-now)/1s)). A zero until means no cooldown.
func RemainingSeconds(until, now time.Time) int {
	if until.IsZero() {
		return 0
	}
	diff := until.Sub(now)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff.Seconds()))
}

// IsInCooldown reports whether until lies in the future.
func IsInCooldown(until, now time.Time) bool {
	return RemainingSeconds(until, now) > 0
}
