// Package retry holds the named retry policies and the error-to-policy map.
package retry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Built-in policy names.
const (
	PolicyNone         = "none"
	PolicyImmediate    = "immediate"
	PolicyExponential  = "exponential"
	PolicyAggressive   = "aggressive"
	PolicyConservative = "conservative"
)

// DefaultJitterFraction bounds the jitter perturbation to ±25% of the computed delay.
const DefaultJitterFraction = 0.25

// Policy defines an attempt budget and delay schedule.
// Policies are values: the manager hands out copies, never references.
type Policy struct {
	Name              string        `yaml:"-"                   json:"name"`
	MaxAttempts       int           `yaml:"max_attempts"        json:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"          json:"base_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"  json:"backoff_multiplier"`
	MaxDelay          time.Duration `yaml:"max_delay"           json:"max_delay"`
	JitterEnabled     bool          `yaml:"jitter"              json:"jitter"`
	CleanContext      bool          `yaml:"clean_context"       json:"clean_context"`
	Enabled           bool          `yaml:"enabled"             json:"enabled"`
}

// ErrInvalidPolicy is returned when a policy fails validation.
var ErrInvalidPolicy = errors.New("invalid retry policy")

// Validate checks the policy parameter ranges.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("%w %q: max_attempts must be >= 1", ErrInvalidPolicy, p.Name)
	case p.BaseDelay < 0:
		return fmt.Errorf("%w %q: base_delay must be >= 0", ErrInvalidPolicy, p.Name)
	case p.BackoffMultiplier < 1:
		return fmt.Errorf("%w %q: backoff_multiplier must be >= 1", ErrInvalidPolicy, p.Name)
	case p.MaxDelay < 0:
		return fmt.Errorf("%w %q: max_delay must be >= 0", ErrInvalidPolicy, p.Name)
	}
	return nil
}

// AllowsAttempt reports whether attempt (1-indexed) is within budget.
func (p Policy) AllowsAttempt(attempt int) bool {
	if !p.Enabled {
		return attempt <= 1
	}
	return attempt <= p.MaxAttempts
}

// Delay returns the un-jittered wait before attempt (1-indexed).
// The first attempt has no delay; retry k waits min(base * mult^(k-2), max).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 || p.BaseDelay <= 0 {
		return 0
	}

	delay := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-2))
	if delay > float64(p.MaxDelay) || math.IsInf(delay, 1) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Jitter perturbs d uniformly within ±fraction*d using r in [0, 1),
// clamped to [0, max].
func Jitter(d time.Duration, fraction, r float64, max time.Duration) time.Duration {
	if d <= 0 || fraction <= 0 {
		return d
	}
	offset := (r*2 - 1) * fraction * float64(d)
	j := time.Duration(float64(d) + offset)
	if j < 0 {
		j = 0
	}
	if max > 0 && j > max {
		j = max
	}
	return j
}

// DefaultPolicies returns the built-in policy table.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		PolicyNone: {
			Name:              PolicyNone,
			MaxAttempts:       1,
			BackoffMultiplier: 1,
			Enabled:           false,
		},
		PolicyImmediate: {
			Name:              PolicyImmediate,
			MaxAttempts:       2,
			BackoffMultiplier: 1,
			CleanContext:      true,
			Enabled:           true,
		},
		PolicyExponential: {
			Name:              PolicyExponential,
			MaxAttempts:       3,
			BaseDelay:         1 * time.Second,
			BackoffMultiplier: 2,
			MaxDelay:          10 * time.Second,
			JitterEnabled:     true,
			CleanContext:      true,
			Enabled:           true,
		},
		PolicyAggressive: {
			Name:              PolicyAggressive,
			MaxAttempts:       5,
			BaseDelay:         500 * time.Millisecond,
			BackoffMultiplier: 1.5,
			MaxDelay:          5 * time.Second,
			JitterEnabled:     true,
			CleanContext:      true,
			Enabled:           true,
		},
		PolicyConservative: {
			Name:              PolicyConservative,
			MaxAttempts:       2,
			BaseDelay:         2 * time.Second,
			BackoffMultiplier: 2,
			MaxDelay:          15 * time.Second,
			CleanContext:      false,
			Enabled:           true,
		},
	}
}
