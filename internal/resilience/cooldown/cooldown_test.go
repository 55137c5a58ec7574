package cooldown

import (
	"testing"
	"time"

	"github.com/vietddude/loopguard/internal/core/domain"
)

func TestDuration_Defaults(t *testing.T) {
	c := NewCalculator(DefaultConfig())

	tests := []struct {
		failures int
		category domain.CooldownCategory
		expect   time.Duration
	}{
		{1, domain.CooldownRateLimit, 30 * time.Second},
		{2, domain.CooldownRateLimit, 45 * time.Second},
		{3, domain.CooldownRateLimit, 67500 * time.Millisecond},
		{1, domain.CooldownFailure, 60 * time.Second},
		{1, domain.CooldownValidation, 30 * time.Second},
		{1, domain.CooldownManual, 60 * time.Second}, // falls back to failure base
		{0, domain.CooldownRateLimit, 30 * time.Second},
		{50, domain.CooldownFailure, 300 * time.Second},
	}

	for _, tt := range tests {
		if got := c.Duration(tt.failures, tt.category); got != tt.expect {
			t.Errorf("Duration(%d, %s) = %v, want %v", tt.failures, tt.category, got, tt.expect)
		}
	}
}

func TestDuration_MonotonicAndClamped(t *testing.T) {
	c := NewCalculator(DefaultConfig())
	cfg := c.Config()

	categories := []domain.CooldownCategory{
		domain.CooldownRateLimit,
		domain.CooldownFailure,
		domain.CooldownValidation,
		domain.CooldownManual,
	}

	for _, cat := range categories {
		prev := time.Duration(0)
		for n := 1; n <= 200; n++ {
			d := c.Duration(n, cat)
			if d < cfg.MinDuration || d > cfg.MaxDuration {
				t.Fatalf("%s/%d: %v outside [%v, %v]", cat, n, d, cfg.MinDuration, cfg.MaxDuration)
			}
			if d < prev {
				t.Fatalf("%s/%d: %v decreased from %v", cat, n, d, prev)
			}
			prev = d
		}
	}
}

func TestDuration_MinClamp(t *testing.T) {
	c := NewCalculator(Config{
		Bases: map[domain.CooldownCategory]time.Duration{
			domain.CooldownFailure: time.Second,
		},
		MinDuration:   10 * time.Second,
		MaxDuration:   time.Minute,
		BackoffFactor: 2,
	})

	if d := c.Duration(1, domain.CooldownFailure); d != 10*time.Second {
		t.Errorf("expected min clamp 10s, got %v", d)
	}
	if d := c.Duration(5, domain.CooldownFailure); d != 16*time.Second {
		t.Errorf("expected 16s, got %v", d)
	}
}

func TestRemainingSeconds(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		until  time.Time
		expect int
	}{
		{"unset", time.Time{}, 0},
		{"past", now.Add(-time.Minute), 0},
		{"now", now, 0},
		{"sub-second rounds up", now.Add(100 * time.Millisecond), 1},
		{"exact", now.Add(30 * time.Second), 30},
		{"fraction", now.Add(30*time.Second + time.Millisecond), 31},
	}

	for _, tt := range tests {
		if got := RemainingSeconds(tt.until, now); got != tt.expect {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.expect, got)
		}
		if got := IsInCooldown(tt.until, now); got != (tt.expect > 0) {
			t.Errorf("%s: IsInCooldown = %v", tt.name, got)
		}
	}
}
