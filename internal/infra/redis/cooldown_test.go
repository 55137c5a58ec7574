package redis

import (
	"testing"
	"time"

	"github.com/vietddude/loopguard/internal/core/domain"
)

func TestCooldownKey(t *testing.T) {
	got := cooldownKey("loopguard", "default", "k1")
	if got != "loopguard:cooldown:default:k1" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestCooldownStore_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &CooldownStore{prefix: "p", pool: "x", now: func() time.Time { return now }}

	if got := s.ttl(domain.CooldownRecord{}); got != recordRetention {
		t.Errorf("expected bare retention, got %v", got)
	}

	rec := domain.CooldownRecord{CooldownUntil: now.Add(90 * time.Second)}
	if got := s.ttl(rec); got != recordRetention+90*time.Second {
		t.Errorf("expected retention plus remaining cooldown, got %v", got)
	}

	rec.CooldownUntil = now.Add(-time.Minute)
	if got := s.ttl(rec); got != recordRetention {
		t.Errorf("expired cooldown should not extend ttl, got %v", got)
	}
}
