package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/vietddude/loopguard/internal/core/domain"
	"github.com/vietddude/loopguard/internal/metrics"
	"github.com/vietddude/loopguard/internal/resilience/cooldown"
)

var (
	// ErrUnknownCredential is returned for ids outside the pool.
	ErrUnknownCredential = errors.New("unknown credential")

	// ErrAllCoolingDown is returned by Next when no credential is available.
	ErrAllCoolingDown = errors.New("all credentials cooling down")
)

// Config holds credential pool configuration.
type Config struct {
	Pool string   `yaml:"pool"`
	IDs  []string `yaml:"ids"`
}

// Status describes the cooldown state of one credential.
type Status struct {
	ID               string                `json:"id"`
	InCooldown       bool                  `json:"in_cooldown"`
	RemainingSeconds int                   `json:"remaining_seconds"`
	Record           domain.CooldownRecord `json:"record"`
}

// Pool rotates between credentials, resting the rate-limited ones.
type Pool struct {
	ids   []string
	store Store
	calc  *cooldown.Calculator
	now   func() time.Time
	log   *slog.Logger
}

// NewPool creates a pool over ids. An empty id list accepts any credential.
func NewPool(ids []string, store Store, calc *cooldown.Calculator, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		ids:   append([]string(nil), ids...),
		store: store,
		calc:  calc,
		now:   time.Now,
		log:   log.With("component", "credential_pool"),
	}
}

// IDs returns the configured credential ids.
func (p *Pool) IDs() []string {
	return append([]string(nil), p.ids...)
}

func (p *Pool) check(id string) error {
	if id == "" || (len(p.ids) > 0 && !slices.Contains(p.ids, id)) {
		return fmt.Errorf("%w: %q", ErrUnknownCredential, id)
	}
	return nil
}

// RecordFailure bumps the failure count of id and starts its cooldown.
func (p *Pool) RecordFailure(
	ctx context.Context,
	id string,
	category domain.CooldownCategory,
) (time.Duration, error) {
	if err := p.check(id); err != nil {
		return 0, err
	}

	var d time.Duration
	_, err := p.store.Update(ctx, id, func(rec *domain.CooldownRecord) error {
		now := p.now()
		rec.ConsecutiveFailures++
		rec.Category = category
		d = p.calc.Duration(rec.ConsecutiveFailures, category)
		rec.CooldownUntil = now.Add(d)
		rec.UpdatedAt = now
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record failure for %s: %w", id, err)
	}

	metrics.CooldownsTotal.WithLabelValues(string(category)).Inc()
	metrics.CooldownDuration.WithLabelValues(string(category)).Observe(d.Seconds())
	p.log.Info("Credential cooling down", "credential", id, "category", category, "duration", d)
	return d, nil
}

// RecordSuccess clears the failure count and cooldown of id.
func (p *Pool) RecordSuccess(ctx context.Context, id string) error {
	if err := p.check(id); err != nil {
		return err
	}

	_, err := p.store.Update(ctx, id, func(rec *domain.CooldownRecord) error {
		rec.ConsecutiveFailures = 0
		rec.CooldownUntil = time.Time{}
		rec.UpdatedAt = p.now()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record success for %s: %w", id, err)
	}
	return nil
}

// Status returns the cooldown state of id.
func (p *Pool) Status(ctx context.Context, id string) (Status, error) {
	if err := p.check(id); err != nil {
		return Status{}, err
	}

	rec, err := p.store.Get(ctx, id)
	if err != nil {
		return Status{}, fmt.Errorf("failed to get cooldown record for %s: %w", id, err)
	}

	remaining := cooldown.RemainingSeconds(rec.CooldownUntil, p.now())
	return Status{
		ID:               id,
		InCooldown:       remaining > 0,
		RemainingSeconds: remaining,
		Record:           rec,
	}, nil
}

// Statuses returns the state of every configured credential.
func (p *Pool) Statuses(ctx context.Context) ([]Status, error) {
	out := make([]Status, 0, len(p.ids))
	for _, id := range p.ids {
		st, err := p.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// Next returns the first credential not in cooldown. When all are resting it
// returns ErrAllCoolingDown and the wait until the soonest becomes available.
func (p *Pool) Next(ctx context.Context) (string, time.Duration, error) {
	if len(p.ids) == 0 {
		return "", 0, fmt.Errorf("%w: empty pool", ErrUnknownCredential)
	}

	soonest := -1
	for _, id := range p.ids {
		st, err := p.Status(ctx, id)
		if err != nil {
			return "", 0, err
		}
		if !st.InCooldown {
			return id, 0, nil
		}
		if soonest < 0 || st.RemainingSeconds < soonest {
			soonest = st.RemainingSeconds
		}
	}

	wait := time.Duration(soonest) * time.Second
	return "", wait, fmt.Errorf("%w: next available in %v", ErrAllCoolingDown, wait)
}
