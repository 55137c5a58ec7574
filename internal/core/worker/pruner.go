package worker

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper removes records idle since a cutoff and reports how many it removed.
type Sweeper interface {
	SweepIdle(cutoff time.Time) int
}

// Pruner deletes idle cooldown records based on retention policy.
type Pruner struct {
	store     Sweeper
	retention time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// NewPruner creates a new Pruner worker.
func NewPruner(store Sweeper, retention time.Duration, log *slog.Logger) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{
		store:     store,
		retention: retention,
		now:       time.Now,
		log:       log.With("component", "pruner"),
	}
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check every 10% of the retention period, between 1 minute and 1 hour
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune()
		}
	}
}

// Prune runs one sweep.
func (p *Pruner) Prune() int {
	n := p.store.SweepIdle(p.now().Add(-p.retention))
	if n > 0 {
		p.log.Debug("Pruned idle cooldown records", "count", n)
	}
	return n
}
