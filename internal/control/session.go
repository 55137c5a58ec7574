package control

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/loopguard/internal/core/domain"
	"github.com/vietddude/loopguard/internal/metrics"
	"github.com/vietddude/loopguard/internal/resilience/health"
	"github.com/vietddude/loopguard/internal/resilience/recovery"
	"github.com/vietddude/loopguard/internal/session"
)

// DefaultCollection is used when an outcome names no collection.
const DefaultCollection = "goals"

var ErrSessionClosed = errors.New("session closed")

// Outcome is what the loop reports after one attempt of an iteration.
type Outcome struct {
	Iteration  int
	Collection string
	Operations []domain.Operation
	Err        error
	Cancelled  bool
	Credential string
	Duration   time.Duration
}

// Decision tells the loop what to do next. The guard never sleeps; the
// caller waits Delay before the next attempt.
type Decision struct {
	Continue       bool                  `json:"continue"`
	Retry          bool                  `json:"retry"`
	Attempt        int                   `json:"attempt,omitempty"`
	Delay          time.Duration         `json:"delay"`
	Policy         string                `json:"policy,omitempty"`
	Classification domain.Classification `json:"classification,omitempty"`
	Credential     string                `json:"credential,omitempty"`
	Plan           recovery.Plan         `json:"plan"`
	Clean          []recovery.Segment    `json:"clean,omitempty"`
	Summary        session.Summary       `json:"summary"`
	Health         health.Status         `json:"health"`
	Err            error                 `json:"-"`
}

// Session is the per-loop state. HandleIteration is meant to be driven by a
// single loop goroutine; health reads are safe from other goroutines.
type Session struct {
	id      string
	guard   *Guard
	monitor health.Monitor
	log     *slog.Logger

	mu          sync.Mutex
	closed      bool
	collections map[string]*session.Snapshot
	loopCtx     recovery.LoopContext
	iterations  int
	attempt     int // failed attempts of the current iteration
	recoveries  int // recoveries spent on the current iteration
}

func newSession(id string, g *Guard) *Session {
	return &Session{
		id:          id,
		guard:       g,
		monitor:     health.New(g.cfg.Health),
		log:         g.log.With("session", id),
		collections: make(map[string]*session.Snapshot),
		loopCtx:     recovery.LoopContext{APIUsage: make(map[string]int)},
	}
}

func (s *Session) ID() string { return s.id }

// Monitor returns the session health monitor.
func (s *Session) Monitor() health.Monitor { return s.monitor }

// Collection returns the named snapshot, creating it on first use.
func (s *Session) Collection(name string) *session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectionUnsafe(name)
}

func (s *Session) collectionUnsafe(name string) *session.Snapshot {
	if name == "" {
		name = DefaultCollection
	}
	snap, ok := s.collections[name]
	if !ok {
		snap = session.NewSnapshot(name)
		s.collections[name] = snap
	}
	return snap
}

// SetCollection replaces a snapshot, e.g. one restored from disk.
func (s *Session) SetCollection(snap *session.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[snap.Name()] = snap
}

// Context gives access to the loop context the guard cleans during recovery.
// The returned pointer must only be used from the goroutine driving
// HandleIteration, between calls.
func (s *Session) Context() *recovery.LoopContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &s.loopCtx
}

// Close unregisters the session. Further outcomes are rejected.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	iterations := s.iterations
	s.mu.Unlock()

	s.guard.unregister(s)
	s.log.Info("Session closed", "iterations", iterations)
}

// HandleIteration applies the outcome's operations, then decides whether the
// failed attempt is retried, recovered or handed back to the caller.
func (s *Session) HandleIteration(ctx context.Context, out Outcome) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Decision{Err: ErrSessionClosed}
	}

	var summary session.Summary
	if len(out.Operations) > 0 {
		summary = s.applyUnsafe(out)
	}

	err := out.Err
	if out.Cancelled && err == nil {
		err = context.Canceled
	}
	if err == nil {
		return s.succeedUnsafe(ctx, out, summary)
	}
	return s.failUnsafe(ctx, out, err, summary)
}

func (s *Session) applyUnsafe(out Outcome) session.Summary {
	snap := s.collectionUnsafe(out.Collection)
	summary := s.guard.applier.Apply(out.Operations, snap)
	for _, r := range summary.Results {
		metrics.OperationsTotal.WithLabelValues(snap.Name(), string(r.Action), string(r.Status)).Inc()
	}
	return summary
}

func (s *Session) succeedUnsafe(ctx context.Context, out Outcome, summary session.Summary) Decision {
	if out.Credential != "" {
		if err := s.guard.pool.RecordSuccess(ctx, out.Credential); err != nil {
			s.log.Warn("Failed to reset credential cooldown", "credential", out.Credential, "error", err)
		}
	}

	s.recordUnsafe(out, nil, summary)
	metrics.IterationsTotal.WithLabelValues("success").Inc()

	return Decision{
		Continue: !s.monitor.IsCritical(),
		Summary:  summary,
		Health:   s.monitor.Status(),
	}
}

func (s *Session) failUnsafe(ctx context.Context, out Outcome, err error, summary session.Summary) Decision {
	class := domain.ClassifyOf(err)
	if out.Cancelled || errors.Is(err, context.Canceled) {
		class = domain.ClassCancelled
	}

	// Rate limits rest the credential regardless of what happens to the iteration.
	var cooldownWait time.Duration
	credentialNext := ""
	if class == domain.ClassRateLimit && out.Credential != "" {
		rest, cerr := s.guard.pool.RecordFailure(ctx, out.Credential, domain.CooldownRateLimit)
		if cerr != nil {
			s.log.Warn("Failed to record credential cooldown", "credential", out.Credential, "error", cerr)
		} else {
			// Without a free alternative the same credential is reused, so
			// the retry must wait out its own cooldown.
			next, wait, nerr := s.guard.pool.Next(ctx)
			if nerr == nil {
				credentialNext = next
			} else {
				cooldownWait = max(wait, rest)
			}
		}
	}

	s.attempt++
	failed := s.attempt

	coord := s.guard.recovery
	policy := s.guard.retry.GetPolicyForError(class)
	d := Decision{
		Classification: class,
		Policy:         policy.Name,
		Credential:     credentialNext,
		Summary:        summary,
	}

	reason := ""
	switch {
	case class == domain.ClassCancelled:
		reason = "cancelled"
	case coord.IsNonRecoverable(class):
		reason = "non-recoverable"
	case !policy.AllowsAttempt(failed + 1):
		reason = "retry attempts exhausted"
	case !coord.CanAttempt(s.recoveries):
		reason = "recovery attempts exhausted"
	}
	if reason != "" {
		s.log.Warn("Iteration failed",
			"iteration", s.iterationNumber(out),
			"classification", class,
			"attempts", failed,
			"reason", reason,
			"error", err,
		)
		s.recordUnsafe(out, err, summary)
		metrics.IterationsTotal.WithLabelValues("failure").Inc()

		d.Continue = !s.monitor.IsCritical()
		d.Health = s.monitor.Status()
		d.Err = err
		return d
	}

	valid := s.collectionUnsafe(out.Collection).IDs()
	d.Plan = coord.Plan(recovery.Request{
		Classification:   class,
		Err:              err,
		Attempt:          failed,
		RecoveryAttempts: s.recoveries,
		ValidEntityIDs:   valid,
		LastReasoning:    s.loopCtx.LastReasoning(),
	})
	switch {
	case d.Plan.Recover:
		s.recoveries++
		d.Clean = d.Plan.Clean
		metrics.RecoveriesTotal.WithLabelValues(string(class)).Inc()
	case policy.CleanContext:
		d.Clean = coord.SegmentsToClean()
	}
	recovery.Clean(&s.loopCtx, d.Clean)

	d.Retry = true
	d.Attempt = failed + 1
	d.Delay = s.guard.retry.Backoff(policy, d.Attempt)
	if cooldownWait > d.Delay {
		d.Delay = cooldownWait
	}
	d.Continue = true
	d.Health = s.monitor.Status()
	metrics.RetriesTotal.WithLabelValues(string(class), policy.Name).Inc()

	s.log.Info("Retrying iteration",
		"iteration", s.iterationNumber(out),
		"classification", class,
		"policy", policy.Name,
		"attempt", d.Attempt,
		"delay", d.Delay,
		"recover", d.Plan.Recover,
	)
	return d
}

func (s *Session) iterationNumber(out Outcome) int {
	if out.Iteration > 0 {
		return out.Iteration
	}
	return s.iterations + 1
}

// recordUnsafe closes the current iteration and feeds the health monitor.
func (s *Session) recordUnsafe(out Outcome, err error, summary session.Summary) {
	data := health.IterationData{
		IterationNumber:   s.iterationNumber(out),
		Timestamp:         time.Now(),
		Success:           err == nil,
		Cancelled:         out.Cancelled || errors.Is(err, context.Canceled),
		OperationsApplied: summary.Applied(),
		Duration:          out.Duration,
	}
	if err != nil {
		data.Classification = string(domain.ClassifyOf(err))
		if data.Cancelled {
			data.Classification = string(domain.ClassCancelled)
		}
		data.Error = err.Error()
	}
	s.monitor.RecordIteration(data)

	s.iterations++
	s.attempt = 0
	s.recoveries = 0
	metrics.SessionHealth.WithLabelValues(s.id).Set(healthValue(s.monitor.Status()))
}

func healthValue(st health.Status) float64 {
	switch st {
	case health.StatusHealthy:
		return 0
	case health.StatusDegraded:
		return 1
	case health.StatusCritical:
		return 2
	default:
		return -1
	}
}
