// Package control wires the resilience components into sessions owned by a loop controller.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/vietddude/loopguard/internal/core/worker"
	"github.com/vietddude/loopguard/internal/credential"
	redisclient "github.com/vietddude/loopguard/internal/infra/redis"
	"github.com/vietddude/loopguard/internal/metrics"
	"github.com/vietddude/loopguard/internal/resilience/cooldown"
	"github.com/vietddude/loopguard/internal/resilience/health"
	"github.com/vietddude/loopguard/internal/resilience/recovery"
	"github.com/vietddude/loopguard/internal/resilience/retry"
	"github.com/vietddude/loopguard/internal/session"
)

// Config holds the guard configuration.
type Config struct {
	Port        int
	Redis       redisclient.Config
	Credentials credential.Config
	Retry       retry.Config
	Recovery    recovery.Config
	Cooldown    cooldown.Config
	Health      health.Config
}

// Guard owns the process-level resilience components and the live sessions.
type Guard struct {
	cfg          Config
	retry        *retry.Manager
	recovery     *recovery.Coordinator
	calc         *cooldown.Calculator
	pool         *credential.Pool
	applier      *session.Applier
	redisClient  *redisclient.Client
	healthServer *health.Server
	pruner       *worker.Pruner
	cancel       context.CancelFunc
	log          *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewGuard creates a Guard with all dependencies initialized.
func NewGuard(cfg Config) (*Guard, error) {
	log := slog.Default()

	retryMgr, err := retry.NewManager(cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("failed to init retry policies: %w", err)
	}

	calc := cooldown.NewCalculator(cfg.Cooldown)

	// Cooldown records live in Redis when configured so several processes
	// sharing a credential pool see the same rest periods.
	mem := credential.NewMemoryStore()
	var store credential.Store = mem
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, using in-memory cooldowns", "error", err)
		} else {
			store = redisclient.NewCooldownStore(redisClient, cfg.Credentials.Pool)
			log.Info("Using Redis cooldown store", "pool", cfg.Credentials.Pool)
		}
	}

	g := &Guard{
		cfg:         cfg,
		retry:       retryMgr,
		recovery:    recovery.NewCoordinator(cfg.Recovery, log),
		calc:        calc,
		pool:        credential.NewPool(cfg.Credentials.IDs, store, calc, log),
		applier:     session.NewApplier(log),
		redisClient: redisClient,
		log:         log,
		sessions:    make(map[string]*Session),
	}
	if redisClient == nil {
		// Redis expires idle records by TTL; the memory store needs a sweeper.
		g.pruner = worker.NewPruner(mem, credential.RecordRetention, log)
	}
	g.healthServer = health.NewServer(g, cfg.Port)
	return g, nil
}

// Start starts the health server and background workers.
func (g *Guard) Start(ctx context.Context) error {
	ctx, g.cancel = context.WithCancel(ctx)
	if g.pruner != nil {
		go g.pruner.Start(ctx)
	}

	go func() {
		if err := g.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.log.Error("Health server failed", "error", err)
		}
	}()
	g.log.Info("Health server started", "port", g.cfg.Port)
	return nil
}

// Stop closes all sessions and releases resources.
func (g *Guard) Stop(ctx context.Context) error {
	g.log.Info("Stopping guard...")

	if g.cancel != nil {
		g.cancel()
	}

	for _, s := range g.liveSessions() {
		s.Close()
	}

	// Close Redis
	if g.redisClient != nil {
		if err := g.redisClient.Close(); err != nil {
			g.log.Warn("Failed to close Redis", "error", err)
		}
	}

	// Stop Health Server
	return g.healthServer.Stop(ctx)
}

// NewSession creates and registers a session. An empty id gets a generated one.
func (g *Guard) NewSession(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	s := newSession(id, g)

	g.mu.Lock()
	old := g.sessions[id]
	g.sessions[id] = s
	metrics.ActiveSessions.Set(float64(len(g.sessions)))
	g.mu.Unlock()

	// A reused id replaces the previous session.
	if old != nil {
		old.Close()
	}

	g.log.Info("Session started", "session", id, "health", s.monitor.Status())
	return s
}

// Session returns a live session by id.
func (g *Guard) Session(id string) (*Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.sessions[id]
	return s, ok
}

func (g *Guard) liveSessions() []*Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		out = append(out, s)
	}
	return out
}

func (g *Guard) unregister(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cur, ok := g.sessions[s.id]
	if !ok || cur != s {
		return
	}
	delete(g.sessions, s.id)
	metrics.ActiveSessions.Set(float64(len(g.sessions)))
	metrics.SessionHealth.DeleteLabelValues(s.id)
}

// HealthReports implements health.Source.
func (g *Guard) HealthReports() map[string]health.Report {
	sessions := g.liveSessions()
	out := make(map[string]health.Report, len(sessions))
	for _, s := range sessions {
		out[s.id] = s.monitor.GetHealthStatus()
	}
	return out
}

// RetryManager returns the shared retry policy registry.
func (g *Guard) RetryManager() *retry.Manager { return g.retry }

// Recovery returns the recovery coordinator.
func (g *Guard) Recovery() *recovery.Coordinator { return g.recovery }

// Cooldowns returns the cooldown calculator.
func (g *Guard) Cooldowns() *cooldown.Calculator { return g.calc }

// Credentials returns the credential pool.
func (g *Guard) Credentials() *credential.Pool { return g.pool }
