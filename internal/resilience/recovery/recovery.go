// Package recovery decides whether a failed iteration is recovered locally
// and which parts of the loop context are purged before the retry.
package recovery

import (
	"log/slog"
	"time"

	"github.com/vietddude/loopguard/internal/core/domain"
)

// Strategy lists the remediation actions for one classification.
type Strategy struct {
	CleanContext         bool `yaml:"clean_context"          json:"clean_context"`
	ProvideValidEntities bool `yaml:"provide_valid_entities" json:"provide_valid_entities"`
	IncreaseTimeout      bool `yaml:"increase_timeout"       json:"increase_timeout"`
	ExponentialBackoff   bool `yaml:"exponential_backoff"    json:"exponential_backoff"`
	MaxAttempts          int  `yaml:"max_attempts"           json:"max_attempts"`
}

// ContextCleaning toggles each purgeable context segment.
type ContextCleaning struct {
	ExecutionLog bool `yaml:"execution_log"`
	ReasoningLog bool `yaml:"reasoning_log"` // preserved by default for continuity
	APIUsage     bool `yaml:"api_usage"`
	Console      bool `yaml:"console"`
}

// SilentRecovery gates transparent local recovery and its optional actions.
type SilentRecovery struct {
	Enabled             bool `yaml:"enabled"`
	InjectValidEntities bool `yaml:"inject_valid_entities"`
	RestateReasoning    bool `yaml:"restate_reasoning"`
	AttachErrorContext  bool `yaml:"attach_error_context"`
}

// Config holds recovery configuration.
type Config struct {
	MaxRecoveryAttempts int                                `yaml:"max_recovery_attempts"`
	Recoverable         []domain.Classification            `yaml:"recoverable"`
	NonRecoverable      []domain.Classification            `yaml:"non_recoverable"`
	ContextCleaning     ContextCleaning                    `yaml:"context_cleaning"`
	SilentRecovery      SilentRecovery                     `yaml:"silent_recovery"`
	Strategies          map[domain.Classification]Strategy `yaml:"strategies"`
}

// DefaultConfig returns the default recovery tables.
func DefaultConfig() Config {
	return Config{
		MaxRecoveryAttempts: 2,
		Recoverable: []domain.Classification{
			domain.ClassTransientReference,
			domain.ClassTimeout,
			domain.ClassNetwork,
			domain.ClassRateLimit,
			domain.ClassTypeMismatch,
			domain.ClassSyntax,
		},
		NonRecoverable: []domain.Classification{
			domain.ClassValidation,
			domain.ClassAuthentication,
			domain.ClassCancelled,
		},
		ContextCleaning: ContextCleaning{
			ExecutionLog: true,
			ReasoningLog: false,
			APIUsage:     true,
			Console:      true,
		},
		SilentRecovery: SilentRecovery{
			Enabled:             true,
			InjectValidEntities: true,
			RestateReasoning:    true,
			AttachErrorContext:  true,
		},
		Strategies: map[domain.Classification]Strategy{
			domain.ClassTransientReference: {
				CleanContext:         true,
				ProvideValidEntities: true,
				MaxAttempts:          2,
			},
			domain.ClassTimeout: {
				IncreaseTimeout:    true,
				ExponentialBackoff: true,
				MaxAttempts:        2,
			},
			domain.ClassNetwork: {
				ExponentialBackoff: true,
				MaxAttempts:        3,
			},
			domain.ClassRateLimit: {
				ExponentialBackoff: true,
				MaxAttempts:        2,
			},
			domain.ClassTypeMismatch: {
				CleanContext:         true,
				ProvideValidEntities: true,
				MaxAttempts:          1,
			},
			domain.ClassSyntax: {
				CleanContext: true,
				MaxAttempts:  1,
			},
		},
	}
}

// ErrorContext is attached to the next request so the engine can see what failed.
type ErrorContext struct {
	Classification domain.Classification `json:"classification"`
	Message        string                `json:"message"`
	Attempt        int                   `json:"attempt"`
	Timestamp      time.Time             `json:"timestamp"`
}

// Request describes a failed attempt.
type Request struct {
	Classification   domain.Classification
	Err              error
	Attempt          int // the attempt that just failed, 1-indexed
	RecoveryAttempts int // recoveries already performed for this iteration
	ValidEntityIDs   []string
	LastReasoning    string
}

// Plan is the recovery decision for a failed attempt.
type Plan struct {
	Recover           bool          `json:"recover"`
	Reason            string        `json:"reason,omitempty"`
	Strategy          Strategy      `json:"strategy"`
	Clean             []Segment     `json:"clean,omitempty"`
	InjectEntityIDs   []string      `json:"inject_entity_ids,omitempty"`
	RestatedReasoning string        `json:"restated_reasoning,omitempty"`
	ErrorContext      *ErrorContext `json:"error_context,omitempty"`
}

// Coordinator classifies failures and builds recovery plans.
type Coordinator struct {
	cfg            Config
	recoverable    map[domain.Classification]struct{}
	nonRecoverable map[domain.Classification]struct{}
	now            func() time.Time
	log            *slog.Logger
}

// NewCoordinator creates a coordinator from cfg.
func NewCoordinator(cfg Config, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxRecoveryAttempts < 0 {
		cfg.MaxRecoveryAttempts = 0
	}
	if cfg.Strategies == nil {
		cfg.Strategies = make(map[domain.Classification]Strategy)
	}

	c := &Coordinator{
		cfg:            cfg,
		recoverable:    make(map[domain.Classification]struct{}, len(cfg.Recoverable)),
		nonRecoverable: make(map[domain.Classification]struct{}, len(cfg.NonRecoverable)),
		now:            time.Now,
		log:            log.With("component", "recovery"),
	}
	for _, class := range cfg.Recoverable {
		c.recoverable[class] = struct{}{}
	}
	for _, class := range cfg.NonRecoverable {
		c.nonRecoverable[class] = struct{}{}
	}
	return c
}

// IsRecoverable reports whether recovery may be attempted for class.
// The non-recoverable list wins when a classification is in both.
func (c *Coordinator) IsRecoverable(class domain.Classification) bool {
	if _, ok := c.nonRecoverable[class]; ok {
		return false
	}
	_, ok := c.recoverable[class]
	return ok
}

// IsNonRecoverable reports whether class is explicitly listed as non-recoverable.
func (c *Coordinator) IsNonRecoverable(class domain.Classification) bool {
	_, ok := c.nonRecoverable[class]
	return ok
}

// GetRecoveryStrategy returns the strategy for class. ok is false when
// no strategy is configured, meaning no recovery.
func (c *Coordinator) GetRecoveryStrategy(class domain.Classification) (Strategy, bool) {
	s, ok := c.cfg.Strategies[class]
	return s, ok
}

// MaxRecoveryAttempts returns the global recovery cap.
func (c *Coordinator) MaxRecoveryAttempts() int {
	return c.cfg.MaxRecoveryAttempts
}

// CanAttempt reports whether another recovery fits in the global cap.
func (c *Coordinator) CanAttempt(recoveryAttempts int) bool {
	return recoveryAttempts < c.cfg.MaxRecoveryAttempts
}

// SegmentsToClean returns the context segments enabled for cleaning.
func (c *Coordinator) SegmentsToClean() []Segment {
	cc := c.cfg.ContextCleaning
	var out []Segment
	if cc.ExecutionLog {
		out = append(out, SegmentExecutionLog)
	}
	if cc.ReasoningLog {
		out = append(out, SegmentReasoningLog)
	}
	if cc.APIUsage {
		out = append(out, SegmentAPIUsage)
	}
	if cc.Console {
		out = append(out, SegmentConsole)
	}
	return out
}

// Plan builds the recovery plan for a failed attempt.
func (c *Coordinator) Plan(req Request) Plan {
	if !c.cfg.SilentRecovery.Enabled {
		return Plan{Reason: "silent recovery disabled"}
	}
	if !c.IsRecoverable(req.Classification) {
		return Plan{Reason: "classification not recoverable"}
	}

	strategy, ok := c.GetRecoveryStrategy(req.Classification)
	if !ok {
		return Plan{Reason: "no recovery strategy"}
	}
	if !c.CanAttempt(req.RecoveryAttempts) {
		return Plan{Strategy: strategy, Reason: "recovery attempts exhausted"}
	}
	if strategy.MaxAttempts > 0 && req.RecoveryAttempts >= strategy.MaxAttempts {
		return Plan{Strategy: strategy, Reason: "strategy attempts exhausted"}
	}

	plan := Plan{Recover: true, Strategy: strategy}
	if strategy.CleanContext {
		plan.Clean = c.SegmentsToClean()
	}

	silent := c.cfg.SilentRecovery
	if strategy.ProvideValidEntities && silent.InjectValidEntities && len(req.ValidEntityIDs) > 0 {
		plan.InjectEntityIDs = append([]string(nil), req.ValidEntityIDs...)
	}
	if silent.RestateReasoning && req.LastReasoning != "" {
		plan.RestatedReasoning = req.LastReasoning
	}
	if silent.AttachErrorContext {
		msg := ""
		if req.Err != nil {
			msg = req.Err.Error()
		}
		plan.ErrorContext = &ErrorContext{
			Classification: req.Classification,
			Message:        msg,
			Attempt:        req.Attempt,
			Timestamp:      c.now(),
		}
	}

	c.log.Debug("Recovery planned",
		"classification", req.Classification,
		"recovery_attempt", req.RecoveryAttempts+1,
		"clean", len(plan.Clean),
		"inject", len(plan.InjectEntityIDs),
	)
	return plan
}
