package retry

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/vietddude/loopguard/internal/core/domain"
)

// Config holds retry configuration.
type Config struct {
	DefaultPolicy  string                           `yaml:"default_policy"`
	Policies       map[string]Policy                `yaml:"policies"`
	ErrorPolicies  map[domain.Classification]string `yaml:"error_policies"`
	JitterFraction float64                          `yaml:"jitter_fraction"`
}

// DefaultConfig returns the built-in policies and error overrides.
func DefaultConfig() Config {
	return Config{
		DefaultPolicy: PolicyExponential,
		Policies:      DefaultPolicies(),
		ErrorPolicies: map[domain.Classification]string{
			domain.ClassTransientReference: PolicyImmediate,
			domain.ClassTimeout:            PolicyConservative,
			domain.ClassNetwork:            PolicyAggressive,
			domain.ClassRateLimit:          PolicyConservative,
			domain.ClassValidation:         PolicyNone,
			domain.ClassTypeMismatch:       PolicyImmediate,
			domain.ClassSyntax:             PolicyImmediate,
			domain.ClassAuthentication:     PolicyNone,
			domain.ClassCancelled:          PolicyNone,
		},
		JitterFraction: DefaultJitterFraction,
	}
}

// Export is a diagnostic copy of the manager tables.
type Export struct {
	DefaultPolicy string                           `json:"default_policy"`
	Policies      map[string]Policy                `json:"policies"`
	ErrorPolicies map[domain.Classification]string `json:"error_policies"`
}

// Manager is a mutable registry of named policies.
type Manager struct {
	mu             sync.RWMutex
	policies       map[string]Policy
	errorPolicies  map[domain.Classification]string
	defaultPolicy  string
	jitterFraction float64
	random         func() float64
}

// NewManager creates a manager seeded with the built-in policies, then cfg on top.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{
		policies:       DefaultPolicies(),
		errorPolicies:  make(map[domain.Classification]string),
		defaultPolicy:  cfg.DefaultPolicy,
		jitterFraction: cfg.JitterFraction,
		random:         rand.Float64,
	}
	if m.defaultPolicy == "" {
		m.defaultPolicy = PolicyExponential
	}
	if m.jitterFraction <= 0 {
		m.jitterFraction = DefaultJitterFraction
	}

	for name, p := range cfg.Policies {
		if err := m.RegisterPolicy(name, p); err != nil {
			return nil, err
		}
	}
	for class, name := range cfg.ErrorPolicies {
		m.RegisterErrorPolicy(class, name)
	}

	if _, ok := m.policies[m.defaultPolicy]; !ok {
		return nil, fmt.Errorf("unknown default retry policy %q", m.defaultPolicy)
	}
	return m, nil
}

// SetRandom replaces the random source used for jitter. r must return values in [0, 1).
func (m *Manager) SetRandom(r func() float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.random = r
}

// GetPolicy returns the named policy, or the none policy if unknown.
func (m *Manager) GetPolicy(name string) Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPolicyUnsafe(name)
}

func (m *Manager) getPolicyUnsafe(name string) Policy {
	if p, ok := m.policies[name]; ok {
		return p
	}
	return m.policies[PolicyNone]
}

// PolicyNameForError resolves the policy name for a classification.
func (m *Manager) PolicyNameForError(class domain.Classification) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name, ok := m.errorPolicies[class]; ok {
		return name
	}
	return m.defaultPolicy
}

// GetPolicyForError resolves a classification through the error map,
// falling back to the default policy.
func (m *Manager) GetPolicyForError(class domain.Classification) Policy {
	return m.GetPolicy(m.PolicyNameForError(class))
}

// RegisterPolicy adds or replaces a named policy.
func (m *Manager) RegisterPolicy(name string, p Policy) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPolicy)
	}
	p.Name = name
	if err := p.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[name] = p
	return nil
}

// RegisterErrorPolicy maps a classification to a policy name.
// Unknown names are accepted and resolve to none at lookup time.
func (m *Manager) RegisterErrorPolicy(class domain.Classification, policyName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorPolicies[class] = policyName
}

// DefaultPolicyName returns the fallback policy name.
func (m *Manager) DefaultPolicyName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultPolicy
}

// Backoff returns the wait before attempt, jittered when the policy enables it.
func (m *Manager) Backoff(p Policy, attempt int) time.Duration {
	d := p.Delay(attempt)
	if !p.JitterEnabled || d == 0 {
		return d
	}

	m.mu.RLock()
	r, fraction := m.random(), m.jitterFraction
	m.mu.RUnlock()
	return Jitter(d, fraction, r, p.MaxDelay)
}

// ExportPolicies returns a copy of both tables.
func (m *Manager) ExportPolicies() Export {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := Export{
		DefaultPolicy: m.defaultPolicy,
		Policies:      make(map[string]Policy, len(m.policies)),
		ErrorPolicies: make(map[domain.Classification]string, len(m.errorPolicies)),
	}
	for k, v := range m.policies {
		out.Policies[k] = v
	}
	for k, v := range m.errorPolicies {
		out.ErrorPolicies[k] = v
	}
	return out
}
