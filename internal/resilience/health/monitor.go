package health

import (
	"fmt"
	"sync"
	"time"
)

const recentIssueCount = 5
const exportHistoryCount = 10

// ActiveMonitor accumulates iteration telemetry and derives a status.
type ActiveMonitor struct {
	mu sync.RWMutex

	cfg        Config
	thresholds Thresholds
	history    []IterationData // bounded, oldest evicted first
	issues     []Issue
	status     Status
	metrics    Metrics
	now        func() time.Time
}

// NewActiveMonitor creates a monitor, filling zero config fields from DefaultConfig.
func NewActiveMonitor(cfg Config) *ActiveMonitor {
	def := DefaultConfig()
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = def.HistoryCapacity
	}
	if cfg.IssueRetention <= 0 {
		cfg.IssueRetention = def.IssueRetention
	}
	if cfg.MaxIssues <= 0 {
		cfg.MaxIssues = def.MaxIssues
	}

	m := &ActiveMonitor{
		cfg:        cfg,
		thresholds: def.Thresholds.merge(cfg.Thresholds),
		history:    make([]IterationData, 0, cfg.HistoryCapacity),
		now:        time.Now,
	}
	m.analyzeUnsafe()
	return m
}

// RecordIteration appends telemetry for one iteration and re-evaluates status.
func (m *ActiveMonitor) RecordIteration(data IterationData) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if data.Timestamp.IsZero() {
		data.Timestamp = m.now()
	}

	if len(m.history) >= m.cfg.HistoryCapacity {
		// Shift elements left, drop oldest
		copy(m.history, m.history[1:])
		m.history[len(m.history)-1] = data
	} else {
		m.history = append(m.history, data)
	}

	m.analyzeUnsafe()
}

// ReportIssue appends an issue and re-evaluates status.
func (m *ActiveMonitor) ReportIssue(issue Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if issue.Timestamp.IsZero() {
		issue.Timestamp = m.now()
	}
	if issue.Severity == "" {
		issue.Severity = SeverityWarning
	}
	m.issues = append(m.issues, issue)

	m.analyzeUnsafe()
}

func (m *ActiveMonitor) counted(d IterationData) bool {
	return !(d.Cancelled && m.cfg.ExcludeCancelled)
}

// analyzeUnsafe recomputes metrics and status. Caller holds the lock.
func (m *ActiveMonitor) analyzeUnsafe() {
	m.pruneIssuesUnsafe()

	var total, failed, consecutive int
	for _, d := range m.history {
		if !m.counted(d) {
			continue
		}
		total++
		if !d.Success {
			failed++
		}
	}

	// Trailing run of failed iterations
	for i := len(m.history) - 1; i >= 0; i-- {
		d := m.history[i]
		if !m.counted(d) {
			continue
		}
		if d.Success {
			break
		}
		consecutive++
	}

	errorRate := 0.0
	progressRate := 1.0
	if total > 0 {
		errorRate = float64(failed) / float64(total)
		progressRate = float64(total-failed) / float64(total)
	}

	m.metrics = Metrics{
		TotalIterations:   total,
		FailedIterations:  failed,
		ConsecutiveErrors: consecutive,
		ErrorRate:         fmt.Sprintf("%.1f%%", errorRate*100),
		ProgressRate:      progressRate,
	}

	criticalIssues := 0
	for _, is := range m.issues {
		if is.Severity == SeverityCritical {
			criticalIssues++
		}
	}

	t := m.thresholds
	rateSignificant := total >= t.MinIterationsForRate

	switch {
	case consecutive >= t.ConsecutiveErrorsCritical,
		rateSignificant && errorRate > t.ErrorRateCritical,
		criticalIssues >= t.CriticalIssues:
		m.status = StatusCritical
	case consecutive >= t.ConsecutiveErrorsDegraded,
		rateSignificant && errorRate > t.ErrorRateDegraded,
		rateSignificant && progressRate < t.MinProgressRate,
		criticalIssues > 0:
		m.status = StatusDegraded
	default:
		m.status = StatusHealthy
	}
}

func (m *ActiveMonitor) pruneIssuesUnsafe() {
	if len(m.issues) == 0 {
		return
	}

	cutoff := m.now().Add(-m.cfg.IssueRetention)
	kept := m.issues[:0]
	for _, is := range m.issues {
		if is.Timestamp.After(cutoff) {
			kept = append(kept, is)
		}
	}
	if len(kept) > m.cfg.MaxIssues {
		kept = kept[len(kept)-m.cfg.MaxIssues:]
	}
	m.issues = kept
}

// Status returns the current status.
func (m *ActiveMonitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsHealthy reports whether the status is healthy.
func (m *ActiveMonitor) IsHealthy() bool { return m.Status() == StatusHealthy }

// IsDegraded reports whether the status is degraded.
func (m *ActiveMonitor) IsDegraded() bool { return m.Status() == StatusDegraded }

// IsCritical reports whether the status is critical.
func (m *ActiveMonitor) IsCritical() bool { return m.Status() == StatusCritical }

// GetHealthStatus returns status, recent issues, metrics and a 0-100 score.
func (m *ActiveMonitor) GetHealthStatus() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := len(m.issues) - recentIssueCount
	if start < 0 {
		start = 0
	}
	recent := make([]Issue, len(m.issues)-start)
	copy(recent, m.issues[start:])

	return Report{
		Status:       m.status,
		RecentIssues: recent,
		Metrics:      m.metrics,
		Score:        m.scoreUnsafe(),
	}
}

func (m *ActiveMonitor) scoreUnsafe() int {
	score := m.metrics.ProgressRate * 100
	score -= float64(m.metrics.ConsecutiveErrors * 10)
	for _, is := range m.issues {
		switch is.Severity {
		case SeverityCritical:
			score -= 10
		case SeverityWarning:
			score -= 2
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}

// UpdateThresholds merges the fields set in patch into the thresholds.
func (m *ActiveMonitor) UpdateThresholds(patch ThresholdsPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = patch.apply(m.thresholds)
	m.analyzeUnsafe()
}

// GetThresholds returns the current thresholds.
func (m *ActiveMonitor) GetThresholds() Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.thresholds
}

// Reset clears history and issues. Thresholds are kept.
func (m *ActiveMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = m.history[:0]
	m.issues = nil
	m.analyzeUnsafe()
}

// History returns a copy of the iteration history, oldest first.
func (m *ActiveMonitor) History() []IterationData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]IterationData, len(m.history))
	copy(out, m.history)
	return out
}

// ExportData returns an audit snapshot with the last iterations.
func (m *ActiveMonitor) ExportData() Export {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := len(m.history) - exportHistoryCount
	if start < 0 {
		start = 0
	}
	history := make([]IterationData, len(m.history)-start)
	copy(history, m.history[start:])

	issues := make([]Issue, len(m.issues))
	copy(issues, m.issues)

	return Export{
		Status:     m.status,
		History:    history,
		Issues:     issues,
		Thresholds: m.thresholds,
		Timestamp:  m.now(),
	}
}

// DisabledMonitor satisfies Monitor for deployments where gating is off.
// It never transitions and every query answers healthy.
type DisabledMonitor struct {
	now func() time.Time
}

// NewDisabledMonitor creates a no-op monitor.
func NewDisabledMonitor() *DisabledMonitor {
	return &DisabledMonitor{now: time.Now}
}

func (DisabledMonitor) RecordIteration(IterationData) {}
func (DisabledMonitor) ReportIssue(Issue)             {}
func (DisabledMonitor) Status() Status                { return StatusDisabled }
func (DisabledMonitor) IsHealthy() bool               { return true }
func (DisabledMonitor) IsDegraded() bool              { return false }
func (DisabledMonitor) IsCritical() bool              { return false }
func (DisabledMonitor) GetThresholds() Thresholds     { return Thresholds{} }
func (DisabledMonitor) Reset()                        {}

func (DisabledMonitor) UpdateThresholds(ThresholdsPatch) {}

func (DisabledMonitor) GetHealthStatus() Report {
	return Report{
		Status:       StatusDisabled,
		RecentIssues: []Issue{},
		Metrics:      Metrics{ErrorRate: "0.0%", ProgressRate: 1},
		Score:        100,
	}
}

func (d DisabledMonitor) ExportData() Export {
	now := time.Now
	if d.now != nil {
		now = d.now
	}
	return Export{
		Status:    StatusDisabled,
		History:   []IterationData{},
		Issues:    []Issue{},
		Timestamp: now(),
	}
}
