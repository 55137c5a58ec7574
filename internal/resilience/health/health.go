// Package health tracks the trajectory of a reasoning loop and gates continuation.
package health

import "time"

// Status represents the health state of a session loop.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
	StatusDisabled Status = "disabled"
)

// Severity of a reported issue.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// IterationData is the telemetry recorded for one loop iteration.
type IterationData struct {
	IterationNumber   int           `json:"iteration_number"`
	Timestamp         time.Time     `json:"timestamp"`
	Success           bool          `json:"success"`
	Cancelled         bool          `json:"cancelled,omitempty"`
	Classification    string        `json:"classification,omitempty"`
	Error             string        `json:"error,omitempty"`
	OperationsApplied int           `json:"operations_applied,omitempty"`
	Duration          time.Duration `json:"duration,omitempty"`
}

// Issue is a problem reported outside the iteration stream.
type Issue struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// Thresholds drive status transitions.
// Counts trigger when reached; rates trigger when strictly exceeded.
type Thresholds struct {
	ConsecutiveErrorsDegraded int     `yaml:"consecutive_errors_degraded" json:"consecutive_errors_degraded"`
	ConsecutiveErrorsCritical int     `yaml:"consecutive_errors_critical" json:"consecutive_errors_critical"`
	ErrorRateDegraded         float64 `yaml:"error_rate_degraded"         json:"error_rate_degraded"`
	ErrorRateCritical         float64 `yaml:"error_rate_critical"         json:"error_rate_critical"`
	MinProgressRate           float64 `yaml:"min_progress_rate"           json:"min_progress_rate"`
	MinIterationsForRate      int     `yaml:"min_iterations_for_rate"     json:"min_iterations_for_rate"`
	CriticalIssues            int     `yaml:"critical_issues"             json:"critical_issues"`
}

// DefaultThresholds returns the default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ConsecutiveErrorsDegraded: 2,
		ConsecutiveErrorsCritical: 5,
		ErrorRateDegraded:         0.25,
		ErrorRateCritical:         0.5,
		MinProgressRate:           0.3,
		MinIterationsForRate:      5,
		CriticalIssues:            3,
	}
}

// ThresholdsPatch is a partial threshold update. Nil fields are left
// unchanged, so a threshold can be set to zero.
type ThresholdsPatch struct {
	ConsecutiveErrorsDegraded *int     `json:"consecutive_errors_degraded,omitempty"`
	ConsecutiveErrorsCritical *int     `json:"consecutive_errors_critical,omitempty"`
	ErrorRateDegraded         *float64 `json:"error_rate_degraded,omitempty"`
	ErrorRateCritical         *float64 `json:"error_rate_critical,omitempty"`
	MinProgressRate           *float64 `json:"min_progress_rate,omitempty"`
	MinIterationsForRate      *int     `json:"min_iterations_for_rate,omitempty"`
	CriticalIssues            *int     `json:"critical_issues,omitempty"`
}

func (p ThresholdsPatch) apply(t Thresholds) Thresholds {
	if p.ConsecutiveErrorsDegraded != nil {
		t.ConsecutiveErrorsDegraded = *p.ConsecutiveErrorsDegraded
	}
	if p.ConsecutiveErrorsCritical != nil {
		t.ConsecutiveErrorsCritical = *p.ConsecutiveErrorsCritical
	}
	if p.ErrorRateDegraded != nil {
		t.ErrorRateDegraded = *p.ErrorRateDegraded
	}
	if p.ErrorRateCritical != nil {
		t.ErrorRateCritical = *p.ErrorRateCritical
	}
	if p.MinProgressRate != nil {
		t.MinProgressRate = *p.MinProgressRate
	}
	if p.MinIterationsForRate != nil {
		t.MinIterationsForRate = *p.MinIterationsForRate
	}
	if p.CriticalIssues != nil {
		t.CriticalIssues = *p.CriticalIssues
	}
	return t
}

// merge overlays the non-zero fields of patch onto t. Used when building a
// monitor from Config, where zero means "use the default".
func (t Thresholds) merge(patch Thresholds) Thresholds {
	if patch.ConsecutiveErrorsDegraded > 0 {
		t.ConsecutiveErrorsDegraded = patch.ConsecutiveErrorsDegraded
	}
	if patch.ConsecutiveErrorsCritical > 0 {
		t.ConsecutiveErrorsCritical = patch.ConsecutiveErrorsCritical
	}
	if patch.ErrorRateDegraded > 0 {
		t.ErrorRateDegraded = patch.ErrorRateDegraded
	}
	if patch.ErrorRateCritical > 0 {
		t.ErrorRateCritical = patch.ErrorRateCritical
	}
	if patch.MinProgressRate > 0 {
		t.MinProgressRate = patch.MinProgressRate
	}
	if patch.MinIterationsForRate > 0 {
		t.MinIterationsForRate = patch.MinIterationsForRate
	}
	if patch.CriticalIssues > 0 {
		t.CriticalIssues = patch.CriticalIssues
	}
	return t
}

// Metrics are derived from the iteration history.
type Metrics struct {
	TotalIterations   int     `json:"total_iterations"`
	FailedIterations  int     `json:"failed_iterations"`
	ConsecutiveErrors int     `json:"consecutive_errors"`
	ErrorRate         string  `json:"error_rate"` // e.g. "12.5%"
	ProgressRate      float64 `json:"progress_rate"`
}

// Report is the answer to GetHealthStatus.
type Report struct {
	Status       Status  `json:"status"`
	RecentIssues []Issue `json:"recent_issues"`
	Metrics      Metrics `json:"metrics"`
	Score        int     `json:"score"`
}

// Export is an audit snapshot. It is not meant for resuming state.
type Export struct {
	Status     Status          `json:"status"`
	History    []IterationData `json:"history"`
	Issues     []Issue         `json:"issues"`
	Thresholds Thresholds      `json:"thresholds"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Config holds health monitor configuration.
type Config struct {
	Enabled          bool          `yaml:"enabled"`
	HistoryCapacity  int           `yaml:"history_capacity"`
	ExcludeCancelled bool          `yaml:"exclude_cancelled"`
	IssueRetention   time.Duration `yaml:"issue_retention"`
	MaxIssues        int           `yaml:"max_issues"`
	Thresholds       Thresholds    `yaml:"thresholds"`
}

// DefaultConfig returns the default health configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		HistoryCapacity:  50,
		ExcludeCancelled: false,
		IssueRetention:   30 * time.Minute,
		MaxIssues:        100,
		Thresholds:       DefaultThresholds(),
	}
}

// Monitor is the capability shared by the active and disabled monitors.
type Monitor interface {
	RecordIteration(data IterationData)
	ReportIssue(issue Issue)
	Status() Status
	GetHealthStatus() Report
	IsHealthy() bool
	IsDegraded() bool
	IsCritical() bool
	UpdateThresholds(patch ThresholdsPatch)
	GetThresholds() Thresholds
	Reset()
	ExportData() Export
}

// New selects the monitor variant from cfg.
func New(cfg Config) Monitor {
	if !cfg.Enabled {
		return NewDisabledMonitor()
	}
	return NewActiveMonitor(cfg)
}
