package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IterationsTotal tracks loop iterations by terminal outcome
	IterationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loopguard_iterations_total",
			Help: "Total number of loop iterations handled",
		},
		[]string{"outcome"},
	)

	// RetriesTotal tracks retry decisions per classification and policy
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loopguard_retries_total",
			Help: "Total number of retries granted",
		},
		[]string{"classification", "policy"},
	)

	// RecoveriesTotal tracks recovery plans executed per classification
	RecoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loopguard_recoveries_total",
			Help: "Total number of local recoveries planned",
		},
		[]string{"classification"},
	)

	// OperationsTotal tracks applied operations
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loopguard_operations_total",
			Help: "Total number of operations applied to session snapshots",
		},
		[]string{"collection", "action", "status"},
	)

	// CooldownsTotal tracks credential cooldowns started
	CooldownsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loopguard_cooldowns_total",
			Help: "Total number of credential cooldowns started",
		},
		[]string{"category"},
	)

	// CooldownDuration tracks the rest durations handed out
	CooldownDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loopguard_cooldown_duration_seconds",
			Help:    "Credential cooldown duration in seconds",
			Buckets: []float64{10, 30, 45, 60, 90, 120, 180, 300},
		},
		[]string{"category"},
	)

	// SessionHealth tracks session status (0 healthy, 1 degraded, 2 critical, -1 disabled)
	SessionHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "loopguard_session_health",
			Help: "Health status of a session loop",
		},
		[]string{"session"},
	)

	// ActiveSessions tracks the number of live sessions
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loopguard_active_sessions",
			Help: "Number of live sessions",
		},
	)
)
