package models

import "time"

// Severity represents alert severity tiers
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a threshold crossing produced by the evaluator. The correlator
// mutates it exactly once (correlation key, processed stamp); afterwards it
// is handed off and never touched again.
type Alert struct {
	// Derived from entity id, alert type, and a second-granularity
	// timestamp. Rapid consecutive crossings can collide; collisions are
	// accepted and not deduplicated.
	ID string `json:"id"`

	EntityID  string    `json:"entity_id"`
	Type      string    `json:"type"` // e.g. cpu_critical
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`

	CorrelationKey string    `json:"correlation_key,omitempty"`
	Processed      bool      `json:"processed"`
	ProcessedAt    time.Time `json:"processed_at,omitempty"`
}

// ThresholdRule pairs warning and critical levels for one metric.
// Critical must be >= Warning.
type ThresholdRule struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
}

// RuleSet maps metric names to their threshold rules. Read-only during
// processing.
type RuleSet map[string]ThresholdRule

// DefaultServerRules returns the stock thresholds for server metrics.
func DefaultServerRules() RuleSet {
	return RuleSet{
		"cpu":    {Warning: 80, Critical: 95},
		"memory": {Warning: 80, Critical: 90},
		"disk":   {Warning: 85, Critical: 95},
	}
}

// DefaultAppRules returns the stock thresholds for application metrics.
// Response time levels are in milliseconds.
func DefaultAppRules() RuleSet {
	return RuleSet{
		"response_time": {Warning: 1000, Critical: 3000},
	}
}
