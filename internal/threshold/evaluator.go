package threshold

import (
	"fmt"
	"sort"
	"time"

	"pulse/internal/models"
)

// Evaluator compares canonical samples against a rule set and emits
// candidate alerts. Rules are read-only after construction, so Evaluate is
// safe for concurrent use.
type Evaluator struct {
	rules models.RuleSet
}

// NewEvaluator creates an evaluator over the given rules.
func NewEvaluator(rules models.RuleSet) *Evaluator {
	return &Evaluator{rules: rules}
}

// Evaluate emits at most one alert per configured metric: critical when the
// value is at or above the critical level, else warning when at or above the
// warning level. The tiers are mutually exclusive. No hysteresis is applied,
// so a value oscillating around a threshold alerts on every evaluation.
func (e *Evaluator) Evaluate(entityID string, values map[string]float64, now time.Time) []models.Alert {
	// Stable metric order keeps multi-metric output deterministic.
	names := make([]string, 0, len(values))
	for name := range values {
		if _, ok := e.rules[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var alerts []models.Alert
	for _, name := range names {
		rule := e.rules[name]
		value := values[name]

		switch {
		case value >= rule.Critical:
			alerts = append(alerts, newAlert(entityID, name, models.SeverityCritical, value, rule.Critical, now))
		case value >= rule.Warning:
			alerts = append(alerts, newAlert(entityID, name, models.SeverityWarning, value, rule.Warning, now))
		}
	}
	return alerts
}

func newAlert(entityID, metric string, sev models.Severity, value, threshold float64, now time.Time) models.Alert {
	alertType := fmt.Sprintf("%s_%s", metric, sev)
	return models.Alert{
		ID:        alertID(entityID, alertType, now),
		EntityID:  entityID,
		Type:      alertType,
		Severity:  sev,
		Message:   fmt.Sprintf("%s at %.1f exceeds %s threshold %.1f", metric, value, sev, threshold),
		Value:     value,
		Threshold: threshold,
		Timestamp: now,
	}
}

// alertID derives the alert id from entity, type, and a second-granularity
// timestamp component. Rapid consecutive evaluations can collide.
func alertID(entityID, alertType string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d", entityID, alertType, now.Unix())
}
