package correlate

import (
	"fmt"
	"time"

	"pulse/internal/models"
)

// Correlator assigns a correlation identity to candidate alerts and stamps
// them processed. Implementations must be deterministic for identical
// (entity id, type) pairs.
type Correlator interface {
	Correlate(alert models.Alert) models.Alert
}

// KeyCorrelator tags same-type-same-entity alerts with a shared key so a
// downstream consumer can group them. It deliberately does no time-window
// clustering and holds no state.
type KeyCorrelator struct {
	now func() time.Time
}

// New returns the default key-tagging correlator.
func New() *KeyCorrelator {
	return &KeyCorrelator{now: time.Now}
}

// NewWithClock returns a correlator with an injected clock, for tests.
func NewWithClock(now func() time.Time) *KeyCorrelator {
	return &KeyCorrelator{now: now}
}

// Correlate sets the correlation key and the processed stamp. The alert is
// not mutated again by the pipeline after this call.
func (c *KeyCorrelator) Correlate(alert models.Alert) models.Alert {
	alert.CorrelationKey = Key(alert.EntityID, alert.Type)
	alert.Processed = true
	alert.ProcessedAt = c.now()
	return alert
}

// Key derives the correlation key for an entity/alert-type pair.
func Key(entityID, alertType string) string {
	return fmt.Sprintf("%s:%s", entityID, alertType)
}
