package bus

import (
	"context"

	"pulse/internal/models"
)

// nopBus satisfies Bus when no brokers are configured. Produce calls are
// accepted and dropped.
type nopBus struct{}

// NewNop returns a Bus that drops everything.
func NewNop() Bus { return nopBus{} }

func (nopBus) ProduceMetrics(ctx context.Context, entityID string, fields map[string]float64) error {
	return nil
}
func (nopBus) ProduceAlert(ctx context.Context, alert models.Alert) error { return nil }
func (nopBus) HealthCheck(ctx context.Context) error                      { return nil }
func (nopBus) Close() error                                               { return nil }
