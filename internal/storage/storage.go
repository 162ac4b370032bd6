package storage

import (
	"context"
	"time"
)

// Entity kinds tagged onto stored samples
const (
	KindServer      = "server"
	KindApplication = "application"
)

// Row is one stored sample or aggregate, tagged by entity.
type Row struct {
	Measurement string            `json:"measurement"`
	EntityKind  string            `json:"entity_kind,omitempty"`
	EntityID    string            `json:"entity_id"`
	Fields      map[string]float64 `json:"fields"`
	Tags        map[string]string `json:"tags,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Store is the narrow contract the pipeline has on the external time-series
// store. Failures never propagate as crashes; callers catch and log them.
type Store interface {
	// WriteSample persists one canonical sample for an entity.
	WriteSample(ctx context.Context, entityKind, entityID string, fields map[string]float64, tags map[string]string, ts time.Time) error

	// QuerySince returns all sample rows newer than now-d.
	QuerySince(ctx context.Context, d time.Duration) ([]Row, error)

	// WriteAggregate persists a named aggregate row.
	WriteAggregate(ctx context.Context, name string, tags map[string]string, fields map[string]float64, ts time.Time) error

	// PurgeOlderThan deletes samples older than the retention period and
	// reports how many rows were removed, when the backend can tell.
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)

	// CreateBackup exports a full snapshot of stored rows.
	CreateBackup(ctx context.Context) ([]Row, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	Close() error
}
