package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a bounded in-memory Store for local dev and tests. When the
// buffer is full the oldest rows are evicted first.
type MemoryStore struct {
	mu         sync.RWMutex
	samples    []Row
	aggregates []Row
	capacity   int
}

// NewMemoryStore creates a store retaining at most capacity sample rows.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryStore{
		samples:  make([]Row, 0, capacity),
		capacity: capacity,
	}
}

func (s *MemoryStore) WriteSample(ctx context.Context, entityKind, entityID string, fields map[string]float64, tags map[string]string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.samples) >= s.capacity {
		s.samples = s.samples[1:]
	}
	s.samples = append(s.samples, Row{
		Measurement: "metrics",
		EntityKind:  entityKind,
		EntityID:    entityID,
		Fields:      copyFields(fields),
		Tags:        copyTags(tags),
		Timestamp:   ts,
	})
	return nil
}

func (s *MemoryStore) QuerySince(ctx context.Context, d time.Duration) ([]Row, error) {
	cutoff := time.Now().Add(-d)

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Rows are appended in arrival order; copy so callers cannot race with
	// later writes.
	var out []Row
	for _, row := range s.samples {
		if row.Timestamp.After(cutoff) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *MemoryStore) WriteAggregate(ctx context.Context, name string, tags map[string]string, fields map[string]float64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.aggregates) >= s.capacity {
		s.aggregates = s.aggregates[1:]
	}
	s.aggregates = append(s.aggregates, Row{
		Measurement: name,
		Fields:      copyFields(fields),
		Tags:        copyTags(tags),
		EntityID:    tags["entity_id"],
		Timestamp:   ts,
	})
	return nil
}

func (s *MemoryStore) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.samples[:0]
	purged := 0
	for _, row := range s.samples {
		if row.Timestamp.After(cutoff) {
			kept = append(kept, row)
		} else {
			purged++
		}
	}
	s.samples = kept
	return purged, nil
}

func (s *MemoryStore) CreateBackup(ctx context.Context) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Row, 0, len(s.samples)+len(s.aggregates))
	out = append(out, s.samples...)
	out = append(out, s.aggregates...)
	return out, nil
}

func (s *MemoryStore) HealthCheck(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// Aggregates returns stored aggregate rows, for tests.
func (s *MemoryStore) Aggregates() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Row, len(s.aggregates))
	copy(out, s.aggregates)
	return out
}

// Len reports the number of retained sample rows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

func copyFields(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyTags(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
