package health

import (
	"context"
	"sync"
	"time"

	"pulse/internal/logger"
	"pulse/internal/metrics"
	"pulse/internal/publish"
	"pulse/internal/stats"
)

// Checker reports whether a collaborator is reachable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Snapshot is the composite health state published each cycle.
type Snapshot struct {
	BusConnected     bool           `json:"bus_connected"`
	StorageConnected bool           `json:"storage_connected"`
	PipelineRunning  bool           `json:"pipeline_running"`
	Overall          bool           `json:"overall"`
	Stats            stats.Snapshot `json:"stats"`
	Timestamp        time.Time      `json:"timestamp"`
}

// Monitor samples collaborator connectivity and pipeline state on a fixed
// interval and publishes the composite. Purely observational: it never takes
// corrective action.
type Monitor struct {
	bus      Checker
	store    Checker
	pipeline *stats.Stats
	pub      publish.Publisher
	interval time.Duration

	mu      sync.RWMutex
	current Snapshot
}

// New creates a health monitor.
func New(bus, store Checker, pipeline *stats.Stats, pub publish.Publisher, interval time.Duration) *Monitor {
	return &Monitor{
		bus:      bus,
		store:    store,
		pipeline: pipeline,
		pub:      pub,
		interval: interval,
	}
}

// Run checks immediately, then on every tick until cancelled.
func (m *Monitor) Run(ctx context.Context) {
	log := logger.WithComponent("health")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", m.interval).Msg("health monitor started")
	m.check(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("health monitor stopped")
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// Check runs one health cycle and returns the snapshot.
func (m *Monitor) Check(ctx context.Context) Snapshot {
	return m.check(ctx)
}

func (m *Monitor) check(ctx context.Context) Snapshot {
	log := logger.WithComponent("health")

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	busErr := m.bus.HealthCheck(checkCtx)
	storeErr := m.store.HealthCheck(checkCtx)

	snap := Snapshot{
		BusConnected:     busErr == nil,
		StorageConnected: storeErr == nil,
		PipelineRunning:  m.pipeline.IsRunning(),
		Stats:            m.pipeline.Snapshot(),
		Timestamp:        time.Now().UTC(),
	}
	snap.Overall = snap.BusConnected && snap.StorageConnected && snap.PipelineRunning

	if snap.Overall {
		metrics.PipelineHealthy.Set(1)
	} else {
		metrics.PipelineHealthy.Set(0)
		log.Warn().
			Bool("bus", snap.BusConnected).
			Bool("storage", snap.StorageConnected).
			Bool("pipeline", snap.PipelineRunning).
			Msg("pipeline degraded")
	}

	m.mu.Lock()
	m.current = snap
	m.mu.Unlock()

	m.pub.Broadcast(publish.TopicPipelineHealth, snap)
	return snap
}

// Current returns the most recent snapshot.
func (m *Monitor) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}
