package stats

import (
	"sync"
	"time"
)

// Stats holds the pipeline's running counters. Every component mutates it
// concurrently, so all access goes through the mutex. Counters are monotonic
// for the process lifetime and reset only on restart.
type Stats struct {
	mu sync.Mutex

	samplesProcessed   uint64
	alertsProcessed    uint64
	batchJobsCompleted uint64
	errorCount         uint64
	lastProcessedAt    time.Time
	startedAt          time.Time
	running            bool
}

// Snapshot is a point-in-time copy of the counters, safe to hand to callers.
type Snapshot struct {
	SamplesProcessed   uint64    `json:"samples_processed"`
	AlertsProcessed    uint64    `json:"alerts_processed"`
	BatchJobsCompleted uint64    `json:"batch_jobs_completed"`
	ErrorCount         uint64    `json:"error_count"`
	LastProcessedAt    time.Time `json:"last_processed_at"`
	StartedAt          time.Time `json:"started_at"`
	IsRunning          bool      `json:"is_running"`
}

// New returns a zeroed stats instance.
func New() *Stats {
	return &Stats{}
}

// MarkStarted records the start time and flips the running flag.
func (s *Stats) MarkStarted(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startedAt = now
	s.running = true
}

// MarkStopped clears the running flag. Counters are left intact.
func (s *Stats) MarkStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// AddSamples records n processed samples and bumps the last-processed time.
func (s *Stats) AddSamples(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samplesProcessed += n
	s.lastProcessedAt = time.Now()
}

// AddAlerts records n processed alerts.
func (s *Stats) AddAlerts(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertsProcessed += n
}

// JobCompleted records one finished batch job.
func (s *Stats) JobCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchJobsCompleted++
}

// AddError records one collaborator or job failure.
func (s *Stats) AddError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCount++
}

// IsRunning reports whether the pipeline is accepting work.
func (s *Stats) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Snapshot returns a consistent copy of all counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SamplesProcessed:   s.samplesProcessed,
		AlertsProcessed:    s.alertsProcessed,
		BatchJobsCompleted: s.batchJobsCompleted,
		ErrorCount:         s.errorCount,
		LastProcessedAt:    s.lastProcessedAt,
		StartedAt:          s.startedAt,
		IsRunning:          s.running,
	}
}
