package stats

import (
	"sync"
	"testing"
	"time"
)

func TestStatsCounters(t *testing.T) {
	s := New()

	s.AddSamples(3)
	s.AddAlerts(2)
	s.JobCompleted()
	s.AddError()

	snap := s.Snapshot()
	if snap.SamplesProcessed != 3 {
		t.Errorf("SamplesProcessed = %d, want 3", snap.SamplesProcessed)
	}
	if snap.AlertsProcessed != 2 {
		t.Errorf("AlertsProcessed = %d, want 2", snap.AlertsProcessed)
	}
	if snap.BatchJobsCompleted != 1 {
		t.Errorf("BatchJobsCompleted = %d, want 1", snap.BatchJobsCompleted)
	}
	if snap.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", snap.ErrorCount)
	}
	if snap.LastProcessedAt.IsZero() {
		t.Error("LastProcessedAt not set")
	}
}

func TestStatsRunningFlag(t *testing.T) {
	s := New()
	if s.IsRunning() {
		t.Error("new stats reports running")
	}

	started := time.Now().UTC()
	s.MarkStarted(started)
	if !s.IsRunning() {
		t.Error("not running after MarkStarted")
	}
	if got := s.Snapshot().StartedAt; !got.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got, started)
	}

	s.AddSamples(5)
	s.MarkStopped()
	if s.IsRunning() {
		t.Error("still running after MarkStopped")
	}
	// Stopping does not reset counters.
	if got := s.Snapshot().SamplesProcessed; got != 5 {
		t.Errorf("SamplesProcessed = %d after stop, want 5", got)
	}
}

func TestStatsConcurrentWriters(t *testing.T) {
	s := New()

	const goroutines = 20
	const perGoroutine = 500

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				s.AddSamples(1)
				s.AddError()
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if want := uint64(goroutines * perGoroutine); snap.SamplesProcessed != want {
		t.Errorf("SamplesProcessed = %d, want %d (lost updates)", snap.SamplesProcessed, want)
	}
	if want := uint64(goroutines * perGoroutine); snap.ErrorCount != want {
		t.Errorf("ErrorCount = %d, want %d (lost updates)", snap.ErrorCount, want)
	}
}

func TestStatsMonotonic(t *testing.T) {
	s := New()

	var prev uint64
	for i := 0; i < 100; i++ {
		s.AddSamples(1)
		got := s.Snapshot().SamplesProcessed
		if got < prev {
			t.Fatalf("SamplesProcessed decreased: %d -> %d", prev, got)
		}
		prev = got
	}
}
