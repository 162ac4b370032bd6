package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"pulse/internal/bus"
	"pulse/internal/config"
	"pulse/internal/models"
	"pulse/internal/publish"
	"pulse/internal/storage"
)

type recordingBus struct {
	mu      sync.Mutex
	metrics []string
	alerts  []models.Alert
}

func (b *recordingBus) ProduceMetrics(ctx context.Context, entityID string, fields map[string]float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = append(b.metrics, entityID)
	return nil
}

func (b *recordingBus) ProduceAlert(ctx context.Context, alert models.Alert) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts = append(b.alerts, alert)
	return nil
}

func (b *recordingBus) HealthCheck(ctx context.Context) error { return nil }
func (b *recordingBus) Close() error                          { return nil }

func (b *recordingBus) alertCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.alerts)
}

type capturePublisher struct {
	mu       sync.Mutex
	messages []publish.Message
}

func (c *capturePublisher) Broadcast(topic string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, publish.Message{Topic: topic, Payload: payload})
}

func (c *capturePublisher) alerts() []models.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Alert
	for _, m := range c.messages {
		if m.Topic != publish.TopicAlerts {
			continue
		}
		if wrapper, ok := m.Payload.(map[string]any); ok {
			if alert, ok := wrapper["alert"].(models.Alert); ok {
				out = append(out, alert)
			}
		}
	}
	return out
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.HTTPAddr = "127.0.0.1:0"
	// Long timers keep background cycles out of the assertions.
	cfg.Pipeline.RealtimeInterval = time.Hour
	cfg.Pipeline.HealthInterval = time.Hour
	cfg.Pipeline.SweepInterval = time.Hour
	cfg.Pipeline.Workers = 2
	return cfg
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func startPipeline(t *testing.T) (*Pipeline, *storage.MemoryStore, *recordingBus, *capturePublisher, context.CancelFunc, chan error) {
	t.Helper()

	store := storage.NewMemoryStore(1000)
	b := &recordingBus{}
	pub := &capturePublisher{}
	p := New(testConfig(), store, b, pub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	waitFor(t, func() bool { return p.Stats().IsRunning }, "pipeline start")
	return p, store, b, pub, cancel, errCh
}

func stopPipeline(t *testing.T, cancel context.CancelFunc, errCh chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("pipeline did not shut down")
	}
}

func TestPipelineCriticalAlertFlow(t *testing.T) {
	p, store, b, pub, cancel, errCh := startPipeline(t)
	defer stopPipeline(t, cancel, errCh)

	err := p.ProcessServerMetrics("42", map[string]any{
		"cpu": 96.0, "memory": 40.0, "disk": 20.0,
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("ProcessServerMetrics: %v", err)
	}

	waitFor(t, func() bool { return p.Stats().SamplesProcessed == 1 }, "sample processing")
	waitFor(t, func() bool { return b.alertCount() == 1 }, "alert on bus")

	alerts := pub.alerts()
	if len(alerts) != 1 {
		t.Fatalf("got %d published alerts, want 1", len(alerts))
	}

	a := alerts[0]
	if a.Type != "cpu_critical" {
		t.Errorf("Type = %q, want cpu_critical", a.Type)
	}
	if a.Severity != models.SeverityCritical {
		t.Errorf("Severity = %q", a.Severity)
	}
	if a.Value != 96 {
		t.Errorf("Value = %v, want 96", a.Value)
	}
	if a.Threshold != 95 {
		t.Errorf("Threshold = %v, want 95", a.Threshold)
	}
	if a.CorrelationKey != "42:cpu_critical" {
		t.Errorf("CorrelationKey = %q", a.CorrelationKey)
	}
	if !a.Processed {
		t.Error("alert not marked processed")
	}

	if got := p.Stats().AlertsProcessed; got != 1 {
		t.Errorf("AlertsProcessed = %d, want 1", got)
	}
	if got := store.Len(); got != 1 {
		t.Errorf("stored samples = %d, want 1", got)
	}
	// The alert row went to storage as well.
	if got := len(store.Aggregates()); got != 1 {
		t.Errorf("stored alert rows = %d, want 1", got)
	}
}

func TestPipelineWarningAlertFlow(t *testing.T) {
	p, _, _, pub, cancel, errCh := startPipeline(t)
	defer stopPipeline(t, cancel, errCh)

	if err := p.ProcessServerMetrics("7", map[string]any{"cpu": 82.0}, time.Now().UTC()); err != nil {
		t.Fatalf("ProcessServerMetrics: %v", err)
	}

	waitFor(t, func() bool { return len(pub.alerts()) == 1 }, "warning alert")

	a := pub.alerts()[0]
	if a.Type != "cpu_warning" || a.Severity != models.SeverityWarning {
		t.Errorf("alert = %q/%q, want cpu_warning/warning", a.Type, a.Severity)
	}
	if a.Value != 82 || a.Threshold != 80 {
		t.Errorf("value/threshold = %v/%v, want 82/80", a.Value, a.Threshold)
	}
}

func TestPipelineMalformedInput(t *testing.T) {
	p, store, _, pub, cancel, errCh := startPipeline(t)
	defer stopPipeline(t, cancel, errCh)

	err := p.ProcessServerMetrics("9", map[string]any{"cpu": -5.0, "memory": "abc"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("malformed input rejected: %v", err)
	}

	waitFor(t, func() bool { return p.Stats().SamplesProcessed == 1 }, "sample processing")

	if got := len(pub.alerts()); got != 0 {
		t.Errorf("malformed input produced %d alerts", got)
	}

	rows, _ := store.QuerySince(context.Background(), time.Hour)
	if len(rows) != 1 {
		t.Fatalf("stored rows = %d, want 1", len(rows))
	}
	if rows[0].Fields["cpu"] != 0 || rows[0].Fields["memory"] != 0 {
		t.Errorf("clamped fields = %v, want cpu=0 memory=0", rows[0].Fields)
	}
}

func TestPipelineApplicationMetrics(t *testing.T) {
	p, _, _, pub, cancel, errCh := startPipeline(t)
	defer stopPipeline(t, cancel, errCh)

	err := p.ProcessApplicationMetrics("app-1", "42", map[string]any{
		"response_time": 3500.0, "request_count": 100.0,
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("ProcessApplicationMetrics: %v", err)
	}

	waitFor(t, func() bool { return len(pub.alerts()) == 1 }, "response time alert")

	a := pub.alerts()[0]
	if a.Type != "response_time_critical" {
		t.Errorf("Type = %q, want response_time_critical", a.Type)
	}
	if a.EntityID != "42" {
		t.Errorf("EntityID = %q, want 42", a.EntityID)
	}
}

func TestPipelineRejectsWhenStopped(t *testing.T) {
	store := storage.NewMemoryStore(10)
	p := New(testConfig(), store, bus.NewNop(), publish.NewNop(), nil)

	err := p.ProcessServerMetrics("42", map[string]any{"cpu": 50.0}, time.Now())
	if err != ErrStopped {
		t.Errorf("err = %v, want ErrStopped", err)
	}
}

func TestPipelineGracefulShutdown(t *testing.T) {
	p, _, _, _, cancel, errCh := startPipeline(t)

	if err := p.ProcessServerMetrics("42", map[string]any{"cpu": 10.0}, time.Now()); err != nil {
		t.Fatalf("ProcessServerMetrics: %v", err)
	}

	stopPipeline(t, cancel, errCh)

	snap := p.Stats()
	if snap.IsRunning {
		t.Error("IsRunning after shutdown")
	}
	// The queued sample drained before the workers exited.
	if snap.SamplesProcessed != 1 {
		t.Errorf("SamplesProcessed = %d, want 1", snap.SamplesProcessed)
	}

	if err := p.ProcessServerMetrics("42", map[string]any{"cpu": 10.0}, time.Now()); err != ErrStopped {
		t.Errorf("post-shutdown ingest err = %v, want ErrStopped", err)
	}
}
