package correlate

import (
	"testing"
	"time"

	"pulse/internal/models"
)

func TestCorrelateDeterministic(t *testing.T) {
	c := New()

	a := models.Alert{ID: "1", EntityID: "42", Type: "cpu_critical"}
	b := models.Alert{ID: "2", EntityID: "42", Type: "cpu_critical"}

	got1 := c.Correlate(a)
	got2 := c.Correlate(b)

	if got1.CorrelationKey == "" {
		t.Fatal("correlation key is empty")
	}
	if got1.CorrelationKey != got2.CorrelationKey {
		t.Errorf("keys differ for identical (entity, type): %q vs %q",
			got1.CorrelationKey, got2.CorrelationKey)
	}
}

func TestCorrelateDistinctPairs(t *testing.T) {
	c := New()

	cpu := c.Correlate(models.Alert{EntityID: "42", Type: "cpu_critical"})
	mem := c.Correlate(models.Alert{EntityID: "42", Type: "memory_warning"})
	other := c.Correlate(models.Alert{EntityID: "7", Type: "cpu_critical"})

	if cpu.CorrelationKey == mem.CorrelationKey {
		t.Error("different alert types share a key")
	}
	if cpu.CorrelationKey == other.CorrelationKey {
		t.Error("different entities share a key")
	}
}

func TestCorrelateStampsProcessed(t *testing.T) {
	fixed := time.Unix(1700000000, 0).UTC()
	c := NewWithClock(func() time.Time { return fixed })

	got := c.Correlate(models.Alert{EntityID: "42", Type: "cpu_critical"})

	if !got.Processed {
		t.Error("alert not marked processed")
	}
	if !got.ProcessedAt.Equal(fixed) {
		t.Errorf("ProcessedAt = %v, want %v", got.ProcessedAt, fixed)
	}
}
