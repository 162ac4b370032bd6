package models

import (
	"testing"
	"time"
)

func TestValidateServerSampleClamps(t *testing.T) {
	ts := time.Now().UTC()

	tests := []struct {
		name string
		raw  map[string]any
		want ServerSample
	}{
		{
			name: "in range passes through",
			raw:  map[string]any{"cpu": 42.5, "memory": 60.0, "disk": 70.0, "network_in": 100.0},
			want: ServerSample{CPU: 42.5, Memory: 60, Disk: 70, NetworkIn: 100},
		},
		{
			name: "negative percentage clamps to zero",
			raw:  map[string]any{"cpu": -5.0, "memory": -0.1, "disk": -100.0},
			want: ServerSample{},
		},
		{
			name: "over 100 clamps to 100",
			raw:  map[string]any{"cpu": 150.0, "memory": 100.1, "disk": 101.0},
			want: ServerSample{CPU: 100, Memory: 100, Disk: 100},
		},
		{
			name: "negative counters floor at zero",
			raw:  map[string]any{"network_in": -10.0, "network_out": -1.0, "load_average": -0.5, "active_connections": -3.0},
			want: ServerSample{},
		},
		{
			name: "non-numeric values default to zero",
			raw:  map[string]any{"cpu": -5.0, "memory": "abc"},
			want: ServerSample{},
		},
		{
			name: "integer values coerce",
			raw:  map[string]any{"cpu": 50, "active_connections": int64(12)},
			want: ServerSample{CPU: 50, ActiveConnections: 12},
		},
		{
			name: "numeric strings coerce",
			raw:  map[string]any{"cpu": "85.5"},
			want: ServerSample{CPU: 85.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateServerSample("srv-1", tt.raw, ts)

			if got.EntityID != "srv-1" {
				t.Errorf("EntityID = %q, want srv-1", got.EntityID)
			}
			if got.CPU != tt.want.CPU || got.Memory != tt.want.Memory || got.Disk != tt.want.Disk {
				t.Errorf("percentages = %v/%v/%v, want %v/%v/%v",
					got.CPU, got.Memory, got.Disk, tt.want.CPU, tt.want.Memory, tt.want.Disk)
			}
			if got.NetworkIn != tt.want.NetworkIn || got.NetworkOut != tt.want.NetworkOut {
				t.Errorf("network = %v/%v, want %v/%v",
					got.NetworkIn, got.NetworkOut, tt.want.NetworkIn, tt.want.NetworkOut)
			}
			if got.LoadAverage != tt.want.LoadAverage || got.ActiveConnections != tt.want.ActiveConnections {
				t.Errorf("load/conns = %v/%v, want %v/%v",
					got.LoadAverage, got.ActiveConnections, tt.want.LoadAverage, tt.want.ActiveConnections)
			}
		})
	}
}

func TestValidateServerSampleRanges(t *testing.T) {
	// Whatever the input, percentages end up in [0,100] and counters >= 0.
	inputs := []map[string]any{
		{"cpu": -1e9, "memory": 1e9, "disk": 0.0, "network_in": -1e9},
		{"cpu": "garbage", "memory": nil, "disk": true},
		{},
	}

	for _, raw := range inputs {
		got := ValidateServerSample("srv-1", raw, time.Now())
		for name, v := range map[string]float64{"cpu": got.CPU, "memory": got.Memory, "disk": got.Disk} {
			if v < 0 || v > 100 {
				t.Errorf("%s = %v, out of [0,100]", name, v)
			}
		}
		for name, v := range got.Fields() {
			if name == "temperature" {
				continue
			}
			if v < 0 {
				t.Errorf("%s = %v, negative counter", name, v)
			}
		}
	}
}

func TestValidateServerSampleIdempotent(t *testing.T) {
	ts := time.Now().UTC()
	raw := map[string]any{
		"cpu": 120.0, "memory": -3.0, "disk": 55.0,
		"network_in": -9.0, "load_average": 1.5,
		"environment": "production",
	}

	first := ValidateServerSample("srv-1", raw, ts)

	again := map[string]any{}
	for k, v := range first.Fields() {
		again[k] = v
	}
	again["environment"] = first.Environment

	second := ValidateServerSample("srv-1", again, ts)
	if first != second {
		t.Errorf("validate not idempotent: first=%+v second=%+v", first, second)
	}
}

func TestValidateServerSampleTagsPassThrough(t *testing.T) {
	got := ValidateServerSample("srv-1", map[string]any{"environment": "Staging-EU "}, time.Now())
	if got.Environment != "Staging-EU " {
		t.Errorf("environment tag modified: %q", got.Environment)
	}
}

func TestValidateAppSample(t *testing.T) {
	ts := time.Now().UTC()
	got := ValidateAppSample("app-1", "srv-2", map[string]any{
		"response_time": 250.0,
		"request_count": -4.0,
		"error_count":   2.0,
		"throughput":    99.9,
		"cpu_usage":     101.0,
		"memory_usage":  -1.0,
	}, ts)

	if got.AppID != "app-1" || got.EntityID != "srv-2" {
		t.Fatalf("identity = %q/%q", got.AppID, got.EntityID)
	}
	if got.ResponseTime != 250 {
		t.Errorf("ResponseTime = %v, want 250", got.ResponseTime)
	}
	if got.RequestCount != 0 {
		t.Errorf("RequestCount = %v, want 0", got.RequestCount)
	}
	if got.CPUUsage != 100 {
		t.Errorf("CPUUsage = %v, want 100", got.CPUUsage)
	}
	if got.MemoryUsage != 0 {
		t.Errorf("MemoryUsage = %v, want 0", got.MemoryUsage)
	}
}
