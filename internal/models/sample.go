package models

import (
	"strconv"
	"time"
)

// ServerSample is a canonical server metric reading. Percentage fields are
// clamped to [0,100] and counters floored at 0 by Validate; once built it is
// immutable as far as the pipeline is concerned.
type ServerSample struct {
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`

	CPU               float64 `json:"cpu"`
	Memory            float64 `json:"memory"`
	Disk              float64 `json:"disk"`
	NetworkIn         float64 `json:"network_in"`
	NetworkOut        float64 `json:"network_out"`
	LoadAverage       float64 `json:"load_average"`
	ActiveConnections float64 `json:"active_connections"`
	Temperature       float64 `json:"temperature,omitempty"`

	// Optional environment tag, passed through unchanged
	Environment string `json:"environment,omitempty"`
}

// AppSample is a canonical application metric reading.
type AppSample struct {
	AppID     string    `json:"app_id"`
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`

	ResponseTime float64 `json:"response_time"`
	RequestCount float64 `json:"request_count"`
	ErrorCount   float64 `json:"error_count"`
	Throughput   float64 `json:"throughput"`
	CPUUsage     float64 `json:"cpu_usage"`
	MemoryUsage  float64 `json:"memory_usage"`
}

// ValidateServerSample normalizes a raw metric map into a canonical sample.
// It never fails: non-numeric or missing fields default to 0, percentages
// are clamped to [0,100], counters floored at 0. String tags pass through.
func ValidateServerSample(entityID string, raw map[string]any, ts time.Time) ServerSample {
	s := ServerSample{
		EntityID:          entityID,
		Timestamp:         ts,
		CPU:               clampPercent(toFloat(raw["cpu"])),
		Memory:            clampPercent(toFloat(raw["memory"])),
		Disk:              clampPercent(toFloat(raw["disk"])),
		NetworkIn:         floorZero(toFloat(raw["network_in"])),
		NetworkOut:        floorZero(toFloat(raw["network_out"])),
		LoadAverage:       floorZero(toFloat(raw["load_average"])),
		ActiveConnections: floorZero(toFloat(raw["active_connections"])),
		Temperature:       toFloat(raw["temperature"]),
	}
	if env, ok := raw["environment"].(string); ok {
		s.Environment = env
	}
	return s
}

// ValidateAppSample normalizes a raw application metric map. Same clamping
// rules as ValidateServerSample.
func ValidateAppSample(appID, entityID string, raw map[string]any, ts time.Time) AppSample {
	return AppSample{
		AppID:        appID,
		EntityID:     entityID,
		Timestamp:    ts,
		ResponseTime: floorZero(toFloat(raw["response_time"])),
		RequestCount: floorZero(toFloat(raw["request_count"])),
		ErrorCount:   floorZero(toFloat(raw["error_count"])),
		Throughput:   floorZero(toFloat(raw["throughput"])),
		CPUUsage:     clampPercent(toFloat(raw["cpu_usage"])),
		MemoryUsage:  clampPercent(toFloat(raw["memory_usage"])),
	}
}

// Fields returns the sample's numeric fields keyed by metric name, the shape
// the storage and bus collaborators consume.
func (s ServerSample) Fields() map[string]float64 {
	return map[string]float64{
		"cpu":                s.CPU,
		"memory":             s.Memory,
		"disk":               s.Disk,
		"network_in":         s.NetworkIn,
		"network_out":        s.NetworkOut,
		"load_average":       s.LoadAverage,
		"active_connections": s.ActiveConnections,
		"temperature":        s.Temperature,
	}
}

// ThresholdFields returns the subset of fields with configured thresholds.
func (s ServerSample) ThresholdFields() map[string]float64 {
	return map[string]float64{
		"cpu":    s.CPU,
		"memory": s.Memory,
		"disk":   s.Disk,
	}
}

// Fields returns the sample's numeric fields keyed by metric name.
func (s AppSample) Fields() map[string]float64 {
	return map[string]float64{
		"response_time": s.ResponseTime,
		"request_count": s.RequestCount,
		"error_count":   s.ErrorCount,
		"throughput":    s.Throughput,
		"cpu_usage":     s.CPUUsage,
		"memory_usage":  s.MemoryUsage,
	}
}

// ThresholdFields returns the subset of fields with configured thresholds.
func (s AppSample) ThresholdFields() map[string]float64 {
	return map[string]float64{
		"response_time": s.ResponseTime,
	}
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func floorZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// toFloat coerces loosely-typed JSON values to float64. Anything
// non-numeric yields 0.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return 0
}
