package models

import "time"

// Aggregation window labels
const (
	WindowRealtime = "realtime"
	WindowHourly   = "hourly"
	WindowDaily    = "daily"
)

// MetricSummary holds the per-metric statistics of one aggregation window.
type MetricSummary struct {
	Current float64 `json:"current"`
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// AggregationResult is one entity's summary for one window. Recomputed each
// cycle; the pipeline does not retain it after handing it off.
type AggregationResult struct {
	EntityID  string                   `json:"entity_id"`
	Window    string                   `json:"window"`
	Timestamp time.Time                `json:"timestamp"`
	Metrics   map[string]MetricSummary `json:"metrics"`
}
