package aggregate

import (
	"context"
	"time"

	"pulse/internal/logger"
	"pulse/internal/metrics"
	"pulse/internal/models"
	"pulse/internal/publish"
	"pulse/internal/stats"
	"pulse/internal/storage"
)

// SampleSource is the slice of the storage contract the aggregator needs.
type SampleSource interface {
	QuerySince(ctx context.Context, d time.Duration) ([]storage.Row, error)
}

// Aggregator computes realtime per-entity summaries over a trailing window
// and publishes them. One cycle per interval; a failed storage read skips
// the cycle and the next tick naturally retries.
type Aggregator struct {
	source   SampleSource
	pub      publish.Publisher
	pipeline *stats.Stats

	interval time.Duration
	window   time.Duration
}

// Payload is the message broadcast on the aggregated_metrics topic.
type Payload struct {
	Type      string                     `json:"type"`
	Results   []models.AggregationResult `json:"results"`
	Timestamp time.Time                  `json:"timestamp"`
}

// New creates a realtime aggregator.
func New(source SampleSource, pub publish.Publisher, pipeline *stats.Stats, interval, window time.Duration) *Aggregator {
	return &Aggregator{
		source:   source,
		pub:      pub,
		pipeline: pipeline,
		interval: interval,
		window:   window,
	}
}

// Run ticks until the context is cancelled. Cycles run inline on the ticker
// goroutine, so an aggregation cycle never overlaps with itself.
func (a *Aggregator) Run(ctx context.Context) {
	log := logger.WithComponent("aggregator")
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", a.interval).
		Dur("window", a.window).
		Msg("realtime aggregator started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("realtime aggregator stopped")
			return
		case <-ticker.C:
			a.cycle(ctx)
		}
	}
}

// cycle runs one aggregation pass.
func (a *Aggregator) cycle(ctx context.Context) {
	log := logger.WithComponent("aggregator")
	start := time.Now()

	rows, err := a.source.QuerySince(ctx, a.window)
	if err != nil {
		log.Error().Err(err).Msg("failed to read samples for aggregation")
		a.pipeline.AddError()
		metrics.AggregationCyclesTotal.WithLabelValues("failed").Inc()
		return
	}

	results := Compute(rows, models.WindowRealtime, start)
	metrics.AggregationDuration.Observe(time.Since(start).Seconds())

	// A cycle with no qualifying entities emits nothing.
	if len(results) == 0 {
		metrics.AggregationCyclesTotal.WithLabelValues("empty").Inc()
		return
	}

	a.pub.Broadcast(publish.TopicAggregatedMetrics, Payload{
		Type:      "realtime_aggregation",
		Results:   results,
		Timestamp: start.UTC(),
	})
	metrics.AggregationCyclesTotal.WithLabelValues("published").Inc()

	log.Debug().
		Int("entities", len(results)).
		Dur("duration", time.Since(start)).
		Msg("realtime aggregation published")
}
