package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"pulse/internal/config"
	"pulse/internal/logger"
	"pulse/internal/metrics"
	"pulse/internal/models"
)

// Producer errors
var (
	ErrProducerClosed  = errors.New("producer is closed")
	ErrSerializeFailed = errors.New("failed to serialize message")
)

// Bus is the narrow best-effort contract the pipeline has on the message
// queue. Failures are for the caller to log; nothing retries beyond the
// producer's own attempts.
type Bus interface {
	ProduceMetrics(ctx context.Context, entityID string, fields map[string]float64) error
	ProduceAlert(ctx context.Context, alert models.Alert) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// Producer publishes metric samples and alerts to Kafka, one topic each.
type Producer struct {
	cfg           config.KafkaConfig
	metricsWriter *kafka.Writer
	alertsWriter  *kafka.Writer
	closed        atomic.Bool

	messagesSent   atomic.Uint64
	messagesFailed atomic.Uint64
}

// NewProducer creates a producer for the metrics and alerts topics.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.MetricsTopic == "" || cfg.AlertsTopic == "" {
		return nil, errors.New("metrics and alerts topics are required")
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // partition by entity id
			WriteTimeout: cfg.WriteTimeout,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  cfg.MaxRetries + 1,
			Async:        false,
		}
	}

	return &Producer{
		cfg:           cfg,
		metricsWriter: newWriter(cfg.MetricsTopic),
		alertsWriter:  newWriter(cfg.AlertsTopic),
	}, nil
}

// ProduceMetrics sends one entity's sample fields to the metrics topic.
func (p *Producer) ProduceMetrics(ctx context.Context, entityID string, fields map[string]float64) error {
	payload := map[string]any{
		"entity_id": entityID,
		"fields":    fields,
		"timestamp": time.Now().UTC(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}
	return p.produce(ctx, p.metricsWriter, p.cfg.MetricsTopic, kafka.Message{
		Key:   []byte(entityID),
		Value: data,
	})
}

// ProduceAlert sends a correlated alert to the alerts topic.
func (p *Producer) ProduceAlert(ctx context.Context, alert models.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}
	return p.produce(ctx, p.alertsWriter, p.cfg.AlertsTopic, kafka.Message{
		Key:   []byte(alert.EntityID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "alert_id", Value: []byte(alert.ID)},
			{Key: "correlation_key", Value: []byte(alert.CorrelationKey)},
		},
	})
}

// produce writes one message with exponential backoff retries.
func (p *Producer) produce(ctx context.Context, writer *kafka.Writer, topic string, msg kafka.Message) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	log := logger.WithComponent("bus")
	backoff := p.cfg.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Str("topic", topic).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying kafka publish")
			metrics.KafkaPublishRetries.Inc()

			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				p.messagesFailed.Add(1)
				return ctx.Err()
			}
		}

		err := writer.WriteMessages(ctx, msg)
		if err == nil {
			p.messagesSent.Add(1)
			metrics.KafkaPublishTotal.WithLabelValues(topic, "success").Inc()
			return nil
		}

		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}

	p.messagesFailed.Add(1)
	metrics.KafkaPublishTotal.WithLabelValues(topic, "failed").Inc()
	return fmt.Errorf("kafka publish to %s failed: %w", topic, lastErr)
}

// HealthCheck verifies the producer can reach Kafka.
func (p *Producer) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	_ = p.metricsWriter.Stats()
	return nil
}

// Stats returns producer counters.
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		MessagesSent:   p.messagesSent.Load(),
		MessagesFailed: p.messagesFailed.Load(),
	}
}

// ProducerStats holds producer counters.
type ProducerStats struct {
	MessagesSent   uint64
	MessagesFailed uint64
}

// Close closes both topic writers.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	var errs []error
	if err := p.metricsWriter.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.alertsWriter.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing writers: %v", errs)
	}
	return nil
}
