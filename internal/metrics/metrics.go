package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Ingestion metrics
	SamplesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_samples_ingested_total",
			Help: "Total number of metric samples accepted for processing",
		},
		[]string{"kind"}, // kind: server, application
	)

	SamplesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_samples_rejected_total",
			Help: "Total number of metric samples rejected at ingestion",
		},
		[]string{"reason"}, // reason: queue_full, stopped, bad_request
	)

	IngestQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_ingest_queue_size",
			Help: "Current size of the ingestion worker queue",
		},
	)

	IngestQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_ingest_queue_capacity",
			Help: "Capacity of the ingestion worker queue",
		},
	)

	// Alerting metrics
	AlertsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_alerts_generated_total",
			Help: "Total number of threshold alerts generated",
		},
		[]string{"severity"}, // severity: warning, critical
	)

	// Collaborator failure metrics
	CollaboratorErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_collaborator_errors_total",
			Help: "Total number of storage/bus collaborator failures",
		},
		[]string{"collaborator", "op"},
	)

	// Aggregation metrics
	AggregationCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_aggregation_cycles_total",
			Help: "Total number of realtime aggregation cycles",
		},
		[]string{"status"}, // status: published, empty, failed
	)

	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulse_aggregation_duration_seconds",
			Help:    "Time taken to compute one realtime aggregation cycle",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	// Batch job metrics
	BatchJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_batch_jobs_total",
			Help: "Total number of scheduled batch job runs",
		},
		[]string{"job", "status"}, // job: hourly, daily, weekly
	)

	// Kafka producer metrics
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_kafka_publish_total",
			Help: "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"}, // status: success, failed
	)

	KafkaPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_kafka_publish_retries_total",
			Help: "Total number of Kafka publish retries",
		},
	)

	// Health
	PipelineHealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_pipeline_healthy",
			Help: "1 if the composite pipeline health check passes, 0 otherwise",
		},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_websocket_clients",
			Help: "Number of connected websocket subscribers",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
