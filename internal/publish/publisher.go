package publish

import (
	"encoding/json"
	"time"

	"pulse/internal/logger"
)

// Topics the pipeline broadcasts on.
const (
	TopicServerMetrics     = "server_metrics"
	TopicAppMetrics        = "app_metrics"
	TopicAlerts            = "alerts"
	TopicAggregatedMetrics = "aggregated_metrics"
	TopicPipelineHealth    = "pipeline_health"
)

// Publisher fans out messages to current subscribers of a topic.
// Fire-and-forget: no acknowledgment, no retry, and no ordering across
// topics. Absence of subscribers is not an error.
type Publisher interface {
	Broadcast(topic string, payload any)
}

// Message is the envelope put on the wire for each broadcast.
type Message struct {
	Topic     string    `json:"topic"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Transport delivers an encoded message to subscribers. The websocket hub
// implements this.
type Transport interface {
	Send(data []byte)
}

type transportPublisher struct {
	transport Transport
}

// New returns a Publisher backed by the given transport.
func New(t Transport) Publisher {
	return &transportPublisher{transport: t}
}

func (p *transportPublisher) Broadcast(topic string, payload any) {
	data, err := json.Marshal(Message{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log := logger.WithComponent("publisher")
		log.Error().
			Err(err).
			Str("topic", topic).
			Msg("failed to marshal broadcast payload")
		return
	}
	p.transport.Send(data)
}

type nopPublisher struct{}

// NewNop returns a Publisher that drops every broadcast, for the
// no-subscriber case.
func NewNop() Publisher { return nopPublisher{} }

func (nopPublisher) Broadcast(topic string, payload any) {}
