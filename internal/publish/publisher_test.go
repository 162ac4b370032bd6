package publish

import (
	"encoding/json"
	"testing"
)

type captureTransport struct {
	sent [][]byte
}

func (c *captureTransport) Send(data []byte) {
	c.sent = append(c.sent, data)
}

func TestBroadcastEnvelope(t *testing.T) {
	transport := &captureTransport{}
	pub := New(transport)

	pub.Broadcast(TopicServerMetrics, map[string]float64{"cpu": 42})

	if len(transport.sent) != 1 {
		t.Fatalf("got %d messages, want 1", len(transport.sent))
	}

	var msg struct {
		Topic   string             `json:"topic"`
		Payload map[string]float64 `json:"payload"`
	}
	if err := json.Unmarshal(transport.sent[0], &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Topic != TopicServerMetrics {
		t.Errorf("topic = %q, want %q", msg.Topic, TopicServerMetrics)
	}
	if msg.Payload["cpu"] != 42 {
		t.Errorf("payload = %v", msg.Payload)
	}
}

func TestBroadcastPreservesOrderWithinTopic(t *testing.T) {
	transport := &captureTransport{}
	pub := New(transport)

	for i := 0; i < 5; i++ {
		pub.Broadcast(TopicAlerts, i)
	}

	for i, raw := range transport.sent {
		var msg struct {
			Payload int `json:"payload"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Payload != i {
			t.Errorf("message %d carries payload %d", i, msg.Payload)
		}
	}
}

func TestBroadcastUnmarshalablePayloadDropped(t *testing.T) {
	transport := &captureTransport{}
	pub := New(transport)

	pub.Broadcast(TopicAlerts, make(chan int)) // not JSON-serializable

	if len(transport.sent) != 0 {
		t.Errorf("unserializable payload was sent")
	}
}

func TestNopPublisher(t *testing.T) {
	// Absence of subscribers is not an error.
	NewNop().Broadcast(TopicPipelineHealth, "anything")
}
