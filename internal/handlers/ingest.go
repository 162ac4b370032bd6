package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pulse/internal/metrics"
)

const defaultMaxBodySize = 10 * 1024 * 1024 // 10MB

// Ingestor is the slice of the pipeline the HTTP layer needs.
type Ingestor interface {
	ProcessServerMetrics(entityID string, raw map[string]any, ts time.Time) error
	ProcessApplicationMetrics(appID, entityID string, raw map[string]any, ts time.Time) error
}

// ServerMetricsInput is one raw server sample submitted by an agent. The
// metric values are loosely typed on purpose; the validator clamps them.
type ServerMetricsInput struct {
	EntityID  string         `json:"entity_id"`
	Timestamp string         `json:"timestamp,omitempty"`
	Metrics   map[string]any `json:"metrics"`
}

// AppMetricsInput is one raw application sample.
type AppMetricsInput struct {
	AppID     string         `json:"app_id"`
	EntityID  string         `json:"entity_id"`
	Timestamp string         `json:"timestamp,omitempty"`
	Metrics   map[string]any `json:"metrics"`
}

// IngestResponse reports per-sample acceptance.
type IngestResponse struct {
	Success  bool          `json:"success"`
	Accepted int           `json:"accepted"`
	Rejected int           `json:"rejected"`
	Errors   []IngestError `json:"errors,omitempty"`
}

// IngestError describes why one sample was rejected.
type IngestError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// ServerMetricsHandler accepts server metric samples, single or batch.
type ServerMetricsHandler struct {
	ingestor    Ingestor
	maxBodySize int64
}

// NewServerMetricsHandler creates the server metrics ingest handler.
func NewServerMetricsHandler(ingestor Ingestor) *ServerMetricsHandler {
	return &ServerMetricsHandler{ingestor: ingestor, maxBodySize: defaultMaxBodySize}
}

func (h *ServerMetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r, h.maxBodySize)
	if !ok {
		return
	}

	inputs, err := parseBatch[ServerMetricsInput](body, "samples")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := IngestResponse{Success: true}
	for i, input := range inputs {
		if input.EntityID == "" {
			resp.reject(i, "entity_id is required")
			continue
		}
		ts := parseTimestamp(input.Timestamp)
		if err := h.ingestor.ProcessServerMetrics(input.EntityID, input.Metrics, ts); err != nil {
			resp.reject(i, err.Error())
			continue
		}
		resp.Accepted++
	}
	writeResponse(w, resp)
}

// AppMetricsHandler accepts application metric samples, single or batch.
type AppMetricsHandler struct {
	ingestor    Ingestor
	maxBodySize int64
}

// NewAppMetricsHandler creates the application metrics ingest handler.
func NewAppMetricsHandler(ingestor Ingestor) *AppMetricsHandler {
	return &AppMetricsHandler{ingestor: ingestor, maxBodySize: defaultMaxBodySize}
}

func (h *AppMetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r, h.maxBodySize)
	if !ok {
		return
	}

	inputs, err := parseBatch[AppMetricsInput](body, "samples")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := IngestResponse{Success: true}
	for i, input := range inputs {
		if input.AppID == "" || input.EntityID == "" {
			resp.reject(i, "app_id and entity_id are required")
			continue
		}
		ts := parseTimestamp(input.Timestamp)
		if err := h.ingestor.ProcessApplicationMetrics(input.AppID, input.EntityID, input.Metrics, ts); err != nil {
			resp.reject(i, err.Error())
			continue
		}
		resp.Accepted++
	}
	writeResponse(w, resp)
}

func (r *IngestResponse) reject(index int, reason string) {
	r.Rejected++
	r.Errors = append(r.Errors, IngestError{Index: index, Error: reason})
	metrics.SamplesRejectedTotal.WithLabelValues(rejectReason(reason)).Inc()
}

func rejectReason(reason string) string {
	switch {
	case strings.Contains(reason, "queue full"):
		return "queue_full"
	case strings.Contains(reason, "not running"):
		return "stopped"
	default:
		return "bad_request"
	}
}

func readBody(w http.ResponseWriter, r *http.Request, maxBodySize int64) ([]byte, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return nil, false
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" && contentType != "" {
		writeError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	return body, true
}

// parseBatch accepts {"samples": [...]}, a bare array, or a single object.
func parseBatch[T any](body []byte, batchKey string) ([]T, error) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err == nil {
		if raw, ok := wrapper[batchKey]; ok {
			var batch []T
			if err := json.Unmarshal(raw, &batch); err == nil && len(batch) > 0 {
				return batch, nil
			}
		}
	}

	var batch []T
	if err := json.Unmarshal(body, &batch); err == nil && len(batch) > 0 {
		return batch, nil
	}

	var single T
	if err := json.Unmarshal(body, &single); err == nil {
		return []T{single}, nil
	}

	return nil, fmt.Errorf("invalid JSON format: expected sample object or array of samples")
}

// parseTimestamp defaults missing or malformed timestamps to now, matching
// the ingestion contract of timestamp=now.
func parseTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Now().UTC()
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}

func writeResponse(w http.ResponseWriter, resp IngestResponse) {
	resp.Success = resp.Rejected == 0
	w.Header().Set("Content-Type", "application/json")
	if resp.Rejected > 0 && resp.Accepted == 0 {
		w.WriteHeader(http.StatusBadRequest)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
