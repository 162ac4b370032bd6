package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/domain"
)

const samplesMeasurement = "metrics"

// InfluxStore adapts an InfluxDB 2.x bucket to the Store contract.
type InfluxStore struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	org      string
	bucket   string
}

// NewInfluxStore connects to the given InfluxDB instance.
func NewInfluxStore(url, token, org, bucket string) (*InfluxStore, error) {
	if url == "" {
		return nil, fmt.Errorf("influxdb url is required")
	}
	client := influxdb2.NewClient(url, token)
	return &InfluxStore{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		queryAPI: client.QueryAPI(org),
		org:      org,
		bucket:   bucket,
	}, nil
}

func (s *InfluxStore) WriteSample(ctx context.Context, entityKind, entityID string, fields map[string]float64, tags map[string]string, ts time.Time) error {
	pointTags := map[string]string{
		"entity_kind": entityKind,
		"entity_id":   entityID,
	}
	for k, v := range tags {
		pointTags[k] = v
	}
	point := influxdb2.NewPoint(samplesMeasurement, pointTags, toAnyFields(fields), ts)
	return s.writeAPI.WritePoint(ctx, point)
}

func (s *InfluxStore) QuerySince(ctx context.Context, d time.Duration) ([]Row, error) {
	flux := fmt.Sprintf(`from(bucket: %q)
		|> range(start: -%s)
		|> filter(fn: (r) => r._measurement == %q)`,
		s.bucket, d.String(), samplesMeasurement)

	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, err
	}

	// Records arrive one per field; fold them back into per-entity rows
	// keyed by series time.
	type rowKey struct {
		entityID string
		ts       time.Time
	}
	byKey := make(map[rowKey]*Row)
	var order []rowKey

	for result.Next() {
		rec := result.Record()
		entityID, _ := rec.ValueByKey("entity_id").(string)
		entityKind, _ := rec.ValueByKey("entity_kind").(string)
		value, ok := rec.Value().(float64)
		if !ok {
			continue
		}

		key := rowKey{entityID: entityID, ts: rec.Time()}
		row, seen := byKey[key]
		if !seen {
			row = &Row{
				Measurement: samplesMeasurement,
				EntityKind:  entityKind,
				EntityID:    entityID,
				Fields:      make(map[string]float64),
				Timestamp:   rec.Time(),
			}
			byKey[key] = row
			order = append(order, key)
		}
		row.Fields[rec.Field()] = value
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(order))
	for _, key := range order {
		rows = append(rows, *byKey[key])
	}
	return rows, nil
}

func (s *InfluxStore) WriteAggregate(ctx context.Context, name string, tags map[string]string, fields map[string]float64, ts time.Time) error {
	point := influxdb2.NewPoint(name, tags, toAnyFields(fields), ts)
	return s.writeAPI.WritePoint(ctx, point)
}

func (s *InfluxStore) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	stop := time.Now().Add(-retention)
	start := time.Unix(0, 0)
	predicate := fmt.Sprintf(`_measurement="%s"`, samplesMeasurement)

	err := s.client.DeleteAPI().DeleteWithName(ctx, s.org, s.bucket, start, stop, predicate)
	if err != nil {
		return 0, err
	}
	// The delete API does not report row counts.
	return 0, nil
}

func (s *InfluxStore) CreateBackup(ctx context.Context) ([]Row, error) {
	// Export everything retained; retention caps this at ~30 days of rows.
	return s.QuerySince(ctx, 365*24*time.Hour)
}

func (s *InfluxStore) HealthCheck(ctx context.Context) error {
	health, err := s.client.Health(ctx)
	if err != nil {
		return err
	}
	if health.Status != domain.HealthCheckStatusPass {
		return fmt.Errorf("influxdb unhealthy: %s", health.Status)
	}
	return nil
}

func (s *InfluxStore) Close() error {
	s.client.Close()
	return nil
}

func toAnyFields(fields map[string]float64) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
