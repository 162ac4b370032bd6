package aggregate

import (
	"sort"
	"time"

	"pulse/internal/models"
	"pulse/internal/storage"
)

type accumulator struct {
	sum     float64
	count   int
	min     float64
	max     float64
	current float64
	lastTS  time.Time
}

// Compute folds sample rows into per-entity summaries. Current is the value
// of the newest sample carrying the field; entities with no rows are simply
// absent from the result.
func Compute(rows []storage.Row, window string, now time.Time) []models.AggregationResult {
	byEntity := make(map[string]map[string]*accumulator)

	for _, row := range rows {
		fields := byEntity[row.EntityID]
		if fields == nil {
			fields = make(map[string]*accumulator)
			byEntity[row.EntityID] = fields
		}
		for name, value := range row.Fields {
			acc := fields[name]
			if acc == nil {
				acc = &accumulator{min: value, max: value, current: value, lastTS: row.Timestamp}
				fields[name] = acc
			}
			acc.sum += value
			acc.count++
			if value < acc.min {
				acc.min = value
			}
			if value > acc.max {
				acc.max = value
			}
			if !row.Timestamp.Before(acc.lastTS) {
				acc.current = value
				acc.lastTS = row.Timestamp
			}
		}
	}

	entityIDs := make([]string, 0, len(byEntity))
	for id := range byEntity {
		entityIDs = append(entityIDs, id)
	}
	sort.Strings(entityIDs)

	results := make([]models.AggregationResult, 0, len(entityIDs))
	for _, id := range entityIDs {
		summaries := make(map[string]models.MetricSummary, len(byEntity[id]))
		for name, acc := range byEntity[id] {
			summaries[name] = models.MetricSummary{
				Current: acc.current,
				Avg:     acc.sum / float64(acc.count),
				Min:     acc.min,
				Max:     acc.max,
			}
		}
		results = append(results, models.AggregationResult{
			EntityID:  id,
			Window:    window,
			Timestamp: now.UTC(),
			Metrics:   summaries,
		})
	}
	return results
}

// Summarize computes per-entity avg/max for the named fields, the shape the
// hourly and daily batch jobs persist. Entities lacking all named fields are
// omitted.
func Summarize(rows []storage.Row, fields []string) map[string]map[string]float64 {
	type agg struct {
		sum   float64
		count int
		max   float64
	}
	byEntity := make(map[string]map[string]*agg)

	for _, row := range rows {
		for _, name := range fields {
			value, ok := row.Fields[name]
			if !ok {
				continue
			}
			perField := byEntity[row.EntityID]
			if perField == nil {
				perField = make(map[string]*agg)
				byEntity[row.EntityID] = perField
			}
			a := perField[name]
			if a == nil {
				a = &agg{max: value}
				perField[name] = a
			}
			a.sum += value
			a.count++
			if value > a.max {
				a.max = value
			}
		}
	}

	out := make(map[string]map[string]float64, len(byEntity))
	for entityID, perField := range byEntity {
		summary := make(map[string]float64, len(perField)*2)
		for name, a := range perField {
			summary[name+"_avg"] = a.sum / float64(a.count)
			summary[name+"_max"] = a.max
		}
		out[entityID] = summary
	}
	return out
}
