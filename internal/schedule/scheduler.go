package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"pulse/internal/aggregate"
	"pulse/internal/logger"
	"pulse/internal/metrics"
	"pulse/internal/models"
	"pulse/internal/stats"
	"pulse/internal/storage"
)

// Calendar schedules for the batch jobs.
const (
	hourlySpec = "0 * * * *" // top of every hour
	dailySpec  = "0 2 * * *" // 02:00
	weeklySpec = "0 3 * * 0" // Sunday 03:00
)

var summaryFields = []string{"cpu", "memory", "disk"}

const jobTimeout = 5 * time.Minute

// Scheduler owns the calendar-driven batch jobs: hourly aggregation, daily
// cleanup+summary, weekly backup. Jobs are failure-isolated; one failing run
// never cancels future runs of any job.
type Scheduler struct {
	cron     *cron.Cron
	store    storage.Store
	pipeline *stats.Stats

	retention time.Duration
}

// New builds a scheduler over the given store.
func New(store storage.Store, pipeline *stats.Stats, retentionDays int) *Scheduler {
	log := logger.WithComponent("scheduler")
	cronLog := cronLogger{log: log}

	return &Scheduler{
		cron: cron.New(cron.WithChain(
			// A new run of a job must not start before the previous one of
			// the same job finishes.
			cron.SkipIfStillRunning(cronLog),
			cron.Recover(cronLog),
		)),
		store:     store,
		pipeline:  pipeline,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	jobs := []struct {
		spec string
		name string
		run  func(context.Context)
	}{
		{hourlySpec, "hourly", s.RunHourly},
		{dailySpec, "daily", s.RunDaily},
		{weeklySpec, "weekly", s.RunWeekly},
	}

	for _, job := range jobs {
		run := job.run
		if _, err := s.cron.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			run(ctx)
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	log := logger.WithComponent("scheduler")
	log.Info().Msg("batch scheduler started")
	return nil
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log := logger.WithComponent("scheduler")
	log.Info().Msg("batch scheduler stopped")
}

// RunHourly aggregates the last hour of samples into per-entity avg/max
// rows tagged aggregation_type=hourly.
func (s *Scheduler) RunHourly(ctx context.Context) {
	log := logger.WithComponent("scheduler").With().Str("job", "hourly").Logger()

	rows, err := s.store.QuerySince(ctx, time.Hour)
	if err != nil {
		s.jobFailed(log, "hourly", err)
		return
	}

	now := time.Now().UTC()
	summaries := aggregate.Summarize(rows, summaryFields)
	for entityID, fields := range summaries {
		tags := map[string]string{
			"entity_id":        entityID,
			"aggregation_type": models.WindowHourly,
		}
		if err := s.store.WriteAggregate(ctx, "server_metrics_hourly", tags, fields, now); err != nil {
			s.jobFailed(log, "hourly", err)
			return
		}
	}

	s.jobDone("hourly")
	log.Info().Int("entities", len(summaries)).Msg("hourly aggregation written")
}

// RunDaily purges samples past retention, then writes the daily summary.
func (s *Scheduler) RunDaily(ctx context.Context) {
	log := logger.WithComponent("scheduler").With().Str("job", "daily").Logger()

	purged, err := s.store.PurgeOlderThan(ctx, s.retention)
	if err != nil {
		s.jobFailed(log, "daily", err)
		return
	}
	log.Info().Int("purged", purged).Dur("retention", s.retention).Msg("retention purge completed")

	rows, err := s.store.QuerySince(ctx, 24*time.Hour)
	if err != nil {
		s.jobFailed(log, "daily", err)
		return
	}

	now := time.Now().UTC()
	summaries := aggregate.Summarize(rows, summaryFields)
	for entityID, fields := range summaries {
		tags := map[string]string{
			"entity_id":        entityID,
			"aggregation_type": models.WindowDaily,
		}
		if err := s.store.WriteAggregate(ctx, "server_metrics_daily", tags, fields, now); err != nil {
			s.jobFailed(log, "daily", err)
			return
		}
	}

	s.jobDone("daily")
	log.Info().Int("entities", len(summaries)).Msg("daily summary written")
}

// RunWeekly exports a full snapshot through the storage backup primitive.
func (s *Scheduler) RunWeekly(ctx context.Context) {
	log := logger.WithComponent("scheduler").With().Str("job", "weekly").Logger()

	records, err := s.store.CreateBackup(ctx)
	if err != nil {
		s.jobFailed(log, "weekly", err)
		return
	}

	s.jobDone("weekly")
	log.Info().Int("records", len(records)).Msg("weekly backup completed")
}

func (s *Scheduler) jobDone(job string) {
	s.pipeline.JobCompleted()
	metrics.BatchJobsTotal.WithLabelValues(job, "success").Inc()
}

func (s *Scheduler) jobFailed(log zerolog.Logger, job string, err error) {
	log.Error().Err(err).Msg("batch job failed")
	s.pipeline.AddError()
	metrics.BatchJobsTotal.WithLabelValues(job, "failed").Inc()
}

// cronLogger adapts zerolog to the cron logging interface.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
