package pipeline

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pulse/internal/aggregate"
	"pulse/internal/bus"
	"pulse/internal/config"
	"pulse/internal/correlate"
	"pulse/internal/handlers"
	"pulse/internal/health"
	"pulse/internal/logger"
	"pulse/internal/metrics"
	"pulse/internal/middleware"
	"pulse/internal/models"
	"pulse/internal/publish"
	"pulse/internal/schedule"
	"pulse/internal/stats"
	"pulse/internal/storage"
	"pulse/internal/threshold"
	"pulse/internal/ws"
)

// Ingestion errors surfaced to the API layer. Processing errors past the
// queue never reach the caller.
var (
	ErrQueueFull = errors.New("ingest queue full, try again later")
	ErrStopped   = errors.New("pipeline is not running")
)

const collaboratorTimeout = 10 * time.Second

type jobKind int

const (
	jobServer jobKind = iota
	jobApplication
)

type job struct {
	kind     jobKind
	appID    string
	entityID string
	raw      map[string]any
	ts       time.Time
}

// Pipeline is the high-level coordinator: it owns the ingestion worker pool,
// the realtime aggregator, the batch scheduler, the health monitor, and the
// HTTP API.
type Pipeline struct {
	cfg   *config.Config
	store storage.Store
	bus   bus.Bus
	pub   publish.Publisher
	hub   *ws.Hub

	evalServer *threshold.Evaluator
	evalApp    *threshold.Evaluator
	corr       correlate.Correlator
	pstats     *stats.Stats
	monitor    *health.Monitor

	jobs       chan job
	accepting  atomic.Bool
	httpServer *http.Server
	wg         sync.WaitGroup
	workersWG  sync.WaitGroup

	alertsSinceSweep atomic.Uint64
}

// New wires the pipeline over its collaborators. The hub may be nil when no
// websocket endpoint is wanted.
func New(cfg *config.Config, store storage.Store, b bus.Bus, pub publish.Publisher, hub *ws.Hub) *Pipeline {
	pstats := stats.New()
	p := &Pipeline{
		cfg:        cfg,
		store:      store,
		bus:        b,
		pub:        pub,
		hub:        hub,
		evalServer: threshold.NewEvaluator(models.DefaultServerRules()),
		evalApp:    threshold.NewEvaluator(models.DefaultAppRules()),
		corr:       correlate.New(),
		pstats:     pstats,
		jobs:       make(chan job, cfg.Pipeline.QueueSize),
	}
	p.monitor = health.New(b, store, pstats, pub, cfg.Pipeline.HealthInterval)
	return p
}

// ProcessServerMetrics enqueues one raw server sample. Asynchronous with
// respect to the caller: a slow downstream write never stalls ingestion of
// other entities.
func (p *Pipeline) ProcessServerMetrics(entityID string, raw map[string]any, ts time.Time) error {
	return p.enqueue(job{kind: jobServer, entityID: entityID, raw: raw, ts: ts}, "server")
}

// ProcessApplicationMetrics enqueues one raw application sample.
func (p *Pipeline) ProcessApplicationMetrics(appID, entityID string, raw map[string]any, ts time.Time) error {
	return p.enqueue(job{kind: jobApplication, appID: appID, entityID: entityID, raw: raw, ts: ts}, "application")
}

func (p *Pipeline) enqueue(j job, kind string) error {
	if !p.accepting.Load() {
		return ErrStopped
	}
	if j.ts.IsZero() {
		j.ts = time.Now().UTC()
	}

	select {
	case p.jobs <- j:
		metrics.SamplesIngestedTotal.WithLabelValues(kind).Inc()
		metrics.IngestQueueSize.Set(float64(len(p.jobs)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() stats.Snapshot {
	return p.pstats.Snapshot()
}

// Run starts all workers and timers and blocks until the context is
// cancelled, then shuts down gracefully.
func (p *Pipeline) Run(ctx context.Context) error {
	log := logger.WithComponent("pipeline")
	log.Info().Msg("pipeline starting")

	p.pstats.MarkStarted(time.Now().UTC())
	p.accepting.Store(true)
	metrics.IngestQueueCapacity.Set(float64(cap(p.jobs)))

	// Background tasks get their own context so shutdown can stop them
	// after ingestion has drained.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	for i := 0; i < p.cfg.Pipeline.Workers; i++ {
		p.workersWG.Add(1)
		go p.worker(i)
	}
	log.Info().Int("workers", p.cfg.Pipeline.Workers).Msg("ingestion workers started")

	aggregator := aggregate.New(p.store, p.pub, p.pstats,
		p.cfg.Pipeline.RealtimeInterval, p.cfg.Pipeline.RealtimeWindow)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		aggregator.Run(runCtx)
	}()

	scheduler := schedule.New(p.store, p.pstats, p.cfg.Pipeline.RetentionDays)
	if err := scheduler.Start(); err != nil {
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.monitor.Run(runCtx)
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.alertSweep(runCtx)
	}()

	p.initHTTPServer()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Info().Str("addr", p.cfg.HTTPAddr).Msg("starting HTTP server")
		if err := p.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return p.shutdown(cancelRun, scheduler)
}

// shutdown stops intake first, drains the worker queue, then stops the
// periodic tasks and finally releases collaborator connections.
func (p *Pipeline) shutdown(cancelRun context.CancelFunc, scheduler *schedule.Scheduler) error {
	log := logger.WithComponent("pipeline")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop accepting new samples
	p.accepting.Store(false)

	// 2. Stop the HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 3. Drain in-flight samples
	close(p.jobs)
	done := make(chan struct{})
	go func() {
		p.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("ingestion workers drained")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("worker shutdown timeout, forcing exit")
	}

	// 4. Stop periodic tasks; in-flight cycles finish their current run
	cancelRun()
	scheduler.Stop()

	// 5. Report not-running before releasing collaborators
	p.pstats.MarkStopped()

	if err := p.bus.Close(); err != nil {
		log.Error().Err(err).Msg("bus close error")
	}
	if err := p.store.Close(); err != nil {
		log.Error().Err(err).Msg("storage close error")
	}

	p.wg.Wait()
	log.Info().Msg("pipeline stopped gracefully")
	return nil
}

// worker processes queued samples until the channel is closed.
func (p *Pipeline) worker(id int) {
	defer p.workersWG.Done()

	log := logger.WithComponent("worker").With().Int("worker_id", id).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("worker").Inc()
		}
	}()

	for j := range p.jobs {
		p.process(j)
		metrics.IngestQueueSize.Set(float64(len(p.jobs)))
	}
}

// process runs the strictly sequential chain for one sample:
// validate, evaluate thresholds, correlate, publish/store.
func (p *Pipeline) process(j job) {
	switch j.kind {
	case jobServer:
		sample := models.ValidateServerSample(j.entityID, j.raw, j.ts)
		tags := map[string]string{}
		if sample.Environment != "" {
			tags["environment"] = sample.Environment
		}
		p.handleSample(storage.KindServer, sample.EntityID, sample,
			sample.Fields(), sample.ThresholdFields(), tags,
			publish.TopicServerMetrics, p.evalServer, j.ts)

	case jobApplication:
		sample := models.ValidateAppSample(j.appID, j.entityID, j.raw, j.ts)
		tags := map[string]string{"app_id": sample.AppID}
		p.handleSample(storage.KindApplication, sample.EntityID, sample,
			sample.Fields(), sample.ThresholdFields(), tags,
			publish.TopicAppMetrics, p.evalApp, j.ts)
	}
}

func (p *Pipeline) handleSample(kind, entityID string, sample any,
	fields, thresholdFields map[string]float64, tags map[string]string,
	topic string, eval *threshold.Evaluator, ts time.Time) {

	log := logger.WithComponent("pipeline").With().Str("entity_id", entityID).Logger()

	alerts := eval.Evaluate(entityID, thresholdFields, ts)
	for i := range alerts {
		alerts[i] = p.corr.Correlate(alerts[i])
	}

	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()

	// Collaborator failures are logged and counted; the sample is abandoned
	// but the pipeline keeps going.
	if err := p.store.WriteSample(ctx, kind, entityID, fields, tags, ts); err != nil {
		log.Error().Err(err).Msg("storage write failed")
		p.pstats.AddError()
		metrics.CollaboratorErrorsTotal.WithLabelValues("storage", "write_sample").Inc()
	}
	if err := p.bus.ProduceMetrics(ctx, entityID, fields); err != nil {
		log.Error().Err(err).Msg("bus metrics publish failed")
		p.pstats.AddError()
		metrics.CollaboratorErrorsTotal.WithLabelValues("bus", "produce_metrics").Inc()
	}
	p.pub.Broadcast(topic, sample)

	for _, alert := range alerts {
		p.pub.Broadcast(publish.TopicAlerts, map[string]any{
			"type":  "new_alert",
			"alert": alert,
		})
		if err := p.bus.ProduceAlert(ctx, alert); err != nil {
			log.Error().Err(err).Str("alert_id", alert.ID).Msg("bus alert publish failed")
			p.pstats.AddError()
			metrics.CollaboratorErrorsTotal.WithLabelValues("bus", "produce_alert").Inc()
		}
		if err := p.store.WriteAggregate(ctx, "alerts", map[string]string{
			"entity_id": alert.EntityID,
			"type":      alert.Type,
			"severity":  string(alert.Severity),
		}, map[string]float64{
			"value":     alert.Value,
			"threshold": alert.Threshold,
		}, alert.Timestamp); err != nil {
			log.Error().Err(err).Str("alert_id", alert.ID).Msg("alert storage write failed")
			p.pstats.AddError()
			metrics.CollaboratorErrorsTotal.WithLabelValues("storage", "write_alert").Inc()
		}
		metrics.AlertsGeneratedTotal.WithLabelValues(string(alert.Severity)).Inc()
	}

	p.pstats.AddSamples(1)
	if n := len(alerts); n > 0 {
		p.pstats.AddAlerts(uint64(n))
		p.alertsSinceSweep.Add(uint64(n))
	}
}

// alertSweep periodically reports alert throughput since the last sweep.
func (p *Pipeline) alertSweep(ctx context.Context) {
	log := logger.WithComponent("pipeline")
	ticker := time.NewTicker(p.cfg.Pipeline.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept := p.alertsSinceSweep.Swap(0)
			snap := p.pstats.Snapshot()
			log.Info().
				Uint64("alerts_swept", swept).
				Uint64("samples_processed", snap.SamplesProcessed).
				Uint64("alerts_processed", snap.AlertsProcessed).
				Uint64("error_count", snap.ErrorCount).
				Int("queue_size", len(p.jobs)).
				Msg("alert sweep")
		}
	}
}

func (p *Pipeline) initHTTPServer() {
	mux := http.NewServeMux()

	mux.Handle("/api/v1/metrics/server", middleware.Chain(
		handlers.NewServerMetricsHandler(p),
		middleware.Recovery,
		middleware.Logging,
	))
	mux.Handle("/api/v1/metrics/application", middleware.Chain(
		handlers.NewAppMetricsHandler(p),
		middleware.Recovery,
		middleware.Logging,
	))
	mux.HandleFunc("/api/v1/stats", handlers.StatsHandler(p))
	mux.HandleFunc("/health", handlers.HealthHandler(p.monitor))
	mux.Handle("/metrics", promhttp.Handler())

	if p.hub != nil {
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			ws.ServeWS(p.hub, w, r)
		})
	}

	p.httpServer = &http.Server{
		Addr:         p.cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
