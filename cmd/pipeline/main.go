package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pulse/internal/bus"
	"pulse/internal/config"
	"pulse/internal/logger"
	"pulse/internal/pipeline"
	"pulse/internal/publish"
	"pulse/internal/storage"
	"pulse/internal/ws"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	producer := newBus(cfg)

	hub := ws.NewHub()
	go hub.Run(ctx)
	pub := publish.New(hub)

	p := pipeline.New(cfg, store, producer, pub, hub)

	// Run blocks until ctx is cancelled, then shuts down gracefully.
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(ctx)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("pipeline exited")
		}
	}

	log.Info().Msg("exited")
}

func newStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "influxdb":
		return storage.NewInfluxStore(
			cfg.Storage.InfluxURL,
			cfg.Storage.InfluxToken,
			cfg.Storage.InfluxOrg,
			cfg.Storage.InfluxBucket,
		)
	default:
		return storage.NewMemoryStore(cfg.Storage.Capacity), nil
	}
}

func newBus(cfg *config.Config) bus.Bus {
	log := logger.WithComponent("main")

	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn().Msg("no kafka brokers configured, bus disabled")
		return bus.NewNop()
	}

	producer, err := bus.NewProducer(cfg.Kafka)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize kafka producer, bus disabled")
		return bus.NewNop()
	}

	log.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("metrics_topic", cfg.Kafka.MetricsTopic).
		Str("alerts_topic", cfg.Kafka.AlertsTopic).
		Msg("kafka producer initialized")
	return producer
}
