package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/tempest-station-bridge/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/tempest-station-bridge/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/tempest-station-bridge/internal/adapter/mqtt"
	"github.com/couchcryptid/tempest-station-bridge/internal/adapter/tempest"
	"github.com/couchcryptid/tempest-station-bridge/internal/adapter/udp"
	"github.com/couchcryptid/tempest-station-bridge/internal/config"
	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
	"github.com/couchcryptid/tempest-station-bridge/internal/observability"
	"github.com/couchcryptid/tempest-station-bridge/internal/pipeline"
	"github.com/couchcryptid/tempest-station-bridge/internal/publish"
)

func main() {
	// Optional .env for local development; environment always wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("bridge exited with error", "error", err)
		os.Exit(1)
	}
}

// run wires the service together and blocks until a signal arrives or the
// pipeline fails persistently. Deferred cleanups execute on both paths.
func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	registry := domain.NewRegistry()
	if err := registry.Register(cfg.StationKey()); err != nil {
		return err
	}
	defer registry.Release(cfg.StationKey())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, cleanup, err := buildSource(cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer cleanup()

	mqttSink := mqttadapter.NewSink(mqttadapter.Options{
		BrokerURL:       cfg.MQTTBroker,
		ClientID:        cfg.MQTTClientID,
		Username:        cfg.MQTTUsername,
		Password:        cfg.MQTTPassword,
		TopicPrefix:     cfg.MQTTTopicPrefix,
		DiscoveryPrefix: cfg.MQTTDiscoveryPrefix,
	}, logger)
	if err := mqttSink.Connect(ctx); err != nil {
		return err
	}
	defer mqttSink.Close()

	sinks := []publish.Sink{mqttSink}

	// Archive sink is feature-flagged via KAFKA_ARCHIVE_TOPIC / KAFKA_ARCHIVE_ENABLED.
	if cfg.ArchiveEnabled {
		archive := kafkaadapter.NewArchive(cfg.KafkaBrokers, cfg.KafkaArchiveTopic, logger)
		defer func() {
			if err := archive.Close(); err != nil {
				logger.Error("kafka archive close error", "error", err)
			}
		}()
		sinks = append(sinks, archive)
		logger.Info("kafka archive enabled", "topic", cfg.KafkaArchiveTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka archive disabled")
	}

	store := publish.NewStore(sinks, cfg.ExpiryWindow, logger, metrics)
	normalizer := pipeline.NewNormalizer(cfg.UnitSystem, logger)

	p := pipeline.New(source, normalizer, store, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Expiry watcher marks entities unavailable when readings stop arriving.
	go store.WatchExpiry(ctx)

	// Run the ingestion pipeline. Persistent failures (bad token, no station
	// found) end the process instead of retrying forever.
	pipelineErr := make(chan error, 1)
	go func() {
		pipelineErr <- p.Run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-pipelineErr:
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

// buildSource constructs the configured packet source: the local UDP listener
// or the cloud REST poller.
func buildSource(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (pipeline.Source, func(), error) {
	if cfg.DataSource == config.SourceCloud {
		client := tempest.NewClient(tempest.NewStaticTokenSource(cfg.TempestToken), cfg.APITimeout, logger)
		poller := tempest.NewPoller(client, cfg.StationID, cfg.PollInterval, cfg.MaxAuthRetries, logger, metrics)
		logger.Info("cloud poller configured", "station", cfg.StationID, "interval", cfg.PollInterval)
		return poller, func() {}, nil
	}

	listener := udp.NewListener(cfg.UDPListenAddr, cfg.DiscoveryWindow, logger)
	if err := listener.Open(); err != nil {
		return nil, nil, err
	}
	logger.Info("udp listener configured", "addr", listener.Addr(), "discovery_window", cfg.DiscoveryWindow)
	return listener, func() {
		if err := listener.Close(); err != nil {
			logger.Error("udp listener close error", "error", err)
		}
	}, nil
}
