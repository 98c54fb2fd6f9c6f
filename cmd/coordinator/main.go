package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreweacott/radiotherm-coordinator/pkg/collector"
	"github.com/andreweacott/radiotherm-coordinator/pkg/config"
	"github.com/andreweacott/radiotherm-coordinator/pkg/coordinator"
	"github.com/andreweacott/radiotherm-coordinator/pkg/logger"
	"github.com/andreweacott/radiotherm-coordinator/pkg/metrics"
	"github.com/andreweacott/radiotherm-coordinator/pkg/mqttbridge"
	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm"
	"github.com/andreweacott/radiotherm-coordinator/pkg/thermostat"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// setupRetryDelay is how long to wait before retrying a device that was not ready.
const setupRetryDelay = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	log.Info("radiotherm-coordinator starting", "version", version, "config", cfg.String())

	ctx := SetupGracefulShutdown(log)
	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("coordinator stopped with error")
		os.Exit(1)
	}
	log.Info("radiotherm-coordinator stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	pollMetrics := metrics.NewPollMetrics(version)

	registry := thermostat.NewRegistry(thermostat.RegistryConfig{
		Settings: thermostat.Settings{
			Interval:            cfg.PollInterval,
			RequestRefreshDelay: cfg.RefreshDelay,
		},
		SyncTime: cfg.SyncTime,
		Options: []coordinator.Option{
			coordinator.WithLogger(log),
			coordinator.WithObserver(pollMetrics),
		},
		Log: log,
	})
	defer registry.Close()

	promRegistry := prometheus.NewRegistry()
	thermostatCollector := collector.NewThermostatCollector(registry, metrics.NewMetricDescriptors(), log).
		WithPollMetrics(pollMetrics)
	if err := promRegistry.Register(thermostatCollector); err != nil {
		return fmt.Errorf("failed to register thermostat collector: %w", err)
	}

	server := NewServer(registry, promRegistry, log, cfg.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, cfg.Port)
	})
	for _, host := range cfg.Hosts {
		g.Go(func() error {
			return runDevice(gctx, cfg, log, registry, pollMetrics, host)
		})
	}
	return g.Wait()
}

// runDevice sets the device up, retrying while it is not ready, then runs
// its MQTT bridge when one is configured.
func runDevice(ctx context.Context, cfg *config.Config, log *logger.Logger, registry *thermostat.Registry, pollMetrics *metrics.PollMetrics, host string) error {
	client, err := radiotherm.NewClient(host, radiotherm.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return err
	}
	device := radiotherm.NewDeviceAPIWithCircuitBreaker(client, radiotherm.CircuitBreakerConfig{
		MaxConsecutiveFailures: cfg.Breaker.Failures,
		Timeout:                cfg.Breaker.Timeout,
		OnStateChange:          pollMetrics.ObserveBreaker,
	}, log)

	rec, err := setupWithRetry(ctx, registry, host, device, log)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	if !cfg.MQTT.Enabled {
		return nil
	}
	bridge, err := mqttbridge.New(rec, mqttbridge.Config{
		BrokerURL:      cfg.MQTT.BrokerURL,
		ClientID:       clientID(cfg.MQTT.ClientID, host, len(cfg.Hosts)),
		TopicPrefix:    cfg.MQTT.TopicPrefix,
		QoS:            cfg.MQTT.QoS,
		Retain:         cfg.MQTT.Retain,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		CommandTimeout: cfg.RequestTimeout,
	}, log)
	if err != nil {
		return err
	}
	return bridge.Run(ctx)
}

func setupWithRetry(ctx context.Context, registry *thermostat.Registry, host string, device radiotherm.DeviceAPI, log *logger.Logger) (*thermostat.DeviceRecord, error) {
	for {
		rec, err := registry.Setup(ctx, host, device)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, thermostat.ErrNotReady) {
			return nil, err
		}
		log.WithHost(host).Warn("device not ready, will retry", "error", err, "retry_in", setupRetryDelay.String())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(setupRetryDelay):
		}
	}
}

// clientID keeps MQTT client ids unique when several devices share one configured id.
func clientID(configured, host string, devices int) string {
	if configured == "" || devices == 1 {
		return configured
	}
	return configured + "-" + host
}

// SetupGracefulShutdown sets up signal handlers for graceful shutdown
// Returns a context that is cancelled on interrupt or termination signal
func SetupGracefulShutdown(log *logger.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info("Received signal", "signal", sig.String())
		cancel()
	}()

	return ctx
}
